// Package pipeline is the public façade over the validation pipeline: it
// wires the hash cache, plugin registry and manager, event log, and
// publishers according to a Config, and exposes the resulting Engine to
// callers such as cmd/validpipe. The driver owns every dependency
// explicitly; nothing here is package-level mutable state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/validforge/validpipe/internal/engine"
	"github.com/validforge/validpipe/internal/hashcache"
	"github.com/validforge/validpipe/internal/jsonlog"
	"github.com/validforge/validpipe/internal/logging"
	"github.com/validforge/validpipe/internal/pipelineconfig"
	"github.com/validforge/validpipe/internal/pluginapi"
	"github.com/validforge/validpipe/internal/pluginmanager"
	"github.com/validforge/validpipe/internal/pluginregistry"
	"github.com/validforge/validpipe/internal/publish"
	"github.com/validforge/validpipe/internal/ulid"
	"github.com/validforge/validpipe/internal/validators"
)

var log = logging.L("pipeline")

// Re-exported so callers never need to import internal/engine directly.
type FileResult = engine.FileResult

const (
	StatusProcessed = engine.StatusProcessed
	StatusSkipped   = engine.StatusSkipped
	StatusNoPlugins = engine.StatusNoPlugins
	StatusFailed    = engine.StatusFailed
)

// Driver holds one invocation's fully wired engine.
type Driver struct {
	Config  *pipelineconfig.Config
	Cache   *hashcache.Cache
	Manager *pluginmanager.Manager
	Engine  *engine.Engine
}

// NewRegistry builds a Registry with the built-in demonstration validators
// registered under their manifest entrypoint names.
func NewRegistry() *pluginregistry.Registry {
	reg := pluginregistry.New()
	reg.Register("HeaderPlugin", validators.NewHeaderPlugin)
	reg.Register("AnalysisPlugin", validators.NewAnalysisPlugin)
	reg.Register("ExamplePlugin", validators.NewDemoExamplePlugin)
	return reg
}

// builtinPlugins constructs the demonstration validators directly, without
// a manifest directory, for use when no plugin directory is configured or
// discoverable.
func builtinPlugins() []pluginapi.Plugin {
	header, _ := validators.NewHeaderPlugin(pluginapi.Manifest{Name: validators.HeaderPluginID, PluginID: validators.HeaderPluginID})
	analysis, _ := validators.NewAnalysisPlugin(pluginapi.Manifest{
		Name: validators.AnalysisPluginID, PluginID: validators.AnalysisPluginID,
		Dependencies: []string{validators.HeaderPluginID},
	})
	return []pluginapi.Plugin{header, analysis}
}

// NewManager resolves plugins for pluginDir against registry, falling back
// to the built-in validators when pluginDir is empty or does not exist (the
// driver never runs with zero plugins just because no directory was ever
// created). An existing directory is always discovered, with no fallback,
// even when it yields no loadable plugins.
func NewManager(pluginDir string, registry *pluginregistry.Registry) (*pluginmanager.Manager, []error) {
	if pluginDir == "" {
		return pluginmanager.New(builtinPlugins()...), nil
	}

	if _, err := os.Stat(pluginDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pluginmanager.New(builtinPlugins()...), nil
		}
		return pluginmanager.New(), []error{fmt.Errorf("stat plugin directory %s: %w", pluginDir, err)}
	}

	manager, errs := pluginmanager.Discover(pluginDir, registry)
	return manager, errs
}

// NewDriver wires every dependency cfg describes into a runnable Engine.
func NewDriver(ctx context.Context, cfg *pipelineconfig.Config) (*Driver, []error) {
	registry := NewRegistry()
	manager, errs := NewManager(cfg.PluginDir, registry)
	for _, err := range errs {
		log.Warn("plugin discovery issue", logging.KeyError, err.Error())
	}

	cache := hashcache.Load(cfg.CachePath, func(msg string) { log.Warn(msg) })
	eventLog := jsonlog.New(cfg.LogPath, cfg.MaxBytes)
	local := publish.NewLocal(cfg.OutputDir)

	remote, err := publish.RemoteFromConfig(ctx, cfg)
	if err != nil {
		errs = append(errs, fmt.Errorf("configure remote publisher: %w", err))
		remote = nil
	}

	eng := engine.New(cache, manager, eventLog, local, remote, cfg.OutputDir, func() time.Time { return time.Now().UTC() }, ulid.New)

	return &Driver{Config: cfg, Cache: cache, Manager: manager, Engine: eng}, errs
}

// ProcessFile runs one file through the engine.
func (d *Driver) ProcessFile(path string) (FileResult, error) {
	return d.Engine.ProcessFile(path)
}

// ProcessFiles runs every path through the engine, continuing past any
// individual file's failure.
func (d *Driver) ProcessFiles(paths []string) []FileResult {
	return d.Engine.ProcessFiles(paths)
}

// Close flushes any pending cache state.
func (d *Driver) Close() error {
	return d.Cache.Close()
}
