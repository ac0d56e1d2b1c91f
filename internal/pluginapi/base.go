package pluginapi

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Base implements the bookkeeping every concrete plugin needs (ID, Name,
// Requires, FileExtensions, Enabled, CanProcess) from a Manifest, so
// validators only need to implement Run.
type Base struct {
	Manifest Manifest
}

// NewBase constructs a Base from a resolved manifest.
func NewBase(manifest Manifest) Base {
	return Base{Manifest: manifest}
}

func (b Base) ID() string   { return b.Manifest.ResolvedPluginID() }
func (b Base) Name() string {
	if b.Manifest.Name != "" {
		return b.Manifest.Name
	}
	return b.ID()
}
func (b Base) Requires() []string       { return b.Manifest.Dependencies }
func (b Base) Enabled() bool            { return b.Manifest.IsEnabled() }

// FileExtensions returns the manifest's extensions, lowercased.
func (b Base) FileExtensions() []string {
	exts := make([]string, len(b.Manifest.FileExtensions))
	for i, e := range b.Manifest.FileExtensions {
		exts[i] = strings.ToLower(e)
	}
	return exts
}

// CanProcess reports false when disabled; otherwise true if FileExtensions
// is empty or the path's lowercased suffix is among them.
func (b Base) CanProcess(path string) bool {
	if !b.Enabled() {
		return false
	}
	exts := b.FileExtensions()
	if len(exts) == 0 {
		return true
	}
	suffix := strings.ToLower(filepath.Ext(path))
	for _, ext := range exts {
		if ext == suffix {
			return true
		}
	}
	return false
}

// Execute invokes plugin.Run behind a failure barrier: a panic or returned
// error is converted into a PluginResult{success:false} carrying a
// synthetic ValidationError, so a single plugin's fault never escapes to
// the caller. When the plugin reports duration_s <= 0, the measured
// wall-clock duration is substituted.
func Execute(plugin Plugin, path string, state State) (result PluginResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = faultResult(plugin, path, time.Since(start), fmt.Sprintf("panic: %v", r))
		}
	}()

	res, err := plugin.Run(path, state)
	if err != nil {
		return faultResult(plugin, path, time.Since(start), err.Error())
	}

	if res.DurationSeconds <= 0 {
		res.DurationSeconds = time.Since(start).Seconds()
	}
	return res
}

func faultResult(plugin Plugin, path string, elapsed time.Duration, message string) PluginResult {
	return PluginResult{
		PluginID:        plugin.ID(),
		Name:            plugin.Name(),
		Success:         false,
		DurationSeconds: elapsed.Seconds(),
		Errors: []ValidationError{{
			Tool:     plugin.Name(),
			Severity: SeverityError,
			Message:  message,
			File:     path,
		}},
	}
}
