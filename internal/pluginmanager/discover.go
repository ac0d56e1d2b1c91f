// Package pluginmanager discovers manifest-declared plugins, validates
// them, and computes a deterministic, dependency-ordered execution
// sequence for a given file.
package pluginmanager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/validforge/validpipe/internal/logging"
	"github.com/validforge/validpipe/internal/pluginapi"
	"github.com/validforge/validpipe/internal/pluginregistry"
)

var log = logging.L("pluginmanager")

// manifestFileName is the manifest filename inside each plugin directory.
const manifestFileName = "manifest.json"

// markerFileName is the Go analogue of the original's dynamically-imported
// implementation file: its presence confirms a directory's manifest is
// backed by real compiled-in code, even though the actual code is resolved
// through the registry rather than loaded from this file at runtime.
const markerFileName = "plugin.go"

// Manager holds the successfully loaded plugins, keyed by plugin ID.
type Manager struct {
	plugins map[string]pluginapi.Plugin
}

// IDs returns the loaded plugin IDs, in no particular order.
func (m *Manager) IDs() []string {
	ids := make([]string, 0, len(m.plugins))
	for id := range m.plugins {
		ids = append(ids, id)
	}
	return ids
}

// Retain mutates m in place, keeping only the plugins whose ID appears in
// ids. Unknown IDs are ignored. Used by a caller that wants to narrow an
// already-discovered set down to an explicit subset (e.g. the CLI's
// repeatable --plugin flag).
func (m *Manager) Retain(ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for id := range m.plugins {
		if !keep[id] {
			delete(m.plugins, id)
		}
	}
}

// New builds a Manager directly from an already-constructed plugin set,
// bypassing manifest discovery. Useful for a driver that wires in a fixed
// set of built-in validators without a plugin directory on disk.
func New(plugins ...pluginapi.Plugin) *Manager {
	m := &Manager{plugins: make(map[string]pluginapi.Plugin, len(plugins))}
	for _, p := range plugins {
		m.plugins[p.ID()] = p
	}
	return m
}

// Discover walks pluginDir; each subdirectory with a manifest.json is
// validated and, if it also carries a plugin.go marker file, resolved
// against registry by its entrypoint name. A missing or malformed manifest
// is skipped with a warning. A manifest with a missing marker file or an
// unresolvable entrypoint is a hard PluginLoadError for that plugin only;
// discovery continues with the rest.
func Discover(pluginDir string, registry *pluginregistry.Registry) (*Manager, []error) {
	entries, err := os.ReadDir(pluginDir)
	if err != nil {
		return &Manager{plugins: map[string]pluginapi.Plugin{}}, []error{fmt.Errorf("read plugin directory %s: %w", pluginDir, err)}
	}

	var manifests []pluginapi.Manifest
	var loadErrs []error
	seenNames := make(map[string]bool)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(pluginDir, entry.Name())
		manifestPath := filepath.Join(dir, manifestFileName)

		raw, err := os.ReadFile(manifestPath)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("skipping plugin with unreadable manifest", "dir", dir, "error", err)
			}
			continue
		}

		var manifest pluginapi.Manifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			log.Warn("skipping plugin with malformed manifest", "dir", dir, "error", err)
			continue
		}

		if manifest.Name == "" {
			log.Warn("skipping plugin with missing name", "dir", dir)
			continue
		}
		if seenNames[manifest.Name] {
			loadErrs = append(loadErrs, &pluginapi.ManifestError{PluginDir: dir, Reason: fmt.Sprintf("duplicate plugin name %q", manifest.Name)})
			continue
		}
		seenNames[manifest.Name] = true

		if _, err := os.Stat(filepath.Join(dir, markerFileName)); err != nil {
			loadErrs = append(loadErrs, &pluginapi.PluginLoadError{PluginID: manifest.ResolvedPluginID(), Reason: fmt.Sprintf("missing implementation marker %s", markerFileName)})
			continue
		}

		manifests = append(manifests, manifest)
	}

	knownNames := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		knownNames[m.ResolvedPluginID()] = true
	}
	for _, m := range manifests {
		for _, dep := range m.Dependencies {
			if !knownNames[dep] {
				loadErrs = append(loadErrs, &pluginapi.ManifestError{PluginDir: m.Name, Reason: fmt.Sprintf("unknown dependency %q", dep)})
			}
		}
	}

	if err := checkGlobalAcyclic(manifests); err != nil {
		loadErrs = append(loadErrs, err)
		return &Manager{plugins: map[string]pluginapi.Plugin{}}, loadErrs
	}

	plugins := make(map[string]pluginapi.Plugin, len(manifests))
	for _, m := range manifests {
		factory, ok := registry.Resolve(m.ResolvedEntrypoint())
		if !ok {
			loadErrs = append(loadErrs, &pluginapi.PluginLoadError{PluginID: m.ResolvedPluginID(), Reason: fmt.Sprintf("no registered factory for entrypoint %q", m.ResolvedEntrypoint())})
			continue
		}
		plugin, err := factory(m)
		if err != nil {
			loadErrs = append(loadErrs, &pluginapi.PluginLoadError{PluginID: m.ResolvedPluginID(), Reason: err.Error()})
			continue
		}
		plugins[plugin.ID()] = plugin
	}

	return &Manager{plugins: plugins}, loadErrs
}

// checkGlobalAcyclic reports a ManifestError if the full (not per-file)
// dependency graph declared across all manifests contains a cycle.
func checkGlobalAcyclic(manifests []pluginapi.Manifest) error {
	deps := make(map[string][]string, len(manifests))
	for _, m := range manifests {
		deps[m.ResolvedPluginID()] = m.Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return &pluginapi.ManifestError{PluginDir: id, Reason: "cycle detected in plugin dependency graph"}
		}
		state[id] = visiting
		for _, dep := range deps[id] {
			if _, ok := deps[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
