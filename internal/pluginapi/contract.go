// Package pluginapi defines the plugin contract that the pipeline engine
// and plugin manager depend on: the capability interface, manifests, and
// structured result/error types.
package pluginapi

import "fmt"

// ValidationError is a single structured issue reported by a plugin.
type ValidationError struct {
	Tool      string         `json:"tool"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Column    int            `json:"column,omitempty"`
	Code      string         `json:"code,omitempty"`
	AutoFixed bool           `json:"auto_fixed"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Severity levels a ValidationError may carry.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// PluginResult is what a plugin's Run returns, aggregated by the engine
// into the per-file report.
type PluginResult struct {
	PluginID        string            `json:"plugin_id"`
	Name            string            `json:"name"`
	Success         bool              `json:"success"`
	DurationSeconds float64           `json:"duration_s"`
	AutoFixedCount  int               `json:"auto_fixed_count"`
	Errors          []ValidationError `json:"errors"`
	Details         map[string]any    `json:"details,omitempty"`
}

// Manifest describes one discovered plugin's declared identity,
// dependencies, and applicability.
type Manifest struct {
	Name           string   `json:"name"`
	Entrypoint     string   `json:"entrypoint,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	FileExtensions []string `json:"file_extensions,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	PluginID       string   `json:"plugin_id,omitempty"`
}

// ResolvedEntrypoint returns the manifest's entrypoint, defaulting to
// "Plugin" when unset.
func (m Manifest) ResolvedEntrypoint() string {
	if m.Entrypoint == "" {
		return "Plugin"
	}
	return m.Entrypoint
}

// ResolvedPluginID returns the manifest's plugin_id, defaulting to name.
func (m Manifest) ResolvedPluginID() string {
	if m.PluginID == "" {
		return m.Name
	}
	return m.PluginID
}

// IsEnabled returns the manifest's enabled flag, defaulting to true.
func (m Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// State is the shared mutable bag threaded between plugins during one
// file's pass, letting plugins communicate arbitrary keys.
type State map[string]any

// Plugin is the capability interface every validator implements.
type Plugin interface {
	ID() string
	Name() string
	Requires() []string
	FileExtensions() []string
	Enabled() bool
	CanProcess(path string) bool
	Run(path string, state State) (PluginResult, error)
}

// ManifestError indicates a malformed or self-contradictory manifest.
type ManifestError struct {
	PluginDir string
	Reason    string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest error in %s: %s", e.PluginDir, e.Reason)
}

// PluginLoadError indicates a discovered plugin could not be imported or
// instantiated.
type PluginLoadError struct {
	PluginID string
	Reason   string
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("failed to load plugin %s: %s", e.PluginID, e.Reason)
}

// PluginError is a runtime plugin-system error, distinct from a fault
// inside an individual plugin's Run.
type PluginError struct {
	Reason string
}

func (e *PluginError) Error() string {
	return e.Reason
}
