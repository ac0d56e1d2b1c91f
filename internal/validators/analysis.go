package validators

import (
	"os"
	"strings"

	"github.com/validforge/validpipe/internal/pluginapi"
)

// AnalysisPluginID is the stable plugin_id for AnalysisPlugin.
const AnalysisPluginID = "analysis"

// AnalysisPlugin warns on blank lines in the scratch file. Its Requires
// list is its manifest's dependencies; listing HeaderPluginID there makes
// it observe the header writer's mutation first.
type AnalysisPlugin struct {
	pluginapi.Base
}

// NewAnalysisPlugin builds an AnalysisPlugin from its manifest.
func NewAnalysisPlugin(manifest pluginapi.Manifest) (pluginapi.Plugin, error) {
	return &AnalysisPlugin{Base: pluginapi.NewBase(manifest)}, nil
}

func (p *AnalysisPlugin) Run(path string, state pluginapi.State) (pluginapi.PluginResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return pluginapi.PluginResult{}, err
	}

	lines := strings.Split(string(content), "\n")
	if lines[len(lines)-1] == "" {
		// The final newline terminates the last line; it does not start a blank one.
		lines = lines[:len(lines)-1]
	}
	var errs []pluginapi.ValidationError
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			errs = append(errs, pluginapi.ValidationError{
				Tool:     p.Name(),
				Severity: pluginapi.SeverityWarning,
				Message:  "blank line detected",
				File:     path,
			})
			break
		}
	}

	return pluginapi.PluginResult{
		PluginID: p.ID(),
		Name:     p.Name(),
		Success:  true,
		Errors:   errs,
		Details:  map[string]any{"line_count": len(lines)},
	}, nil
}
