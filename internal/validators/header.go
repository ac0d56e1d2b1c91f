// Package validators holds the demonstration validator plugins that exercise
// the plugin contract end to end: a header writer, a line analyzer that
// depends on it, and a subprocess-backed example plugin.
package validators

import (
	"os"

	"github.com/validforge/validpipe/internal/pluginapi"
)

// HeaderPluginID is the stable plugin_id for HeaderPlugin.
const HeaderPluginID = "header"

// HeaderPlugin prepends a "HEADER\n" marker to the scratch file if absent.
type HeaderPlugin struct {
	pluginapi.Base
}

// NewHeaderPlugin builds a HeaderPlugin from its manifest.
func NewHeaderPlugin(manifest pluginapi.Manifest) (pluginapi.Plugin, error) {
	return &HeaderPlugin{Base: pluginapi.NewBase(manifest)}, nil
}

func (p *HeaderPlugin) Run(path string, state pluginapi.State) (pluginapi.PluginResult, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return pluginapi.PluginResult{}, err
	}

	addedHeader := false
	const marker = "HEADER\n"
	if len(original) < len(marker) || string(original[:len(marker)]) != marker {
		updated := append([]byte(marker), original...)
		if err := os.WriteFile(path, updated, 0600); err != nil {
			return pluginapi.PluginResult{}, err
		}
		addedHeader = true
	}

	if state != nil {
		state["added_header"] = addedHeader
	}

	return pluginapi.PluginResult{
		PluginID: p.ID(),
		Name:     p.Name(),
		Success:  true,
		Details:  map[string]any{"added_header": addedHeader},
	}, nil
}
