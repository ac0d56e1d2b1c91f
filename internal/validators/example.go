package validators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/validforge/validpipe/internal/pluginapi"
)

// ExamplePluginID is the stable plugin_id for DemoExamplePlugin.
const ExamplePluginID = "example"

// defaultExampleTimeout bounds the demonstration subprocess so a hung
// interpreter cannot stall a file's processing indefinitely.
const defaultExampleTimeout = 30 * time.Second

// maxOutputBytes caps captured stdout/stderr so a chatty subprocess cannot
// grow the buffers without bound.
const maxOutputBytes = 1 << 20 // 1 MiB

// DemoExamplePlugin is a minimal plugin that shells out to report the
// scratch file's basename as JSON, exercising the full subprocess path of
// the plugin contract without depending on any concrete linter.
type DemoExamplePlugin struct {
	pluginapi.Base
}

// NewDemoExamplePlugin builds a DemoExamplePlugin from its manifest.
func NewDemoExamplePlugin(manifest pluginapi.Manifest) (pluginapi.Plugin, error) {
	return &DemoExamplePlugin{Base: pluginapi.NewBase(manifest)}, nil
}

func (p *DemoExamplePlugin) Run(path string, state pluginapi.State) (pluginapi.PluginResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultExampleTimeout)
	defer cancel()

	script := fmt.Sprintf(
		`import json; print(json.dumps({"target": %q}))`,
		filepath.Base(path),
	)
	cmd := exec.CommandContext(ctx, "python3", "-c", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: maxOutputBytes}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: maxOutputBytes}

	if err := cmd.Run(); err != nil {
		return pluginapi.PluginResult{}, fmt.Errorf("example plugin subprocess: %w: %s", err, stderr.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &payload); err != nil {
		return pluginapi.PluginResult{}, fmt.Errorf("example plugin produced invalid JSON output: %w", err)
	}

	return pluginapi.PluginResult{
		PluginID: p.ID(),
		Name:     p.Name(),
		Success:  true,
		Details:  map[string]any{"subprocess_output": payload},
	}, nil
}

// limitedWriter caps the number of bytes retained from a writer, discarding
// the remainder rather than growing without bound.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
	} else {
		w.buf.Write(p)
	}
	return len(p), nil
}
