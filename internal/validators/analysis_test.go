package validators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/validforge/validpipe/internal/pluginapi"
)

func TestAnalysisPluginWarnsOnBlankLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txt")
	if err := os.WriteFile(path, []byte("HEADER\nfirst line\n\nsecond line\n"), 0600); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	plugin, err := NewAnalysisPlugin(pluginapi.Manifest{Name: "Line Analyzer", PluginID: AnalysisPluginID, Dependencies: []string{HeaderPluginID}})
	if err != nil {
		t.Fatalf("NewAnalysisPlugin: %v", err)
	}

	result, err := plugin.Run(path, pluginapi.State{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(result.Errors))
	}
	if result.Errors[0].Severity != pluginapi.SeverityWarning {
		t.Fatalf("expected warning severity, got %s", result.Errors[0].Severity)
	}
}

func TestAnalysisPluginDeclaresHeaderDependency(t *testing.T) {
	plugin, _ := NewAnalysisPlugin(pluginapi.Manifest{Name: "Line Analyzer", Dependencies: []string{HeaderPluginID}})
	requires := plugin.Requires()
	if len(requires) != 1 || requires[0] != HeaderPluginID {
		t.Fatalf("expected Requires() == [%q], got %v", HeaderPluginID, requires)
	}
}
