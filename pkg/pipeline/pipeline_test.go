package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/validforge/validpipe/internal/pipelineconfig"
)

func TestNewDriverFallsBackToBuiltinValidatorsWithoutAPluginDirectory(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(inputPath, []byte("first line\n\nsecond line\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := pipelineconfig.Default()
	cfg.PluginDir = filepath.Join(dir, "plugins-that-do-not-exist")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CachePath = filepath.Join(dir, "cache.json")
	cfg.LogPath = filepath.Join(dir, "events.jsonl")

	driver, errs := NewDriver(context.Background(), cfg)
	if len(errs) != 0 {
		t.Fatalf("unexpected driver errors: %v", errs)
	}

	result, err := driver.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.Status != StatusProcessed {
		t.Fatalf("status = %q, want processed", result.Status)
	}
	if result.Report.Summary.TotalErrors != 1 {
		t.Fatalf("expected the built-in analysis validator to warn once, got %d errors", result.Report.Summary.TotalErrors)
	}
	if err := driver.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestProcessFilesSkipsOnSecondInvocationAcrossDriverInstances(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(inputPath, []byte("content\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := pipelineconfig.Default()
	cfg.PluginDir = ""
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CachePath = filepath.Join(dir, "cache.json")
	cfg.LogPath = filepath.Join(dir, "events.jsonl")

	first, errs := NewDriver(context.Background(), cfg)
	if len(errs) != 0 {
		t.Fatalf("unexpected driver errors: %v", errs)
	}
	results := first.ProcessFiles([]string{inputPath})
	if results[0].Status != StatusProcessed {
		t.Fatalf("first run status = %q, want processed", results[0].Status)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first driver: %v", err)
	}

	second, errs := NewDriver(context.Background(), cfg)
	if len(errs) != 0 {
		t.Fatalf("unexpected driver errors: %v", errs)
	}
	results = second.ProcessFiles([]string{inputPath})
	if results[0].Status != StatusSkipped {
		t.Fatalf("second run status = %q, want skipped (cache persisted across driver instances)", results[0].Status)
	}
}
