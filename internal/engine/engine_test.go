package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/validforge/validpipe/internal/hashcache"
	"github.com/validforge/validpipe/internal/jsonlog"
	"github.com/validforge/validpipe/internal/pluginapi"
	"github.com/validforge/validpipe/internal/pluginmanager"
	"github.com/validforge/validpipe/internal/publish"
)

type stubPlugin struct {
	pluginapi.Base
	id      string
	succeed bool
}

func newStubPlugin(id string, succeed bool) pluginapi.Plugin {
	return &stubPlugin{Base: pluginapi.NewBase(pluginapi.Manifest{Name: id, PluginID: id}), id: id, succeed: succeed}
}

func (p *stubPlugin) ID() string   { return p.id }
func (p *stubPlugin) Name() string { return p.id }
func (p *stubPlugin) Run(path string, state pluginapi.State) (pluginapi.PluginResult, error) {
	if !p.succeed {
		panic("boom")
	}
	return pluginapi.PluginResult{PluginID: p.id, Name: p.id, Success: true}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func fixedRunID(id string) func(time.Time) (string, error) {
	return func(time.Time) (string, error) { return id, nil }
}

func TestProcessFileSkipsUnchangedFileOnSecondRun(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(inputPath, []byte("first line\n\nsecond line\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cache := hashcache.Load(filepath.Join(dir, "cache.json"), nil)
	logger := jsonlog.New(filepath.Join(dir, "events.jsonl"), 0)
	local := publish.NewLocal(filepath.Join(dir, "out"))
	manager := pluginmanager.New(newStubPlugin("header", true))

	clock := fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	eng := New(cache, manager, logger, local, nil, filepath.Join(dir, "out"), clock, fixedRunID("RUN-001"))

	first, err := eng.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("first ProcessFile: %v", err)
	}
	if first.Status != StatusProcessed {
		t.Fatalf("first run status = %q, want %q", first.Status, StatusProcessed)
	}
	if first.Report == nil || first.Report.RunID != "RUN-001" {
		t.Fatalf("expected report with run id RUN-001, got %+v", first.Report)
	}

	second, err := eng.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("second ProcessFile: %v", err)
	}
	if second.Status != StatusSkipped {
		t.Fatalf("second run status = %q, want %q", second.Status, StatusSkipped)
	}
}

func TestProcessFilePublishesValidatedCopyAndSidecarReport(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(inputPath, []byte("hello\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	cache := hashcache.Load(filepath.Join(dir, "cache.json"), nil)
	logger := jsonlog.New(filepath.Join(dir, "events.jsonl"), 0)
	local := publish.NewLocal(outDir)
	manager := pluginmanager.New(newStubPlugin("header", true))

	clock := fixedClock(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	eng := New(cache, manager, logger, local, nil, outDir, clock, fixedRunID("RUN-XYZ"))

	result, err := eng.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.Status != StatusProcessed {
		t.Fatalf("status = %q, want processed", result.Status)
	}
	if filepath.Base(result.FileOut) != "notes_VALIDATED_20260304_050607_RUN-XYZ.txt" {
		t.Fatalf("unexpected published name: %s", filepath.Base(result.FileOut))
	}

	if _, err := os.Stat(result.FileOut); err != nil {
		t.Fatalf("published file missing: %v", err)
	}

	sidecarRaw, err := os.ReadFile(result.FileOut + ".json")
	if err != nil {
		t.Fatalf("read sidecar report: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(sidecarRaw, &decoded); err != nil {
		t.Fatalf("sidecar report is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "RUN-XYZ" {
		t.Fatalf("sidecar run_id = %v, want RUN-XYZ", decoded["run_id"])
	}
}

func TestProcessFileReportsNoPluginsWhenNoneApplicable(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(inputPath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cache := hashcache.Load(filepath.Join(dir, "cache.json"), nil)
	logger := jsonlog.New(filepath.Join(dir, "events.jsonl"), 0)
	local := publish.NewLocal(filepath.Join(dir, "out"))
	manager := pluginmanager.New() // no plugins registered

	eng := New(cache, manager, logger, local, nil, filepath.Join(dir, "out"), fixedClock(time.Now()), fixedRunID("RUN-NONE"))

	result, err := eng.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.Status != StatusNoPlugins {
		t.Fatalf("status = %q, want no_plugins", result.Status)
	}
}

func TestProcessFilesContinuesPastAPerFileFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	missing := filepath.Join(dir, "missing.txt")
	if err := os.WriteFile(good, []byte("ok\n"), 0o600); err != nil {
		t.Fatalf("write good: %v", err)
	}

	cache := hashcache.Load(filepath.Join(dir, "cache.json"), nil)
	logger := jsonlog.New(filepath.Join(dir, "events.jsonl"), 0)
	local := publish.NewLocal(filepath.Join(dir, "out"))
	manager := pluginmanager.New(newStubPlugin("header", true))

	eng := New(cache, manager, logger, local, nil, filepath.Join(dir, "out"), fixedClock(time.Now()), fixedRunID("RUN-BATCH"))

	results := eng.ProcessFiles([]string{missing, good})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusFailed {
		t.Fatalf("missing file status = %q, want failed", results[0].Status)
	}
	if results[1].Status != StatusProcessed {
		t.Fatalf("good file status = %q, want processed", results[1].Status)
	}
}

func TestProcessFileCapturesPluginFaultWithoutFailingTheRun(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "faulty.txt")
	if err := os.WriteFile(inputPath, []byte("content\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cache := hashcache.Load(filepath.Join(dir, "cache.json"), nil)
	logger := jsonlog.New(filepath.Join(dir, "events.jsonl"), 0)
	local := publish.NewLocal(filepath.Join(dir, "out"))
	manager := pluginmanager.New(newStubPlugin("flaky", false))

	eng := New(cache, manager, logger, local, nil, filepath.Join(dir, "out"), fixedClock(time.Now()), fixedRunID("RUN-FAULT"))

	result, err := eng.ProcessFile(inputPath)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.Status != StatusProcessed {
		t.Fatalf("status = %q, want processed (plugin faults do not fail the run)", result.Status)
	}
	if result.Report.Summary.TotalErrors != 1 {
		t.Fatalf("TotalErrors = %d, want 1", result.Report.Summary.TotalErrors)
	}
}
