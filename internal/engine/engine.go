// Package engine implements the per-file state machine that ties the hash
// cache, plugin manager, publishers, and event log into one pipeline run:
// START -> CACHE_CHECK -> (SKIPPED | STAGE -> PLUGINS -> PUBLISH -> LOG ->
// CACHE_UPDATE -> DONE), with FAILED_STAGE and FAILED_PUBLISH as terminal
// failure states that never reach CACHE_UPDATE.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/validforge/validpipe/internal/hashcache"
	"github.com/validforge/validpipe/internal/jsonlog"
	"github.com/validforge/validpipe/internal/logging"
	"github.com/validforge/validpipe/internal/pluginmanager"
	"github.com/validforge/validpipe/internal/publish"
	"github.com/validforge/validpipe/internal/report"
)

var log = logging.L("engine")

// Status values a FileResult's Status field may carry.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusNoPlugins = "no_plugins"
	StatusFailed    = "failed"
)

// FileResult is the outcome of one ProcessFile call.
type FileResult struct {
	File    string                 `json:"file"`
	Status  string                 `json:"status"`
	Reason  string                 `json:"reason,omitempty"`
	FileOut string                 `json:"file_out,omitempty"`
	Report  *report.PipelineReport `json:"report,omitempty"`
}

// Engine wires together the components the driver constructs: the hash
// cache, the plugin manager, the event log, and the local and optional
// remote publishers. All dependencies are passed in explicitly; Engine
// holds no package-level mutable state of its own.
type Engine struct {
	cache     *hashcache.Cache
	manager   *pluginmanager.Manager
	eventLog  *jsonlog.Logger
	local     publish.Publisher
	remote    publish.Publisher // may be nil: no remote mirror configured
	outputDir string

	now      func() time.Time
	newRunID func(time.Time) (string, error)
}

// New builds an Engine. remote may be nil to disable the optional mirror.
func New(cache *hashcache.Cache, manager *pluginmanager.Manager, eventLog *jsonlog.Logger, local publish.Publisher, remote publish.Publisher, outputDir string, now func() time.Time, newRunID func(time.Time) (string, error)) *Engine {
	return &Engine{
		cache:     cache,
		manager:   manager,
		eventLog:  eventLog,
		local:     local,
		remote:    remote,
		outputDir: outputDir,
		now:       now,
		newRunID:  newRunID,
	}
}

// ProcessFile runs one file through the full state machine. It never
// returns an error for expected outcomes (skipped, no applicable plugins,
// a plugin fault) — those are reported in FileResult.Status. It returns an
// error only for conditions the caller cannot recover from within the
// batch procedure (e.g. the input path does not exist).
func (e *Engine) ProcessFile(path string) (FileResult, error) {
	result := FileResult{File: path}

	// START -> CACHE_CHECK
	changed, err := e.cache.HasChanged(path)
	if err != nil {
		return result, fmt.Errorf("check cache for %s: %w", path, err)
	}
	if !changed {
		result.Status = StatusSkipped
		result.Reason = "unchanged"
		return result, nil
	}

	runID, err := e.newRunID(e.now())
	if err != nil {
		return result, fmt.Errorf("generate run id: %w", err)
	}
	timestamp := e.now().UTC().Format(time.RFC3339)

	ordered, err := e.manager.OrderedPlugins(path)
	if err != nil {
		return result, fmt.Errorf("order plugins for %s: %w", path, err)
	}
	if len(ordered) == 0 {
		result.Status = StatusNoPlugins
		return result, nil
	}

	// STAGE: copy the input into a scratch workspace so plugins never
	// mutate the original input file.
	scratchDir, err := os.MkdirTemp("", "validpipe-*")
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("stage: create scratch directory: %v", err)
		return result, nil
	}
	defer os.RemoveAll(scratchDir)

	scratchPath := filepath.Join(scratchDir, filepath.Base(path))
	if err := copyFile(path, scratchPath); err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("stage: copy input into scratch workspace: %v", err)
		return result, nil
	}

	// PLUGINS
	state := map[string]any{}
	results, err := e.manager.Execute(scratchPath, state)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("plugins: %v", err)
		return result, nil
	}

	hadErrors := false
	for _, r := range results {
		if !r.Success || len(r.Errors) > 0 {
			hadErrors = true
			break
		}
	}

	// PUBLISH
	destName := validatedName(path, timestamp, runID)
	publishedPath, err := e.local.Publish(context.Background(), scratchPath, destName)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("publish: %v", err)
		return result, nil
	}
	result.FileOut = publishedPath

	if e.remote != nil {
		if _, err := e.remote.Publish(context.Background(), scratchPath, destName); err != nil {
			log.Warn("remote publish failed, local copy stands", logging.KeyFile, path, logging.KeyError, err.Error())
		}
	}

	rep := report.NewPipelineReport(runID, path, publishedPath, timestamp, results)
	result.Report = &rep

	if err := writeReportSidecar(publishedPath, rep); err != nil {
		log.Warn("failed to write report sidecar", logging.KeyFile, path, logging.KeyError, err.Error())
	}

	// LOG: a failure here is a warning, not a terminal state; the file has
	// already been published and the cache entry must still be updated.
	for _, record := range report.LogRecordsFor(rep) {
		if err := e.eventLog.Append(record); err != nil {
			log.Warn("failed to append event log record", logging.KeyFile, path, logging.KeyError, err.Error())
			break
		}
	}

	// CACHE_UPDATE -> DONE
	if err := e.cache.MarkValidated(path, hadErrors); err != nil {
		log.Warn("failed to mark cache entry validated", logging.KeyFile, path, logging.KeyError, err.Error())
	}
	if err := e.cache.Save(); err != nil {
		log.Warn("failed to persist cache", logging.KeyFile, path, logging.KeyError, err.Error())
	}

	result.Status = StatusProcessed
	return result, nil
}

// ProcessFiles runs ProcessFile over every path, continuing past any
// individual failure: a per-file error is logged and recorded as a failed
// result rather than aborting the remaining files.
func (e *Engine) ProcessFiles(paths []string) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		result, err := e.ProcessFile(path)
		if err != nil {
			log.Warn("file processing error", logging.KeyFile, path, logging.KeyError, err.Error())
			result = FileResult{File: path, Status: StatusFailed, Reason: err.Error()}
		}
		results = append(results, result)
	}
	return results
}

// validatedName builds the "<stem>_VALIDATED_<YYYYMMDD_HHMMSS>_<run_id><suffix>"
// published filename from the original path, the run's UTC timestamp, and
// its run_id.
func validatedName(path, timestampUTC, runID string) string {
	base := filepath.Base(path)
	suffix := filepath.Ext(base)
	stem := strings.TrimSuffix(base, suffix)

	t, err := time.Parse(time.RFC3339, timestampUTC)
	if err != nil {
		t = time.Now().UTC()
	}
	return fmt.Sprintf("%s_VALIDATED_%s_%s%s", stem, t.Format("20060102_150405"), runID, suffix)
}

func writeReportSidecar(publishedPath string, rep report.PipelineReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	sidecarPath := publishedPath + ".json"
	if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
		return fmt.Errorf("write report sidecar: %w", err)
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s to %s: %w", srcPath, destPath, err)
	}
	return dst.Close()
}
