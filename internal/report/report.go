// Package report defines the canonical JSON shapes the pipeline engine
// emits: the per-file report sidecar and the aggregated JSONL log record.
package report

import "github.com/validforge/validpipe/internal/pluginapi"

// Summary aggregates the per-file plugin results.
type Summary struct {
	PluginsRun  int `json:"plugins_run"`
	TotalErrors int `json:"total_errors"`
	AutoFixed   int `json:"auto_fixed"`
}

// PipelineReport is the per-file report sidecar written alongside a
// published file.
type PipelineReport struct {
	RunID         string                   `json:"run_id"`
	FileIn        string                   `json:"file_in"`
	FileOut       string                   `json:"file_out"`
	TimestampUTC  string                   `json:"timestamp_utc"`
	Summary       Summary                  `json:"summary"`
	PluginResults []pluginapi.PluginResult `json:"plugin_results"`
}

// NewPipelineReport builds a PipelineReport from its per-plugin results,
// computing the summary fields so a caller can never let them drift from
// the underlying results (testable property: report completeness).
func NewPipelineReport(runID, fileIn, fileOut, timestampUTC string, results []pluginapi.PluginResult) PipelineReport {
	summary := Summary{PluginsRun: len(results)}
	for _, r := range results {
		summary.TotalErrors += len(r.Errors)
		summary.AutoFixed += r.AutoFixedCount
	}
	return PipelineReport{
		RunID:         runID,
		FileIn:        fileIn,
		FileOut:       fileOut,
		TimestampUTC:  timestampUTC,
		Summary:       summary,
		PluginResults: results,
	}
}

// LogRecord is one aggregated JSONL event log entry, emitted once per
// plugin result for a processed file.
type LogRecord struct {
	RunID        string                      `json:"run_id"`
	TimestampUTC string                      `json:"timestamp_utc"`
	FileIn       string                      `json:"file_in"`
	FileOut      string                      `json:"file_out"`
	PluginID     string                      `json:"plugin_id"`
	PluginName   string                      `json:"plugin_name"`
	Success      bool                        `json:"success"`
	DurationS    float64                     `json:"duration_s"`
	AutoFixed    int                         `json:"auto_fixed"`
	Errors       []pluginapi.ValidationError `json:"errors"`
}

// LogRecordsFor converts a report's plugin results into the aggregated
// log-record shape, one per plugin, in the same order they ran.
func LogRecordsFor(r PipelineReport) []LogRecord {
	records := make([]LogRecord, len(r.PluginResults))
	for i, res := range r.PluginResults {
		records[i] = LogRecord{
			RunID:        r.RunID,
			TimestampUTC: r.TimestampUTC,
			FileIn:       r.FileIn,
			FileOut:      r.FileOut,
			PluginID:     res.PluginID,
			PluginName:   res.Name,
			Success:      res.Success,
			DurationS:    res.DurationSeconds,
			AutoFixed:    res.AutoFixedCount,
			Errors:       res.Errors,
		}
	}
	return records
}
