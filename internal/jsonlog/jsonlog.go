// Package jsonlog implements the append-only, size-bounded JSONL event log
// that the pipeline engine writes plugin results to.
package jsonlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/validforge/validpipe/internal/logging"
)

var log = logging.L("jsonlog")

const defaultMaxBytes = 76_800

// Logger appends one JSON object per line to a file, rotating it once the
// file grows past maxBytes by discarding the oldest complete lines and
// keeping the newest ones — the reverse of a backup-file rotator.
type Logger struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
}

// New returns a Logger appending to path. maxBytes <= 0 selects the default
// of 76,800 bytes.
func New(path string, maxBytes int64) *Logger {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Logger{path: path, maxBytes: maxBytes}
}

// Append serializes record as a single JSON line, appends it to the log
// file (creating parent directories as needed), and rotates the file if it
// now exceeds maxBytes. Append and rotation are protected by a process-local
// mutex.
func (l *Logger) Append(record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	if bytes.ContainsRune(line, '\n') {
		return fmt.Errorf("log record serialized with an embedded newline")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append log record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() > l.maxBytes {
		if err := l.rotateLocked(int64(len(line))); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}
	return nil
}

// rotateLocked reads the file from the end and retains the longest suffix
// of complete lines whose total encoded length (with terminating newlines)
// fits within maxBytes, discarding a partial leading line. If the single
// most recent record alone exceeds maxBytes, it is kept verbatim and a
// warning is logged.
func (l *Logger) rotateLocked(lastRecordSize int64) error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read log file for rotation: %w", err)
	}

	retained := tailWithinBudget(raw, l.maxBytes)
	if int64(len(retained)) > l.maxBytes && lastRecordSize > l.maxBytes {
		log.Warn("single log record exceeds max_bytes, keeping it verbatim", "size", lastRecordSize, "maxBytes", l.maxBytes)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp log file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(retained); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp log file: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace log file: %w", err)
	}
	return nil
}

// tailWithinBudget returns the longest suffix of data made of complete
// lines (each ending in '\n') whose total length does not exceed budget. If
// even the single last line exceeds budget, that line alone is returned.
func tailWithinBudget(data []byte, budget int64) []byte {
	lines := splitKeepingTerminator(data)
	if len(lines) == 0 {
		return data
	}

	// Newest line is always kept, even if it alone exceeds budget.
	start := len(lines) - 1
	total := int64(len(lines[start]))

	for i := start - 1; i >= 0; i-- {
		total += int64(len(lines[i]))
		if total > budget {
			break
		}
		start = i
	}

	var buf bytes.Buffer
	for _, line := range lines[start:] {
		buf.Write(line)
	}
	return buf.Bytes()
}

// splitKeepingTerminator splits data into lines, each retaining its
// trailing '\n'. A trailing partial line without a terminator is dropped.
func splitKeepingTerminator(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	return lines
}
