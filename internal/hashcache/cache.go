// Package hashcache implements the content-addressed, atomically persisted
// cache that lets the pipeline engine skip unchanged files between runs.
package hashcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const hashChunkSize = 1 << 20 // 1 MiB

// Entry is the persisted state for one tracked file.
type Entry struct {
	Hash          string `json:"hash"`
	LastValidated string `json:"last_validated"`
	HadErrors     bool   `json:"had_errors"`
}

// Cache is a mapping of absolute file path to Entry, persisted atomically
// to a JSON file. The zero value is not usable; construct with Load.
type Cache struct {
	path  string
	mu    sync.Mutex
	data  map[string]Entry
	// pending holds hashes computed by HasChanged but not yet committed by
	// MarkValidated, keyed by the same canonical path, so a MarkValidated
	// that follows HasChanged reuses the digest instead of hashing again.
	pending map[string]string
	dirty   bool
	now     func() time.Time
}

// Load constructs a Cache backed by path. A missing file starts an empty
// cache silently. An unreadable, corrupt, or non-object file is non-fatal:
// the cache starts empty and warn is called with a human-readable reason
// (warn may be nil).
func Load(path string, warn func(string)) *Cache {
	c := &Cache{
		path:    path,
		data:    make(map[string]Entry),
		pending: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) && warn != nil {
			warn(fmt.Sprintf("read cache %s: %v", path, err))
		}
		return c
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if warn != nil {
			warn(fmt.Sprintf("cache %s is not a JSON object, starting empty: %v", path, err))
		}
		return c
	}

	for key, value := range parsed {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			// Per-entry type mismatch: drop silently, keep the rest.
			continue
		}
		c.data[key] = entry
	}

	return c
}

// HasChanged resolves path to its absolute canonical form, streams its
// SHA-256 digest in 1 MiB chunks, stages the digest for a following
// MarkValidated call, and reports whether it differs from the stored entry.
func (c *Cache) HasChanged(path string) (bool, error) {
	abs, err := canonicalPath(path)
	if err != nil {
		return false, err
	}

	digest, err := hashFile(abs)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[abs] = digest

	entry, ok := c.data[abs]
	return !ok || entry.Hash != digest, nil
}

// MarkValidated writes (or refreshes) the entry for path, using the hash
// staged by a prior HasChanged call if present, otherwise recomputing it.
// It marks the cache dirty; call Save to persist.
func (c *Cache) MarkValidated(path string, hadErrors bool) error {
	abs, err := canonicalPath(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	digest, staged := c.pending[abs]
	c.mu.Unlock()

	if !staged {
		digest, err = hashFile(abs)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, abs)
	c.data[abs] = Entry{
		Hash:          digest,
		LastValidated: c.now().Format(time.RFC3339),
		HadErrors:     hadErrors,
	}
	c.dirty = true
	return nil
}

// Get returns the entry for path, if any.
func (c *Cache) Get(path string) (Entry, bool) {
	abs, err := canonicalPath(path)
	if err != nil {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[abs]
	return entry, ok
}

// Remove deletes the entry for path, if any, and marks the cache dirty.
func (c *Cache) Remove(path string) {
	abs, err := canonicalPath(path)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[abs]; ok {
		delete(c.data, abs)
		c.dirty = true
	}
}

// Save is a no-op if the cache is not dirty. Otherwise it writes the whole
// mapping, sorted-keys and 2-space indented, to a temp file in the same
// directory as the cache file, fsyncs it, and renames it over the target.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) saveLocked() error {
	if !c.dirty {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace cache file: %w", err)
	}

	c.dirty = false
	return nil
}

// Close saves the cache if dirty, mirroring the original's context-manager
// save-on-exit convenience as an io.Closer.
func (c *Cache) Close() error {
	return c.Save()
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func hashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ErrNotFound indicates the path given to HasChanged is not a regular file.
var ErrNotFound = fmt.Errorf("not a regular file")
