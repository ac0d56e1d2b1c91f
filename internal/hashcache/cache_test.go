package hashcache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCacheDeterminismAfterMarkValidatedAndReload(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	target := filepath.Join(dir, "example.txt")
	writeFile(t, target, "alpha")

	cache := Load(cachePath, nil)
	changed, err := cache.HasChanged(target)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if !changed {
		t.Fatal("expected unseen file to report changed")
	}

	if err := cache.MarkValidated(target, false); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if err := cache.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := Load(cachePath, nil)
	changed, err = reloaded.HasChanged(target)
	if err != nil {
		t.Fatalf("HasChanged after reload: %v", err)
	}
	if changed {
		t.Fatal("expected unchanged file to report false after mark+save+reload")
	}
}

func TestCacheSensitivityToContentChange(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	target := filepath.Join(dir, "example.txt")
	writeFile(t, target, "alpha")

	cache := Load(cachePath, nil)
	if _, err := cache.HasChanged(target); err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if err := cache.MarkValidated(target, false); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}

	writeFile(t, target, "beta")

	changed, err := cache.HasChanged(target)
	if err != nil {
		t.Fatalf("HasChanged after mutation: %v", err)
	}
	if !changed {
		t.Fatal("expected modified file to report changed")
	}
}

func TestCacheDeferredMutationLeavesEntryUntouchedUntilMarkValidated(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	target := filepath.Join(dir, "example.txt")
	writeFile(t, target, "alpha")

	cache := Load(cachePath, nil)
	if _, err := cache.HasChanged(target); err != nil {
		t.Fatalf("HasChanged: %v", err)
	}

	if _, ok := cache.Get(target); ok {
		t.Fatal("HasChanged alone must not write an entry (deferred-mutation semantics)")
	}
	if err := cache.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(cachePath); err == nil {
		t.Fatal("Save before any MarkValidated should be a no-op and not create a file")
	}
}

func TestCacheAtomicPersistenceSurvivesInterruptedWrite(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	target := filepath.Join(dir, "example.txt")
	writeFile(t, target, "alpha")

	cache := Load(cachePath, nil)
	if _, err := cache.HasChanged(target); err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if err := cache.MarkValidated(target, false); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if err := cache.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	before, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}

	// Simulate a crash between temp-write and rename: a stray temp file must
	// never disturb the prior committed cache file.
	strayTmp := filepath.Join(dir, "cache.json.stray.tmp")
	writeFile(t, strayTmp, "not json at all")

	after, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache after stray temp write: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("prior cache file must remain intact and unaffected by an interrupted write")
	}

	reloaded := Load(cachePath, nil)
	if _, ok := reloaded.Get(target); !ok {
		t.Fatal("prior cache file must still be parseable after a simulated interrupted write")
	}
}

func TestCacheCorruptFileLoadsEmptyWithWarning(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	writeFile(t, cachePath, "{not valid json")

	var warnings []string
	cache := Load(cachePath, func(msg string) { warnings = append(warnings, msg) })

	if len(cache.data) != 0 {
		t.Fatalf("expected empty cache after corrupt load, got %d entries", len(cache.data))
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for corrupt cache file")
	}
}

func TestCacheDropsEntriesWithTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	writeFile(t, cachePath, `{"good.txt": {"hash":"abc","last_validated":"2024-01-01T00:00:00Z","had_errors":false}, "bad.txt": {"hash": 123}}`)

	cache := Load(cachePath, nil)
	if len(cache.data) != 1 {
		t.Fatalf("expected only the well-formed entry to survive, got %d entries", len(cache.data))
	}
	if _, ok := cache.data["good.txt"]; !ok {
		t.Fatal("well-formed entry should have loaded")
	}
}

func TestHasChangedRejectsNonRegularFile(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")

	cache := Load(cachePath, nil)
	if _, err := cache.HasChanged(dir); err == nil {
		t.Fatal("expected an error for a directory path")
	}
}
