package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalPublishCopiesFileIntoOutputDir(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "scratch.txt")
	if err := os.WriteFile(src, []byte("published contents"), 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	local := NewLocal(outDir)
	dest, err := local.Publish(context.Background(), src, "report_VALIDATED_20260101_000000_01ABCDEFGHJKMNPQRSTVWXYZ.txt")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if string(data) != "published contents" {
		t.Fatalf("unexpected published contents: %q", data)
	}
}

func TestLocalPublishRejectsPathTraversal(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "scratch.txt")
	if err := os.WriteFile(src, []byte("x"), 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	local := NewLocal(outDir)
	if _, err := local.Publish(context.Background(), src, "../escape.txt"); err == nil {
		t.Fatal("expected an error for a destination name that escapes the output directory")
	}
}
