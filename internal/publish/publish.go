// Package publish ships a validated file to its final destination: a
// required local directory, and an optional remote archival mirror chosen
// by configuration.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Publisher writes localPath to destinationName under its own namespace and
// returns the resulting location (a path or URI).
type Publisher interface {
	Publish(ctx context.Context, localPath, destinationName string) (string, error)
}

// containedPath resolves untrustedName against basePath and rejects any
// path-traversal attempt, the same guard the local backup provider in this
// codebase's lineage applies before writing caller-supplied names.
func containedPath(basePath, untrustedName string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	joined := filepath.Join(absBase, filepath.FromSlash(untrustedName))
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve destination path: %w", err)
	}
	if !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) && absJoined != absBase {
		return "", fmt.Errorf("path traversal detected: %q resolves outside base %q", untrustedName, absBase)
	}
	return absJoined, nil
}

// Local publishes into a directory on the local filesystem. It always
// runs; the engine never publishes a file without it.
type Local struct {
	BaseDir string
}

// NewLocal returns a Local publisher rooted at baseDir.
func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: filepath.Clean(baseDir)}
}

func (l *Local) Publish(ctx context.Context, localPath, destinationName string) (string, error) {
	dest, err := containedPath(l.BaseDir, destinationName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := copyFilePreservingMetadata(localPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFilePreservingMetadata(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy file contents: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}

	if err := os.Chtimes(destPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve modification time: %w", err)
	}
	return nil
}
