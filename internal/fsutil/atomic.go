// Package fsutil provides the durable file primitives used by deployment:
// atomic single-file writes, atomic copies and content hashing.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/confsync/confsync/internal/logging"
)

const (
	// DirPerm is the permission for created directories (rwxr-x---).
	DirPerm = 0o750
	// FilePerm is the permission for written files (rw-r-----).
	FilePerm = 0o640
)

// Writer is the deployment seam handed to adapters. AtomicWriter is the
// production implementation.
type Writer interface {
	Write(path string, content []byte) error
	Copy(source, dest string) error
	EnsureDir(dir string) error
	Hash(path string) (string, error)
}

// AtomicWriter writes and copies files by staging into a sibling temp path
// and renaming into place, so no destination is ever observable in a
// partially-written state.
type AtomicWriter struct{}

// NewAtomicWriter creates an AtomicWriter.
func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{}
}

// Write atomically replaces path with content, creating the parent
// directory if needed.
func (w *AtomicWriter) Write(path string, content []byte) error {
	if err := w.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %q: %w", path, err)
	}
	if err := os.Chmod(tmpPath, FilePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file for %q: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file into %q: %w", path, err)
	}

	logging.Debug("wrote file", logging.Path(path), logging.Count(len(content)))
	return nil
}

// Copy atomically replaces dest with the content of source, preserving the
// source file's permissions.
func (w *AtomicWriter) Copy(source, dest string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat source %q: %w", source, err)
	}

	// #nosec G304 - source comes from the managed repository mirror
	srcFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source %q: %w", source, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := w.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", dest, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, srcFile); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to copy content to %q: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %q: %w", dest, err)
	}
	if err := os.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file for %q: %w", dest, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file into %q: %w", dest, err)
	}

	logging.Debug("copied file", logging.Path(dest))
	return nil
}

// EnsureDir creates dir and any missing parents.
func (w *AtomicWriter) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	return nil
}

// Hash returns the hex-encoded SHA-256 digest of the file at path. It is
// read-only and used purely for diffing.
func (w *AtomicWriter) Hash(path string) (string, error) {
	// #nosec G304 - path comes from managed mappings
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q for hashing: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA-256 digest of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
