// Package storage provides the object stores rasters are persisted in.
//
// A raster is a set of objects under a common prefix (header, block blobs,
// block index). Stores only move bytes; they know nothing about rasters.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Store abstracts the underlying object storage system.
//
// Unlike snapshot-oriented stores, raster stores are mutable: Put replaces
// any existing object at the path, because windowed writes rewrite blocks.
type Store interface {
	// Put writes data to the given path, replacing any existing object.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves data from the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error
}

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested object does not exist.
	ErrNotFound = errNotFound{}

	// ErrInvalidPath indicates a path that is empty or would escape the storage root.
	ErrInvalidPath = errors.New("invalid path: escapes storage root")
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// ReadAll fetches the object at path fully into memory.
func ReadAll(ctx context.Context, s Store, path string) ([]byte, error) {
	rc, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// DeletePrefix removes every object under prefix.
func DeletePrefix(ctx context.Context, s Store, prefix string) error {
	paths, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := s.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// NormalizePath cleans a file path into slash form without a leading slash.
// It reports false for empty paths and paths escaping the root.
func NormalizePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." || cleaned == "" {
		return "", false
	}

	return cleaned, true
}

// NormalizePrefix is NormalizePath for list prefixes: the empty prefix is
// valid and a trailing slash is kept, so "a/" does not match "ab/".
func NormalizePrefix(path string) (string, bool) {
	if path == "" {
		return "", true
	}

	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == "." {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	if strings.HasSuffix(path, "/") {
		cleaned += "/"
	}

	return cleaned, true
}
