package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory implements Store using an in-memory map.
//
// Consistency: Immediate.
// Memory is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Put writes data to the given path, replacing any existing object.
func (m *Memory) Put(_ context.Context, path string, r io.Reader) error {
	normalized, valid := NormalizePath(path)
	if !valid {
		return ErrInvalidPath
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[normalized] = data
	m.mu.Unlock()

	return nil
}

// Get retrieves a copy of the object at path.
func (m *Memory) Get(_ context.Context, path string) (io.ReadCloser, error) {
	normalized, valid := NormalizePath(path)
	if !valid {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	data, exists := m.data[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Exists checks whether a path exists.
func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	normalized, valid := NormalizePath(path)
	if !valid {
		return false, ErrInvalidPath
	}

	m.mu.RLock()
	_, exists := m.data[normalized]
	m.mu.RUnlock()

	return exists, nil
}

// List returns the sorted paths under prefix.
func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	normalized, valid := NormalizePrefix(prefix)
	if !valid {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for path := range m.data {
		if strings.HasPrefix(path, normalized) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	return paths, nil
}

// Delete removes the path if it exists.
func (m *Memory) Delete(_ context.Context, path string) error {
	normalized, valid := NormalizePath(path)
	if !valid {
		return ErrInvalidPath
	}

	m.mu.Lock()
	delete(m.data, normalized)
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var _ Store = (*Memory)(nil)
