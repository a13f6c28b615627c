package lazyraster

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/testutil"
)

const samplePath = "sample"

// sampleStore returns a memory store holding the sample raster and its pixels.
func sampleStore(t *testing.T) (*storage.Memory, *array.Dense) {
	t.Helper()
	store := storage.NewMemory()
	data, err := testutil.WriteSample(t.Context(), store, samplePath)
	if err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	return store, data
}

func compute(t *testing.T, a *array.Array, opts ...array.Option) *array.Dense {
	t.Helper()
	d, err := a.Compute(t.Context(), opts...)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return d
}

func assertEqual(t *testing.T, got, want *array.Dense) {
	t.Helper()
	if got.DType() != want.DType() {
		t.Fatalf("dtype = %s, want %s", got.DType(), want.DType())
	}
	if !equalInts(got.Shape(), want.Shape()) {
		t.Fatalf("shape = %v, want %v", got.Shape(), want.Shape())
	}
	if !got.Equal(want) {
		for i := range got.Len() {
			if got.Float(i) != want.Float(i) {
				t.Fatalf("values differ at flat index %d: got %v, want %v", i, got.Float(i), want.Float(i))
			}
		}
		t.Fatal("arrays differ")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Store wrappers
// -----------------------------------------------------------------------------

var errInjected = errors.New("injected store failure")

// countingStore counts Gets and tracks how many Puts run at once.
type countingStore struct {
	storage.Store

	gets atomic.Int64

	mu          sync.Mutex
	inflight    int
	maxInflight int
}

func (s *countingStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, path)
}

func (s *countingStore) Put(ctx context.Context, path string, r io.Reader) error {
	s.mu.Lock()
	s.inflight++
	s.maxInflight = max(s.maxInflight, s.inflight)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()
	return s.Store.Put(ctx, path, r)
}

// faultStore fails every Put after the first failAfter.
type faultStore struct {
	storage.Store

	failAfter int
	puts      atomic.Int64
}

func (s *faultStore) Put(ctx context.Context, path string, r io.Reader) error {
	if n := s.puts.Add(1); int(n) > s.failAfter {
		return errInjected
	}
	return s.Store.Put(ctx, path, r)
}

// countingLocker counts Lock calls.
type countingLocker struct {
	sync.Mutex
	locks atomic.Int64
}

func (l *countingLocker) Lock() {
	l.locks.Add(1)
	l.Mutex.Lock()
}
