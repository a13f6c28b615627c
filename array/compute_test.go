package array

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countTask yields a constant chunk and counts its executions.
type countTask struct {
	calls *atomic.Int64
	value *Dense
	err   error
}

func (t countTask) Deps() []Key { return nil }

func (t countTask) Run(context.Context, []*Dense) (*Dense, error) {
	t.calls.Add(1)
	if t.err != nil {
		return nil, t.err
	}
	return t.value, nil
}

func countingArray(t *testing.T, name string, calls *atomic.Int64, failAt []int, failErr error) *Array {
	t.Helper()
	chunks := [][]int{{2, 2}, {3, 3}}
	g := make(Graph)
	for i := range 2 {
		for j := range 2 {
			v := NewDense(Uint8, 2, 3)
			v.Fill(float64(i*2 + j + 1))
			task := countTask{calls: calls, value: v}
			if failAt != nil && failAt[0] == i && failAt[1] == j {
				task.err = failErr
			}
			g[NewKey(name, i, j)] = task
		}
	}
	a, err := New(name, g, chunks, Uint8, []int{4, 6})
	require.NoError(t, err)
	return a
}

func TestComputeAssemblesByPosition(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)

	got, err := a.Compute(context.Background(), WithWorkers(4))
	require.NoError(t, err)
	vals, err := Values[uint8](got)
	require.NoError(t, err)
	assert.Equal(t, []uint8{
		1, 1, 1, 2, 2, 2,
		1, 1, 1, 2, 2, 2,
		3, 3, 3, 4, 4, 4,
		3, 3, 3, 4, 4, 4,
	}, vals)
	assert.Equal(t, int64(4), calls.Load())
}

func TestComputeSharedDependencyRunsOnce(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)

	sum, err := a.Binary(OpAdd, a)
	require.NoError(t, err)
	got, err := sum.Compute(context.Background(), WithWorkers(1))
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, int64(8), got.Int(got.Len()-1))
}

func TestComputePropagatesTaskError(t *testing.T) {
	var calls atomic.Int64
	errBoom := errors.New("boom")
	a := countingArray(t, "src", &calls, []int{1, 0}, errBoom)

	_, err := a.Compute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, NewKey("src", 1, 0), chunkErr.Key)
}

func TestComputeRejectsWrongChunkShape(t *testing.T) {
	var calls atomic.Int64
	g := Graph{NewKey("bad", 0): countTask{calls: &calls, value: NewDense(Uint8, 3)}}
	a, err := New("bad", g, [][]int{{4}}, Uint8, []int{4})
	require.NoError(t, err)

	_, err = a.Compute(context.Background())
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestComputeHonorsCancellation(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Compute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeWithCacheReusesChunks(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)
	cache, err := NewCache(16)
	require.NoError(t, err)

	first, err := a.Compute(context.Background(), WithCache(cache))
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, 4, cache.Len())
	assert.True(t, cache.Contains(NewKey("src", 1, 1)))

	second, err := a.Compute(context.Background(), WithCache(cache))
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load(), "cached chunks are not recomputed")
	assert.True(t, first.Equal(second))
}

func TestNewCacheRejectsBadSize(t *testing.T) {
	_, err := NewCache(0)
	assert.Error(t, err)
}

type recordingTarget struct {
	mu      sync.Mutex
	regions [][]Slice
	active  atomic.Int32
	peak    atomic.Int32
	err     error
}

func (r *recordingTarget) SetItem(_ context.Context, region []Slice, _ *Dense) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.regions = append(r.regions, region)
	r.mu.Unlock()
	return r.err
}

func TestStoreWritesEveryChunk(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)
	target := &recordingTarget{}

	require.NoError(t, Store(context.Background(), a, target, WithWorkers(4), WithLock(true)))
	assert.Len(t, target.regions, 4)
	assert.ElementsMatch(t, [][]Slice{
		{{Start: 0, Stop: 2, Step: 1}, {Start: 0, Stop: 3, Step: 1}},
		{{Start: 0, Stop: 2, Step: 1}, {Start: 3, Stop: 6, Step: 1}},
		{{Start: 2, Stop: 4, Step: 1}, {Start: 0, Stop: 3, Step: 1}},
		{{Start: 2, Stop: 4, Step: 1}, {Start: 3, Stop: 6, Step: 1}},
	}, target.regions)
	assert.Equal(t, int32(1), target.peak.Load(), "locked writes never overlap")
}

func TestStoreWithCallerLocker(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)
	target := &recordingTarget{}
	var mu sync.Mutex

	require.NoError(t, Store(context.Background(), a, target, WithWorkers(4), WithLocker(&mu)))
	assert.Equal(t, int32(1), target.peak.Load())
}

func TestStoreStopsOnTargetError(t *testing.T) {
	var calls atomic.Int64
	a := countingArray(t, "src", &calls, nil, nil)
	errWrite := errors.New("write failed")
	target := &recordingTarget{err: errWrite}

	err := Store(context.Background(), a, target, WithWorkers(1))
	assert.ErrorIs(t, err, errWrite)
	assert.Len(t, target.regions, 1)
}
