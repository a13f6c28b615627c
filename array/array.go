// Package array is a small deferred, chunked array engine.
//
// An Array is a chunk grid plus a task graph: every chunk position maps to a
// Task that produces that chunk when evaluated. Nothing is computed until
// Compute, Store or a reduction is called. Chunks are evaluated concurrently
// and assembled by position, so completion order never matters.
package array

import (
	"errors"
	"fmt"
	"slices"
)

// ErrMissingChunk indicates a chunk grid position without a task.
var ErrMissingChunk = errors.New("array: graph has no task for chunk")

// Value is an array that is either deferred (*Array) or in memory (*Dense).
type Value interface {
	DType() DType
	Shape() []int
	Rank() int
}

var (
	_ Value = (*Array)(nil)
	_ Value = (*Dense)(nil)
)

// IsDeferred reports whether v is a deferred array.
func IsDeferred(v Value) bool {
	_, ok := v.(*Array)
	return ok
}

// Array is a deferred chunked array.
type Array struct {
	name   string
	graph  Graph
	chunks [][]int
	dtype  DType
	shape  []int
}

// New constructs a deferred array from an explicit task graph.
//
// chunks holds the chunk sizes along each axis and must sum to shape. The
// graph must contain a task for every chunk grid position of name; entries
// for other names are dependencies and are kept as is.
func New(name string, graph Graph, chunks [][]int, dtype DType, shape []int) (*Array, error) {
	if name == "" {
		return nil, errors.New("array: name must not be empty")
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("array: invalid dtype %v", dtype)
	}
	if len(chunks) != len(shape) {
		return nil, fmt.Errorf("%w: %d chunk axes for shape %v", ErrShapeMismatch, len(chunks), shape)
	}
	if len(shape) > maxRank {
		return nil, fmt.Errorf("array: rank %d exceeds %d", len(shape), maxRank)
	}
	for axis, sizes := range chunks {
		total := 0
		for _, s := range sizes {
			if s < 0 {
				return nil, fmt.Errorf("array: negative chunk size on axis %d", axis)
			}
			total += s
		}
		if total != shape[axis] {
			return nil, fmt.Errorf("%w: chunks on axis %d sum to %d, shape is %d", ErrShapeMismatch, axis, total, shape[axis])
		}
	}

	a := &Array{
		name:   name,
		graph:  graph,
		chunks: cloneChunks(chunks),
		dtype:  dtype,
		shape:  slices.Clone(shape),
	}
	for _, k := range a.Keys() {
		if _, ok := graph[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingChunk, k)
		}
	}
	return a, nil
}

// NormalizeChunks expands a uniform chunk shape into per-axis chunk sizes,
// clipping the last chunk of each axis to the shape.
func NormalizeChunks(chunkShape, shape []int) ([][]int, error) {
	if len(chunkShape) != len(shape) {
		return nil, fmt.Errorf("%w: chunk shape %v for shape %v", ErrShapeMismatch, chunkShape, shape)
	}
	out := make([][]int, len(shape))
	for axis, n := range shape {
		c := chunkShape[axis]
		if c <= 0 {
			return nil, fmt.Errorf("array: chunk size must be positive, got %d on axis %d", c, axis)
		}
		sizes := []int{}
		for off := 0; off < n; off += c {
			sizes = append(sizes, min(c, n-off))
		}
		out[axis] = sizes
	}
	return out, nil
}

// Name returns the array name used in its graph keys.
func (a *Array) Name() string { return a.name }

// Graph returns the task graph. It must not be modified.
func (a *Array) Graph() Graph { return a.graph }

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the shape.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Chunks returns a copy of the per-axis chunk sizes.
func (a *Array) Chunks() [][]int { return cloneChunks(a.chunks) }

// NumBlocks returns the chunk grid dimensions.
func (a *Array) NumBlocks() []int {
	out := make([]int, len(a.chunks))
	for i, c := range a.chunks {
		out[i] = len(c)
	}
	return out
}

// Keys returns every chunk key in row-major grid order.
func (a *Array) Keys() []Key {
	grid := a.NumBlocks()
	n := numElements(grid)
	if len(grid) == 0 || n == 0 {
		if len(grid) == 0 {
			return []Key{NewKey(a.name)}
		}
		return nil
	}
	keys := make([]Key, 0, n)
	idx := make([]int, len(grid))
	for {
		keys = append(keys, NewKey(a.name, idx...))
		axis := len(grid) - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < grid[axis] {
				break
			}
			idx[axis] = 0
			axis--
		}
		if axis < 0 {
			return keys
		}
	}
}

// ChunkRegion returns the element ranges covered by the chunk at index.
func (a *Array) ChunkRegion(index []int) []Slice {
	region := make([]Slice, len(index))
	for axis, i := range index {
		start := 0
		for _, s := range a.chunks[axis][:i] {
			start += s
		}
		region[axis] = Slice{Start: start, Stop: start + a.chunks[axis][i], Step: 1}
	}
	return region
}

// ChunkShape returns the shape of the chunk at index.
func (a *Array) ChunkShape(index []int) []int {
	out := make([]int, len(index))
	for axis, i := range index {
		out[axis] = a.chunks[axis][i]
	}
	return out
}

// String describes the array without evaluating it.
func (a *Array) String() string {
	return fmt.Sprintf("array.Array<%s, shape=%v, dtype=%s, chunksize=%v>", a.name, a.shape, a.dtype, a.chunkSize())
}

func (a *Array) chunkSize() []int {
	out := make([]int, len(a.chunks))
	for i, c := range a.chunks {
		if len(c) > 0 {
			out[i] = c[0]
		}
	}
	return out
}

func cloneChunks(chunks [][]int) [][]int {
	out := make([][]int, len(chunks))
	for i, c := range chunks {
		out[i] = slices.Clone(c)
	}
	return out
}
