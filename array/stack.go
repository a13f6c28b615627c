package array

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ExpandTask adds a leading axis of length one to a chunk.
type ExpandTask struct {
	Src   Key
	DType DType
}

func (t ExpandTask) Deps() []Key  { return []Key{t.Src} }
func (t ExpandTask) Kind() string { return "stack" }

func (t ExpandTask) Run(_ context.Context, deps []*Dense) (*Dense, error) {
	src := deps[0].AsType(t.DType)
	return src.Reshape(append([]int{1}, src.shape...)...)
}

// Stack joins arrays of equal shape and chunking along a new leading axis.
// Each input becomes one chunk along that axis. Mixed dtypes are promoted.
func Stack(arrs ...*Array) (*Array, error) {
	if len(arrs) == 0 {
		return nil, errors.New("array: stack needs at least one array")
	}
	first := arrs[0]
	if first.Rank()+1 > maxRank {
		return nil, fmt.Errorf("array: stacking rank %d arrays exceeds rank %d", first.Rank(), maxRank)
	}

	dt := first.dtype
	names := make([]any, 0, len(arrs))
	for _, a := range arrs {
		if !slices.Equal(a.shape, first.shape) {
			return nil, fmt.Errorf("%w: cannot stack %v with %v", ErrShapeMismatch, a.shape, first.shape)
		}
		if !sameChunks(a.chunks, first.chunks) {
			return nil, fmt.Errorf("%w: cannot stack chunks %v with %v", ErrShapeMismatch, a.chunks, first.chunks)
		}
		dt = Promote(dt, a.dtype)
		names = append(names, a.name)
	}

	name := "stack-" + Tokenize(names...)
	graphs := make([]Graph, 0, len(arrs)+1)
	layer := make(Graph)
	for b, a := range arrs {
		graphs = append(graphs, a.graph)
		for _, k := range a.Keys() {
			idx := append([]int{b}, k.Index()...)
			layer[NewKey(name, idx...)] = ExpandTask{Src: k, DType: dt}
		}
	}
	graphs = append(graphs, layer)

	ones := make([]int, len(arrs))
	for i := range ones {
		ones[i] = 1
	}
	chunks := append([][]int{ones}, first.chunks...)
	shape := append([]int{len(arrs)}, first.shape...)
	return New(name, Merge(graphs...), chunks, dt, shape)
}
