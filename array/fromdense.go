package array

import (
	"context"
	"fmt"
)

// ConstTask yields a fixed chunk.
type ConstTask struct {
	Value *Dense
}

func (t ConstTask) Deps() []Key  { return nil }
func (t ConstTask) Kind() string { return "const" }

func (t ConstTask) Run(context.Context, []*Dense) (*Dense, error) {
	return t.Value, nil
}

// FromDense splits an in-memory array into a deferred one with uniform
// chunks of chunkShape. The chunks are copies of d.
func FromDense(d *Dense, chunkShape ...int) (*Array, error) {
	if d.Rank() > maxRank {
		return nil, fmt.Errorf("array: rank %d exceeds %d", d.Rank(), maxRank)
	}
	chunks, err := NormalizeChunks(chunkShape, d.shape)
	if err != nil {
		return nil, err
	}
	name := "array-" + Tokenize(d.dtype.String(), fmt.Sprint(d.shape), fmt.Sprint(chunkShape), d.data)

	a := &Array{name: name, chunks: chunks, dtype: d.dtype, shape: d.Shape()}
	graph := make(Graph)
	for _, k := range a.Keys() {
		region := a.ChunkRegion(k.Index())
		start := make([]int, len(region))
		count := make([]int, len(region))
		for i, s := range region {
			start[i], count[i] = s.Start, s.Len()
		}
		chunk, err := d.Extract(start, count)
		if err != nil {
			return nil, err
		}
		graph[k] = ConstTask{Value: chunk}
	}
	return New(name, graph, chunks, d.dtype, d.shape)
}
