package array

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// maxRank bounds the number of chunk-grid dimensions a Key can address.
const maxRank = 4

// Key identifies one chunk of a named array: (name, i, j, ...).
// Keys are comparable and can be used directly as map keys.
type Key struct {
	Name   string
	rank   int
	coords [maxRank]int
}

// NewKey builds a key from an array name and chunk-grid coordinates.
func NewKey(name string, index ...int) Key {
	if len(index) > maxRank {
		panic(fmt.Sprintf("array: key rank %d exceeds %d", len(index), maxRank))
	}
	k := Key{Name: name, rank: len(index)}
	copy(k.coords[:], index)
	return k
}

// Index returns the chunk-grid coordinates.
func (k Key) Index() []int {
	out := make([]int, k.rank)
	copy(out, k.coords[:k.rank])
	return out
}

// String renders the key as "name,i,j".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Name)
	for i := range k.rank {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(k.coords[i]))
	}
	return b.String()
}

// Task is a description of the work producing one chunk.
//
// Tasks are plain values: everything a task needs is in its fields, so a
// scheduler may run them in any order, concurrently, or more than once.
type Task interface {
	// Deps lists the chunks whose values Run receives, in order.
	Deps() []Key

	// Run computes the chunk from its dependency values.
	Run(ctx context.Context, deps []*Dense) (*Dense, error)
}

// Kinder is implemented by tasks that report a kind label for metrics.
type Kinder interface {
	Kind() string
}

// Graph maps chunk keys to the tasks that produce them.
type Graph map[Key]Task

// Merge returns a new graph containing every entry of the given graphs.
// Identical keys are assumed to describe identical work.
func Merge(graphs ...Graph) Graph {
	n := 0
	for _, g := range graphs {
		n += len(g)
	}
	out := make(Graph, n)
	for _, g := range graphs {
		for k, t := range g {
			out[k] = t
		}
	}
	return out
}

func taskKind(t Task) string {
	if k, ok := t.(Kinder); ok {
		return k.Kind()
	}
	return "task"
}
