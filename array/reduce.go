package array

import (
	"context"
	"math"
	"sync"
)

// Stats summarizes the elements of an array.
type Stats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns Sum/Count, or NaN for an empty array.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

// Merge combines two partial summaries.
func (s Stats) Merge(o Stats) Stats {
	if o.Count == 0 {
		return s
	}
	if s.Count == 0 {
		return o
	}
	return Stats{
		Count: s.Count + o.Count,
		Sum:   s.Sum + o.Sum,
		Min:   math.Min(s.Min, o.Min),
		Max:   math.Max(s.Max, o.Max),
	}
}

// StatsOf summarizes an in-memory array.
func StatsOf(d *Dense) Stats {
	n := d.Len()
	if n == 0 {
		return Stats{}
	}
	s := Stats{Count: n, Min: math.Inf(1), Max: math.Inf(-1)}
	for i := range n {
		v := d.Float(i)
		s.Sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	return s
}

// Stats evaluates a chunk by chunk and summarizes it without assembling the
// whole array in memory.
func (a *Array) Stats(ctx context.Context, opts ...Option) (Stats, error) {
	cfg := newConfig(opts)
	var (
		mu  sync.Mutex
		out Stats
	)
	err := a.forEachChunk(ctx, cfg, "reduce", func(_ context.Context, _ []Slice, chunk *Dense) error {
		s := StatsOf(chunk)
		mu.Lock()
		out = out.Merge(s)
		mu.Unlock()
		return nil
	})
	return out, err
}

// Sum returns the sum of all elements.
func (a *Array) Sum(ctx context.Context, opts ...Option) (float64, error) {
	s, err := a.Stats(ctx, opts...)
	return s.Sum, err
}

// Mean returns the mean of all elements.
func (a *Array) Mean(ctx context.Context, opts ...Option) (float64, error) {
	s, err := a.Stats(ctx, opts...)
	if err != nil {
		return 0, err
	}
	return s.Mean(), nil
}

// Min returns the smallest element.
func (a *Array) Min(ctx context.Context, opts ...Option) (float64, error) {
	s, err := a.Stats(ctx, opts...)
	return s.Min, err
}

// Max returns the largest element.
func (a *Array) Max(ctx context.Context, opts ...Option) (float64, error) {
	s, err := a.Stats(ctx, opts...)
	return s.Max, err
}
