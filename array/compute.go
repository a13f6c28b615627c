package array

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/lazyraster/internal/observability"
)

// Option configures evaluation.
type Option func(*config)

type config struct {
	workers int
	cache   *Cache
	locker  sync.Locker
}

func newConfig(opts []Option) *config {
	cfg := &config{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	return cfg
}

// WithWorkers bounds the number of chunks evaluated concurrently.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithCache shares computed chunks across evaluations through c.
func WithCache(c *Cache) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithLock makes Store hold a mutex around every target write.
// Targets backed by a single file handle need this.
func WithLock(enabled bool) Option {
	return func(c *config) {
		if enabled {
			c.locker = &sync.Mutex{}
		} else {
			c.locker = nil
		}
	}
}

// WithLocker makes Store hold l around every target write.
func WithLocker(l sync.Locker) Option {
	return func(c *config) { c.locker = l }
}

// Cache is an LRU of computed chunks keyed by graph key.
//
// Keys embed content tokens, so a hit is only possible for identical work.
// Cached chunks are shared and must be treated as read-only.
type Cache struct {
	lru *lru.Cache[Key, *Dense]
}

// NewCache creates a cache holding up to size chunks.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[Key, *Dense](size)
	if err != nil {
		return nil, fmt.Errorf("array: cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Len returns the number of cached chunks.
func (c *Cache) Len() int { return c.lru.Len() }

// Contains reports whether k is cached.
func (c *Cache) Contains(k Key) bool { return c.lru.Contains(k) }

// Compute evaluates every chunk and assembles the result in memory.
func (a *Array) Compute(ctx context.Context, opts ...Option) (*Dense, error) {
	cfg := newConfig(opts)
	out := NewDense(a.dtype, a.shape...)

	// Chunk regions are disjoint, so concurrent pastes never overlap.
	err := a.forEachChunk(ctx, cfg, "compute", func(_ context.Context, region []Slice, chunk *Dense) error {
		offset := make([]int, len(region))
		for i, s := range region {
			offset[i] = s.Start
		}
		return out.Paste(chunk, offset)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeChunk evaluates a single chunk of the array.
func (a *Array) ComputeChunk(ctx context.Context, index []int, opts ...Option) (*Dense, error) {
	cfg := newConfig(opts)
	key := NewKey(a.name, index...)
	if _, ok := a.graph[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingChunk, key)
	}
	ev := newEvaluator(a.graph, []Key{key}, cfg.cache)
	chunk, err := ev.eval(ctx, key)
	if err != nil {
		return nil, err
	}
	return a.checkChunk(key, chunk)
}

// Target receives chunks from Store.
type Target interface {
	// SetItem writes chunk to the region of the output it covers.
	SetItem(ctx context.Context, region []Slice, chunk *Dense) error
}

// Store evaluates src chunk by chunk and writes every chunk to target.
//
// Writes happen in completion order. With WithLock or WithLocker at most one
// SetItem call runs at a time. The first error stops the remaining work; chunks
// already written are not rolled back.
func Store(ctx context.Context, src *Array, target Target, opts ...Option) error {
	cfg := newConfig(opts)
	return src.forEachChunk(ctx, cfg, "store", func(ctx context.Context, region []Slice, chunk *Dense) error {
		if cfg.locker != nil {
			start := time.Now()
			cfg.locker.Lock()
			observability.ObserveLockWait(time.Since(start).Seconds())
			defer cfg.locker.Unlock()
		}
		return target.SetItem(ctx, region, chunk)
	})
}

func (a *Array) forEachChunk(ctx context.Context, cfg *config, op string, fn func(context.Context, []Slice, *Dense) error) error {
	keys := a.Keys()
	log := zerolog.Ctx(ctx)
	log.Debug().
		Str("array", a.name).
		Str("op", op).
		Int("chunks", len(keys)).
		Int("workers", cfg.workers).
		Msg("evaluate")

	ev := newEvaluator(a.graph, keys, cfg.cache)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for _, key := range keys {
		g.Go(func() error {
			chunk, err := ev.eval(gctx, key)
			if err != nil {
				return err
			}
			defer ev.release(key)
			chunk, err = a.checkChunk(key, chunk)
			if err != nil {
				return err
			}
			return fn(gctx, a.ChunkRegion(key.Index()), chunk)
		})
	}
	if err := g.Wait(); err != nil {
		log.Debug().Err(err).Str("array", a.name).Str("op", op).Msg("evaluate failed")
		return err
	}
	return nil
}

func (a *Array) checkChunk(key Key, chunk *Dense) (*Dense, error) {
	if chunk == nil {
		return nil, fmt.Errorf("array: chunk %s produced no value", key)
	}
	want := a.ChunkShape(key.Index())
	if !slices.Equal(chunk.shape, want) {
		return nil, fmt.Errorf("%w: chunk %s has shape %v, grid expects %v", ErrShapeMismatch, key, chunk.shape, want)
	}
	return chunk.AsType(a.dtype), nil
}

// evaluator runs tasks at most once per evaluation, sharing results between
// dependents and dropping them once every dependent has consumed them.
type evaluator struct {
	graph Graph
	cache *Cache

	mu      sync.Mutex
	futures map[Key]*future
	refs    map[Key]int
}

type future struct {
	done chan struct{}
	val  *Dense
	err  error
}

func newEvaluator(graph Graph, outputs []Key, cache *Cache) *evaluator {
	ev := &evaluator{
		graph:   graph,
		cache:   cache,
		futures: make(map[Key]*future),
		refs:    make(map[Key]int),
	}

	seen := make(map[Key]bool, len(outputs))
	stack := slices.Clone(outputs)
	for _, k := range outputs {
		ev.refs[k]++
	}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[k] {
			continue
		}
		seen[k] = true
		t, ok := graph[k]
		if !ok {
			continue
		}
		for _, d := range t.Deps() {
			ev.refs[d]++
			stack = append(stack, d)
		}
	}
	return ev
}

func (e *evaluator) eval(ctx context.Context, k Key) (*Dense, error) {
	e.mu.Lock()
	if f, ok := e.futures[k]; ok {
		e.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &future{done: make(chan struct{})}
	e.futures[k] = f
	e.mu.Unlock()

	f.val, f.err = e.run(ctx, k)
	close(f.done)
	return f.val, f.err
}

func (e *evaluator) run(ctx context.Context, k Key) (*Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.cache != nil {
		if v, ok := e.cache.lru.Get(k); ok {
			observability.ObserveChunkCache(true)
			return v, nil
		}
		observability.ObserveChunkCache(false)
	}

	task, ok := e.graph[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingChunk, k)
	}

	deps := task.Deps()
	vals := make([]*Dense, len(deps))
	for i, d := range deps {
		v, err := e.eval(ctx, d)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	defer func() {
		for _, d := range deps {
			e.release(d)
		}
	}()

	start := time.Now()
	v, err := task.Run(ctx, vals)
	observability.ObserveChunk(taskKind(task), err, time.Since(start).Seconds())
	if err != nil {
		var chunkErr *ChunkError
		if errors.As(err, &chunkErr) {
			return nil, err
		}
		return nil, &ChunkError{Key: k, Err: err}
	}
	if e.cache != nil {
		e.cache.lru.Add(k, v)
	}
	return v, nil
}

// release drops a consumer reference to k and forgets its value once the
// last consumer is done.
func (e *evaluator) release(k Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs[k]--
	if e.refs[k] <= 0 {
		delete(e.futures, k)
		delete(e.refs, k)
	}
}

// ChunkError reports the chunk whose task failed. It unwraps to the task error.
type ChunkError struct {
	Key Key
	Err error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("array: chunk %s: %v", e.Key, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
