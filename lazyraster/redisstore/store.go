// Package redisstore keeps raster objects in Redis.
//
// Every object is one string value at "<keyspace>/<path>". Small rasters and
// caches of remote rasters fit well; large rasters belong in S3 or on disk.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/justapithecus/lazyraster/internal/observability"
	"github.com/justapithecus/lazyraster/internal/storage"
)

const backend = "redis"

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 512

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

func WithDB(db int) Option {
	return func(o *redis.Options) { o.DB = db }
}

// Store implements storage.Store on a Redis keyspace.
type Store struct {
	rdb      *redis.Client
	keyspace string
}

// New connects to addr and pings it. Objects live under keyspace, which may
// be empty.
func New(ctx context.Context, addr, keyspace string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ks, ok := storage.NormalizePrefix(keyspace)
	if !ok {
		return nil, fmt.Errorf("redis keyspace %q: %w", keyspace, storage.ErrInvalidPath)
	}
	ks = strings.TrimSuffix(ks, "/")

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp(backend, "ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, keyspace: ks}, nil
}

func (s *Store) key(path string) (string, error) {
	p, ok := storage.NormalizePath(path)
	if !ok {
		return "", storage.ErrInvalidPath
	}
	if s.keyspace == "" {
		return p, nil
	}
	return s.keyspace + "/" + p, nil
}

// Put stores the object at path, replacing any existing value.
func (s *Store) Put(ctx context.Context, path string, r io.Reader) error {
	k, err := s.key(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.rdb.Set(ctx, k, data, 0).Err()
	observability.ObserveStoreOp(backend, "put", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", k, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	k, err := s.key(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp(backend, "get", nil, time.Since(start).Seconds())
		return nil, storage.ErrNotFound
	}
	observability.ObserveStoreOp(backend, "get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis GET %q: %w", k, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	k, err := s.key(path)
	if err != nil {
		return false, err
	}

	start := time.Now()
	n, err := s.rdb.Exists(ctx, k).Result()
	observability.ObserveStoreOp(backend, "exists", err, time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %q: %w", k, err)
	}
	return n > 0, nil
}

// List walks the keyspace with SCAN and returns the sorted store paths
// under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	p, ok := storage.NormalizePrefix(prefix)
	if !ok {
		return nil, storage.ErrInvalidPath
	}
	base := ""
	if s.keyspace != "" {
		base = s.keyspace + "/"
	}
	match := escapeGlob(base+p) + "*"

	start := time.Now()
	var (
		paths  []string
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			observability.ObserveStoreOp(backend, "list", err, time.Since(start).Seconds())
			return nil, fmt.Errorf("redis SCAN %q: %w", match, err)
		}
		for _, k := range keys {
			paths = append(paths, strings.TrimPrefix(k, base))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	observability.ObserveStoreOp(backend, "list", nil, time.Since(start).Seconds())

	// SCAN may return a key more than once.
	sort.Strings(paths)
	return compactSorted(paths), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	k, err := s.key(path)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.rdb.Del(ctx, k).Err()
	observability.ObserveStoreOp(backend, "delete", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %q: %w", k, err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func compactSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

var _ storage.Store = (*Store)(nil)
