package lazyraster

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
)

// readConfig holds the resolved configuration of a read.
type readConfig struct {
	blockSize int
	store     storage.Store
}

// writeConfig holds the resolved configuration of a write.
type writeConfig struct {
	store   storage.Store
	locker  sync.Locker
	compute []array.Option
}

// Option configures reads and writes.
// Options implement methods for the operations they support.
// Using an option with an unsupported operation returns an error.
type Option interface {
	applyRead(*readConfig) error
	applyWrite(*writeConfig) error
}

func newReadConfig(opts []Option) (*readConfig, error) {
	cfg := &readConfig{blockSize: 1}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.applyRead(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.blockSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, cfg.blockSize)
	}
	return cfg, nil
}

func newWriteConfig(opts []Option) (*writeConfig, error) {
	cfg := &writeConfig{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.applyWrite(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// blockSizeOption implements Option for WithBlockSize (read-only).
type blockSizeOption struct {
	m int
}

// WithBlockSize sets the block-size multiplier of a read. Chunks span m x m
// native blocks. Default: 1.
// This option is only valid for reads.
func WithBlockSize(m int) Option {
	return &blockSizeOption{m: m}
}

func (o *blockSizeOption) applyRead(cfg *readConfig) error {
	cfg.blockSize = o.m
	return nil
}

func (o *blockSizeOption) applyWrite(*writeConfig) error {
	return fmt.Errorf("WithBlockSize: %w", ErrOptionNotValidForWrite)
}

// storeOption implements Option for WithStore.
type storeOption struct {
	store storage.Store
}

// WithStore resolves paths inside store instead of the local filesystem.
func WithStore(s Store) Option {
	return &storeOption{store: s}
}

func (o *storeOption) applyRead(cfg *readConfig) error {
	cfg.store = o.store
	return nil
}

func (o *storeOption) applyWrite(cfg *writeConfig) error {
	cfg.store = o.store
	return nil
}

// computeOption passes an evaluation option through to the array engine.
type computeOption struct {
	name string
	opt  array.Option
}

// WithWorkers bounds the number of chunks evaluated at once when a write
// drives a deferred array. Reads return deferred arrays; pass
// array.WithWorkers to their Compute instead.
// This option is only valid for writes.
func WithWorkers(n int) Option {
	return &computeOption{name: "WithWorkers", opt: array.WithWorkers(n)}
}

// WithCache shares a chunk cache with the evaluation of a write.
// This option is only valid for writes.
func WithCache(c *array.Cache) Option {
	return &computeOption{name: "WithCache", opt: array.WithCache(c)}
}

func (o *computeOption) applyRead(*readConfig) error {
	return fmt.Errorf("%s: %w", o.name, ErrOptionNotValidForRead)
}

func (o *computeOption) applyWrite(cfg *writeConfig) error {
	cfg.compute = append(cfg.compute, o.opt)
	return nil
}

// lockerOption implements Option for WithLocker (write-only).
type lockerOption struct {
	locker sync.Locker
}

// WithLocker serializes sink writes with l instead of a lock private to the
// call. Use it when other code writes through the same store concurrently.
// This option is only valid for writes.
func WithLocker(l sync.Locker) Option {
	return &lockerOption{locker: l}
}

func (o *lockerOption) applyRead(*readConfig) error {
	return fmt.Errorf("WithLocker: %w", ErrOptionNotValidForRead)
}

func (o *lockerOption) applyWrite(cfg *writeConfig) error {
	cfg.locker = o.locker
	return nil
}

// locate resolves path to a store and the raster prefix inside it.
// Without an explicit store, path is a filesystem path: the store is rooted
// at its parent directory and the raster prefix is its base name.
func locate(s storage.Store, path string) (storage.Store, string, error) {
	if s != nil {
		return s, path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("lazyraster: %w", err)
	}
	fs, err := storage.NewFS(filepath.Dir(abs))
	if err != nil {
		return nil, "", fmt.Errorf("lazyraster: open %s: %w", path, err)
	}
	return fs, filepath.Base(abs), nil
}

// storeID identifies a store in graph tokens, so equal paths in different
// stores never share chunk keys.
func storeID(s storage.Store) string {
	if fs, ok := s.(*storage.FS); ok {
		if abs, err := filepath.Abs(fs.Root()); err == nil {
			return "file://" + abs
		}
		return "file://" + fs.Root()
	}
	return fmt.Sprintf("%T@%p", s, s)
}
