package lazyraster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/logger"
	"github.com/justapithecus/lazyraster/internal/tiled"
)

// WriteRaster writes v to a new raster at path, replacing any raster there.
//
// v must have rank 2 (one band) or 3 (bands x rows x cols); other ranks fail
// with ErrShape before anything is opened. Zero Width, Height, Count and DType
// fields of profile are taken from v.
//
// A deferred *array.Array is evaluated chunk by chunk and each chunk is
// written through a Sink, one write at a time. An in-memory *array.Dense is
// written in one call: rank 2 as band 1, rank 3 as bands 1..n in order.
// A failed write leaves the chunks already written in place.
func WriteRaster(ctx context.Context, path string, v array.Value, profile Profile, opts ...Option) (err error) {
	if r := v.Rank(); r != 2 && r != 3 {
		return fmt.Errorf("%w: got rank %d", ErrShape, r)
	}
	cfg, err := newWriteConfig(opts)
	if err != nil {
		return err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return err
	}
	profile = profileFor(v, profile)

	ctx = logger.WithOperation(ctx, "write_raster")
	log := zerolog.Ctx(ctx)
	defer func() {
		if err != nil {
			log.Error().Err(err).Str("path", key).Msg("write raster failed")
		}
	}()

	switch a := v.(type) {
	case *array.Array:
		return storeDeferred(ctx, NewSink(store, key, profile), a, cfg)
	case *array.Dense:
		return writeDense(ctx, NewSink(store, key, profile), a)
	default:
		return fmt.Errorf("lazyraster: unsupported array type %T", v)
	}
}

func storeDeferred(ctx context.Context, sink *Sink, a *array.Array, cfg *writeConfig) (err error) {
	if err := sink.Open(ctx); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sink.Close(ctx)) }()

	var locker sync.Locker = &sync.Mutex{}
	if cfg.locker != nil {
		locker = cfg.locker
	}
	opts := append([]array.Option{array.WithLocker(locker)}, cfg.compute...)
	return array.Store(ctx, a, sink, opts...)
}

func writeDense(ctx context.Context, sink *Sink, d *array.Dense) (err error) {
	if err := sink.Open(ctx); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sink.Close(ctx)) }()

	shape := d.Shape()
	win := Window{Width: shape[len(shape)-1], Height: shape[len(shape)-2]}
	if err := sink.ds.Write(ctx, d, win); err != nil {
		return fmt.Errorf("lazyraster: write %s: %w", win, err)
	}
	return nil
}

// profileFor fills the size, band count and dtype left unset in p from v.
func profileFor(v array.Value, p Profile) Profile {
	shape := v.Shape()
	if p.Height == 0 {
		p.Height = shape[len(shape)-2]
	}
	if p.Width == 0 {
		p.Width = shape[len(shape)-1]
	}
	if p.Count == 0 {
		p.Count = 1
		if len(shape) == 3 {
			p.Count = shape[0]
		}
	}
	if p.DType == array.Invalid {
		p.DType = v.DType()
	}
	return p
}

// ProfileOf returns the creation profile of the raster at path.
func ProfileOf(ctx context.Context, path string, opts ...Option) (Profile, error) {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return Profile{}, err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return Profile{}, err
	}
	ds, err := tiled.Open(ctx, store, key)
	if err != nil {
		return Profile{}, fmt.Errorf("lazyraster: %w", err)
	}
	defer func() { _ = ds.Close(ctx) }()
	return ds.Profile(), nil
}

// ReadBlockIndex returns the block index a write left next to the raster at
// path: one row per stored block with its checksum and pixel statistics.
func ReadBlockIndex(ctx context.Context, path string, opts ...Option) ([]IndexRow, error) {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return nil, err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return nil, err
	}
	rows, err := tiled.ReadBlockIndex(ctx, store, key)
	if err != nil {
		return nil, fmt.Errorf("lazyraster: %w", err)
	}
	return rows, nil
}

// Verify checks every stored block of the raster at path against the
// checksum in its block index. Mismatches fail with ErrChecksum.
func Verify(ctx context.Context, path string, opts ...Option) error {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return err
	}
	if err := tiled.Verify(ctx, store, key); err != nil {
		return fmt.Errorf("lazyraster: %w", err)
	}
	return nil
}
