package lazyraster

import (
	"context"
	"fmt"

	"github.com/justapithecus/lazyraster/internal/tiled"
)

// Blocks is the chunk geometry of one band: the chunk shape and the scaled
// native block windows covering the band.
type Blocks struct {
	// ChunkHeight and ChunkWidth are the native block shape times the
	// multiplier.
	ChunkHeight int
	ChunkWidth  int

	// Windows lists every native block in row-major order with its window
	// scaled by the multiplier. Edge blocks keep their clipped extent, scaled.
	Windows []BlockWindow
}

// ResolveBlocks opens the raster at path and returns the chunk geometry of
// band for the configured block-size multiplier.
//
// Scaled windows are not checked against the raster extent: with a
// multiplier above 1 some windows start beyond it or extend past it.
func ResolveBlocks(ctx context.Context, path string, band int, opts ...Option) (Blocks, error) {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return Blocks{}, err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return Blocks{}, err
	}
	ds, err := tiled.Open(ctx, store, key)
	if err != nil {
		return Blocks{}, fmt.Errorf("lazyraster: %w", err)
	}
	defer func() { _ = ds.Close(ctx) }()

	return resolveBlocks(ds, band, cfg.blockSize)
}

func resolveBlocks(ds *tiled.Dataset, band, m int) (Blocks, error) {
	if m < 1 {
		return Blocks{}, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, m)
	}
	bh, bw, err := ds.BlockShape(band)
	if err != nil {
		return Blocks{}, fmt.Errorf("lazyraster: %w", err)
	}
	native, err := ds.BlockWindows(band)
	if err != nil {
		return Blocks{}, fmt.Errorf("lazyraster: %w", err)
	}

	windows := make([]BlockWindow, len(native))
	for i, b := range native {
		windows[i] = BlockWindow{Index: b.Index, Window: b.Window.Scale(m)}
	}
	return Blocks{ChunkHeight: bh * m, ChunkWidth: bw * m, Windows: windows}, nil
}
