package lazyraster

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/tiled"
)

// ReadTask reads one window of one band. It opens the raster, reads and
// closes it, so concurrent tasks share no handle.
type ReadTask struct {
	Store  storage.Store
	Path   string
	Window Window
	Band   int
}

func (t ReadTask) Deps() []array.Key { return nil }
func (t ReadTask) Kind() string      { return "read" }

func (t ReadTask) Run(ctx context.Context, _ []*array.Dense) (*array.Dense, error) {
	ds, err := tiled.Open(ctx, t.Store, t.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ds.Close(ctx) }()
	return ds.Read(ctx, t.Band, t.Window)
}

// ReadRasterBand returns band (1-based) of the raster at path as a deferred
// 2D array.
//
// The raster is opened once to fix dtype, shape and block layout; every chunk
// reopens it when evaluated. Chunks span WithBlockSize(m) x m native blocks.
// Arrays built from the same store, path, band and chunk shape share a name,
// so their chunks are interchangeable in a shared array.Cache.
func ReadRasterBand(ctx context.Context, path string, band int, opts ...Option) (*array.Array, error) {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return nil, err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return nil, err
	}
	return readBand(ctx, store, key, band, cfg.blockSize)
}

func readBand(ctx context.Context, store storage.Store, key string, band, m int) (*array.Array, error) {
	ds, err := tiled.Open(ctx, store, key)
	if err != nil {
		return nil, fmt.Errorf("lazyraster: %w", err)
	}
	defer func() { _ = ds.Close(ctx) }()

	dtype, err := ds.DType(band)
	if err != nil {
		return nil, fmt.Errorf("lazyraster: %s: %w", key, err)
	}
	h, w := ds.Shape()
	blocks, err := resolveBlocks(ds, band, m)
	if err != nil {
		return nil, err
	}

	shape := []int{h, w}
	chunks, err := array.NormalizeChunks([]int{blocks.ChunkHeight, blocks.ChunkWidth}, shape)
	if err != nil {
		return nil, fmt.Errorf("lazyraster: %w", err)
	}
	name := "raster-" + array.Tokenize(storeID(store), ds.Path(), band, blocks.ChunkHeight, blocks.ChunkWidth)

	rows, cols := len(chunks[0]), len(chunks[1])
	graph := make(array.Graph, rows*cols)
	for _, bw := range blocks.Windows {
		// Blocks past the coarsened grid are covered by earlier chunks.
		if bw.Index.Row >= rows || bw.Index.Col >= cols {
			continue
		}
		graph[array.NewKey(name, bw.Index.Row, bw.Index.Col)] = ReadTask{
			Store:  store,
			Path:   ds.Path(),
			Window: bw.Window,
			Band:   band,
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("array", name).
		Str("path", ds.Path()).
		Int("band", band).
		Int("block_size", m).
		Int("chunks", len(graph)).
		Msg("graph build")

	return array.New(name, graph, chunks, dtype, shape)
}

// Bands selects the bands ReadRaster reads. The zero value selects every band.
type Bands struct {
	single bool
	subset bool
	list   []int
}

// AllBands selects every band of the raster, in order.
func AllBands() Bands { return Bands{} }

// Band selects a single band; ReadRaster then returns a 2D array.
func Band(k int) Bands { return Bands{single: true, list: []int{k}} }

// BandList selects bands in the given order; ReadRaster returns a 3D array
// even for one band.
func BandList(ks ...int) Bands { return Bands{subset: true, list: append([]int(nil), ks...)} }

func (b Bands) String() string {
	switch {
	case b.single:
		return fmt.Sprintf("band %d", b.list[0])
	case b.subset:
		return fmt.Sprintf("bands %v", b.list)
	default:
		return "all bands"
	}
}

// ReadRaster returns the selected bands of the raster at path as a deferred
// array. A single Band yields the 2D array of ReadRasterBand; any other
// selection stacks one 2D array per band along a new leading axis.
func ReadRaster(ctx context.Context, path string, sel Bands, opts ...Option) (*array.Array, error) {
	cfg, err := newReadConfig(opts)
	if err != nil {
		return nil, err
	}
	store, key, err := locate(cfg.store, path)
	if err != nil {
		return nil, err
	}

	if sel.single {
		return readBand(ctx, store, key, sel.list[0], cfg.blockSize)
	}

	bands := sel.list
	if !sel.subset {
		ds, err := tiled.Open(ctx, store, key)
		if err != nil {
			return nil, fmt.Errorf("lazyraster: %w", err)
		}
		n := ds.Count()
		if err := ds.Close(ctx); err != nil {
			return nil, fmt.Errorf("lazyraster: %w", err)
		}
		bands = make([]int, n)
		for i := range bands {
			bands[i] = i + 1
		}
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands selected", ErrInvalidBand)
	}

	arrs := make([]*array.Array, len(bands))
	for i, b := range bands {
		if arrs[i], err = readBand(ctx, store, key, b, cfg.blockSize); err != nil {
			return nil, err
		}
	}
	return array.Stack(arrs...)
}
