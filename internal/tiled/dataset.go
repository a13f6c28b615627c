// Package tiled implements a tiled raster format on top of an object store.
//
// A raster is a JSON header plus one compressed blob per band block. Blocks
// are addressed by (band, row, col); edge blocks are clipped to the raster
// extent. Missing blocks read as nodata, or zero when no nodata is set.
package tiled

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/codec"
	"github.com/justapithecus/lazyraster/internal/compress"
	"github.com/justapithecus/lazyraster/internal/layout"
	"github.com/justapithecus/lazyraster/internal/observability"
	"github.com/justapithecus/lazyraster/internal/storage"
)

var (
	// ErrClosed indicates use of a dataset after Close.
	ErrClosed = errors.New("tiled: dataset is closed")

	// ErrReadOnly indicates a write through a dataset opened for reading.
	ErrReadOnly = errors.New("tiled: dataset is read-only")

	// ErrInvalidBand indicates a band index outside 1..Count.
	ErrInvalidBand = errors.New("tiled: invalid band index")

	// ErrWindowOutOfBounds indicates a write window not inside the raster extent.
	ErrWindowOutOfBounds = errors.New("tiled: window out of bounds")

	// ErrInvalidProfile indicates creation options that cannot describe a raster.
	ErrInvalidProfile = errors.New("tiled: invalid profile")

	// ErrUnsupportedDriver indicates a profile naming another format.
	ErrUnsupportedDriver = errors.New("tiled: unsupported driver")
)

// Dataset is an open raster. It is not safe for concurrent use.
type Dataset struct {
	store    storage.Store
	layout   layout.Raster
	profile  Profile
	comp     compress.Compressor
	writable bool
	closed   bool
	written  map[tileID]IndexRow
}

type tileID struct {
	band, row, col int
}

// Open opens an existing raster for reading.
func Open(ctx context.Context, store storage.Store, path string) (*Dataset, error) {
	lay, err := rasterLayout(path, "")
	if err != nil {
		return nil, err
	}
	b, err := storage.ReadAll(ctx, store, lay.Header())
	if err != nil {
		return nil, fmt.Errorf("tiled: open %s: %w", path, err)
	}
	h, err := codec.DecodeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("tiled: open %s: %w", path, err)
	}
	profile, err := profileFromHeader(h)
	if err != nil {
		return nil, fmt.Errorf("tiled: open %s: %w", path, err)
	}

	d, err := newDataset(store, path, profile, false)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("raster open")
	return d, nil
}

// Create creates a raster, replacing any raster previously stored at path.
// The returned dataset is writable.
func Create(ctx context.Context, store storage.Store, path string, profile Profile) (*Dataset, error) {
	p, err := profile.Normalize()
	if err != nil {
		return nil, err
	}
	d, err := newDataset(store, path, p, true)
	if err != nil {
		return nil, err
	}

	if err := storage.DeletePrefix(ctx, store, d.layout.Prefix()+"/"); err != nil {
		return nil, fmt.Errorf("tiled: create %s: truncate: %w", path, err)
	}
	b, err := codec.EncodeHeader(p.header())
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, d.layout.Header(), bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("tiled: create %s: %w", path, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("width", p.Width).
		Int("height", p.Height).
		Int("count", p.Count).
		Str("dtype", p.DType.String()).
		Msg("raster create")
	return d, nil
}

func newDataset(store storage.Store, path string, p Profile, writable bool) (*Dataset, error) {
	comp, err := compress.ByName(p.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	lay, err := rasterLayout(path, comp.Extension())
	if err != nil {
		return nil, err
	}
	return &Dataset{
		store:    store,
		layout:   lay,
		profile:  p,
		comp:     comp,
		writable: writable,
		written:  make(map[tileID]IndexRow),
	}, nil
}

func rasterLayout(path, ext string) (layout.Raster, error) {
	norm, ok := storage.NormalizePath(path)
	if !ok {
		return layout.Raster{}, fmt.Errorf("tiled: %w: %q", storage.ErrInvalidPath, path)
	}
	return layout.New(norm, ext), nil
}

// Path returns the raster prefix inside the store.
func (d *Dataset) Path() string { return d.layout.Prefix() }

// Profile returns the creation options.
func (d *Dataset) Profile() Profile { return d.profile }

// Shape returns (height, width).
func (d *Dataset) Shape() (int, int) { return d.profile.Height, d.profile.Width }

// Count returns the number of bands.
func (d *Dataset) Count() int { return d.profile.Count }

// DType returns the element type of band.
func (d *Dataset) DType(band int) (array.DType, error) {
	if err := d.checkBand(band); err != nil {
		return array.Invalid, err
	}
	return d.profile.DType, nil
}

// BlockShape returns the native (height, width) of the blocks of band.
func (d *Dataset) BlockShape(band int) (int, int, error) {
	if err := d.checkBand(band); err != nil {
		return 0, 0, err
	}
	return d.profile.BlockYSize, d.profile.BlockXSize, nil
}

// BlockWindows lists the blocks of band in row-major order. Edge windows are
// clipped to the raster extent.
func (d *Dataset) BlockWindows(band int) ([]BlockWindow, error) {
	if err := d.checkBand(band); err != nil {
		return nil, err
	}
	rows, cols := d.grid()
	out := make([]BlockWindow, 0, rows*cols)
	for r := range rows {
		for c := range cols {
			out = append(out, BlockWindow{Index: BlockIndex{Row: r, Col: c}, Window: d.tileWindow(r, c)})
		}
	}
	return out, nil
}

// Read returns the pixels of band inside window. The window is cropped to the
// raster extent, so the result shape is that of the cropped window.
func (d *Dataset) Read(ctx context.Context, band int, window Window) (*array.Dense, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.checkBand(band); err != nil {
		return nil, err
	}

	crop := window.Intersect(d.extent())
	out := array.NewDense(d.profile.DType, crop.Height, crop.Width)
	if crop.Empty() {
		return out, nil
	}
	if d.profile.NoData != nil {
		out.Fill(*d.profile.NoData)
	}

	r0, r1, c0, c1 := d.tileRange(crop)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			ext := d.tileWindow(r, c)
			tile, err := d.loadTile(ctx, band, r, c, ext)
			if err != nil {
				return nil, err
			}
			if tile == nil {
				continue
			}
			in := ext.Intersect(crop)
			sub, err := tile.Extract([]int{in.RowOff - ext.RowOff, in.ColOff - ext.ColOff}, []int{in.Height, in.Width})
			if err != nil {
				return nil, err
			}
			if err := out.Paste(sub, []int{in.RowOff - crop.RowOff, in.ColOff - crop.ColOff}); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Write stores data into window of the given bands.
//
// Rank 2 data targets one band (band 1 when none is given). Rank 3 data holds
// one plane per band, in the order bands are given, or 1..n when none are.
// The window must lie inside the raster extent and match the data's trailing
// dimensions. Data is converted to the raster dtype.
func (d *Dataset) Write(ctx context.Context, data *array.Dense, window Window, bands ...int) error {
	if d.closed {
		return ErrClosed
	}
	if !d.writable {
		return ErrReadOnly
	}

	planes, bands, err := splitPlanes(data, bands)
	if err != nil {
		return err
	}
	for _, b := range bands {
		if err := d.checkBand(b); err != nil {
			return err
		}
	}
	shape := data.Shape()
	h, w := shape[len(shape)-2], shape[len(shape)-1]
	if h != window.Height || w != window.Width {
		return fmt.Errorf("%w: data %dx%d for %s", array.ErrShapeMismatch, h, w, window)
	}
	if window.Empty() {
		return nil
	}
	if !d.extent().Contains(window) || window.ColOff < 0 || window.RowOff < 0 {
		return fmt.Errorf("%w: %s on %dx%d raster", ErrWindowOutOfBounds, window, d.profile.Width, d.profile.Height)
	}

	r0, r1, c0, c1 := d.tileRange(window)
	for i, band := range bands {
		plane := planes[i].AsType(d.profile.DType)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				if err := d.writeTile(ctx, band, r, c, plane, window); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Dataset) writeTile(ctx context.Context, band, r, c int, plane *array.Dense, window Window) error {
	ext := d.tileWindow(r, c)
	in := ext.Intersect(window)
	src := []int{in.RowOff - window.RowOff, in.ColOff - window.ColOff}

	var tile *array.Dense
	if in == ext {
		var err error
		if tile, err = plane.Extract(src, []int{ext.Height, ext.Width}); err != nil {
			return err
		}
	} else {
		existing, err := d.loadTile(ctx, band, r, c, ext)
		if err != nil {
			return err
		}
		if existing == nil {
			existing = array.NewDense(d.profile.DType, ext.Height, ext.Width)
			if d.profile.NoData != nil {
				existing.Fill(*d.profile.NoData)
			}
		}
		tile = existing
		sub, err := plane.Extract(src, []int{in.Height, in.Width})
		if err != nil {
			return err
		}
		if err := tile.Paste(sub, []int{in.RowOff - ext.RowOff, in.ColOff - ext.ColOff}); err != nil {
			return err
		}
	}
	return d.putTile(ctx, band, r, c, ext, tile)
}

func splitPlanes(data *array.Dense, bands []int) ([]*array.Dense, []int, error) {
	shape := data.Shape()
	switch data.Rank() {
	case 2:
		if len(bands) == 0 {
			bands = []int{1}
		}
		if len(bands) != 1 {
			return nil, nil, fmt.Errorf("%w: 2D data for %d bands", array.ErrShapeMismatch, len(bands))
		}
		return []*array.Dense{data}, bands, nil
	case 3:
		n, h, w := shape[0], shape[1], shape[2]
		if len(bands) == 0 {
			bands = make([]int, n)
			for i := range bands {
				bands[i] = i + 1
			}
		}
		if len(bands) != n {
			return nil, nil, fmt.Errorf("%w: %d planes for %d bands", array.ErrShapeMismatch, n, len(bands))
		}
		planes := make([]*array.Dense, n)
		for i := range n {
			p, err := data.Extract([]int{i, 0, 0}, []int{1, h, w})
			if err != nil {
				return nil, nil, err
			}
			if planes[i], err = p.Reshape(h, w); err != nil {
				return nil, nil, err
			}
		}
		return planes, bands, nil
	default:
		return nil, nil, fmt.Errorf("%w: cannot write rank %d data", array.ErrShapeMismatch, data.Rank())
	}
}

// Close releases the dataset. A writable dataset persists its block index.
// Closing twice is a no-op.
func (d *Dataset) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true

	log := zerolog.Ctx(ctx)
	if !d.writable {
		log.Debug().Str("path", d.Path()).Msg("raster close")
		return nil
	}
	if err := d.writeIndex(ctx); err != nil {
		return fmt.Errorf("tiled: close %s: %w", d.Path(), err)
	}
	log.Debug().Str("path", d.Path()).Int("tiles", len(d.written)).Msg("raster close")
	return nil
}

func (d *Dataset) loadTile(ctx context.Context, band, r, c int, ext Window) (*array.Dense, error) {
	blob, err := storage.ReadAll(ctx, d.store, d.layout.Tile(band, r, c))
	if errors.Is(err, storage.ErrNotFound) {
		observability.ObserveTile("fill", 0, nil)
		return nil, nil
	}
	observability.ObserveTile("read", len(blob), err)
	if err != nil {
		return nil, fmt.Errorf("tiled: read tile b%d/%d.%d: %w", band, r, c, err)
	}
	tile, err := codec.DecodeTile(blob, d.comp, d.profile.DType, []int{ext.Height, ext.Width})
	if err != nil {
		return nil, fmt.Errorf("tiled: tile b%d/%d.%d: %w", band, r, c, err)
	}
	return tile, nil
}

func (d *Dataset) putTile(ctx context.Context, band, r, c int, ext Window, tile *array.Dense) error {
	blob, err := codec.EncodeTile(tile, d.comp)
	if err != nil {
		return err
	}
	err = d.store.Put(ctx, d.layout.Tile(band, r, c), bytes.NewReader(blob))
	observability.ObserveTile("write", len(blob), err)
	if err != nil {
		return fmt.Errorf("tiled: write tile b%d/%d.%d: %w", band, r, c, err)
	}
	d.written[tileID{band, r, c}] = newIndexRow(band, r, c, ext, blob, tile)
	return nil
}

func (d *Dataset) checkBand(band int) error {
	if band < 1 || band > d.profile.Count {
		return fmt.Errorf("%w: %d (count %d)", ErrInvalidBand, band, d.profile.Count)
	}
	return nil
}

func (d *Dataset) extent() Window {
	return Window{Width: d.profile.Width, Height: d.profile.Height}
}

func (d *Dataset) grid() (rows, cols int) {
	by, bx := d.profile.BlockYSize, d.profile.BlockXSize
	return (d.profile.Height + by - 1) / by, (d.profile.Width + bx - 1) / bx
}

func (d *Dataset) tileWindow(r, c int) Window {
	by, bx := d.profile.BlockYSize, d.profile.BlockXSize
	w := Window{ColOff: c * bx, RowOff: r * by, Width: bx, Height: by}
	return w.Intersect(d.extent())
}

// tileRange returns the inclusive block rows and cols overlapping a
// non-empty window inside the extent.
func (d *Dataset) tileRange(w Window) (r0, r1, c0, c1 int) {
	by, bx := d.profile.BlockYSize, d.profile.BlockXSize
	return w.RowOff / by, (w.RowOff + w.Height - 1) / by, w.ColOff / bx, (w.ColOff + w.Width - 1) / bx
}
