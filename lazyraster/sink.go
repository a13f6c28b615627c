package lazyraster

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/tiled"
)

// Sink writes array chunks into windows of one output raster.
//
// Open creates the raster and holds its handle until Close. SetItem is only
// valid in between and must not be called concurrently; array.Store with
// array.WithLock serializes the calls.
type Sink struct {
	store   storage.Store
	path    string
	profile Profile

	ds *tiled.Dataset
}

var _ array.Target = (*Sink)(nil)

// NewSink returns a closed sink that will create a raster with profile at
// path inside store.
func NewSink(store Store, path string, profile Profile) *Sink {
	return &Sink{store: store, path: path, profile: profile}
}

// Open creates the destination raster, replacing any raster at the path.
func (s *Sink) Open(ctx context.Context) error {
	if s.ds != nil {
		return errors.New("lazyraster: sink is already open")
	}
	ds, err := tiled.Create(ctx, s.store, s.path, s.profile)
	if err != nil {
		return fmt.Errorf("lazyraster: %w", err)
	}
	s.ds = ds
	zerolog.Ctx(ctx).Debug().Str("path", ds.Path()).Msg("sink open")
	return nil
}

// Close releases the raster handle. It is safe to call on a closed sink.
func (s *Sink) Close(ctx context.Context) error {
	if s.ds == nil {
		return nil
	}
	ds := s.ds
	s.ds = nil
	if err := ds.Close(ctx); err != nil {
		return fmt.Errorf("lazyraster: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", ds.Path()).Msg("sink close")
	return nil
}

// IsOpen reports whether the sink holds a raster handle.
func (s *Sink) IsOpen() bool { return s.ds != nil }

// SetItem overwrites the region of the raster that chunk covers.
// See RegionTarget for how region maps to bands and a window.
func (s *Sink) SetItem(ctx context.Context, region []array.Slice, chunk *array.Dense) error {
	if s.ds == nil {
		return ErrSinkClosed
	}
	bands, win, err := RegionTarget(region)
	if err != nil {
		return err
	}
	if err := s.ds.Write(ctx, chunk, win, bands...); err != nil {
		return fmt.Errorf("lazyraster: write %s bands %v: %w", win, bands, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("path", s.ds.Path()).
		Ints("bands", bands).
		Stringer("window", win).
		Msg("chunk write")
	return nil
}

// RegionTarget maps the region of an output array to the raster bands and
// window it covers.
//
// A region of three slices is (bands, rows, cols), where the band slice holds
// 0-based array positions and selects raster bands start+1 through stop. A
// region of two slices is (rows, cols) of band 1. The window starts at the
// column and row starts and spans the column and row lengths.
func RegionTarget(region []array.Slice) ([]int, Window, error) {
	var (
		bands      []int
		rows, cols array.Slice
	)
	switch len(region) {
	case 3:
		for _, i := range region[0].Indices() {
			bands = append(bands, i+1)
		}
		rows, cols = region[1], region[2]
	case 2:
		bands = []int{1}
		rows, cols = region[0], region[1]
	default:
		return nil, Window{}, fmt.Errorf("%w: region has %d dimensions", ErrShape, len(region))
	}
	if rows.StepOrOne() != 1 || cols.StepOrOne() != 1 {
		return nil, Window{}, fmt.Errorf("%w: strided rows or columns", ErrShape)
	}
	win := Window{
		ColOff: cols.Start,
		RowOff: rows.Start,
		Width:  cols.Len(),
		Height: rows.Len(),
	}
	return bands, win, nil
}
