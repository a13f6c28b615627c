package tiled

import (
	"bytes"
	"cmp"
	"context"
	_ "crypto/sha256" // registers the canonical digest algorithm
	"errors"
	"fmt"
	"slices"

	"github.com/opencontainers/go-digest"
	"github.com/parquet-go/parquet-go"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
)

// ErrChecksum indicates a tile whose content does not match the block index.
var ErrChecksum = errors.New("tiled: tile checksum mismatch")

// IndexRow describes one written tile in the block index sidecar.
type IndexRow struct {
	Band   int32   `parquet:"band"`
	Row    int32   `parquet:"row"`
	Col    int32   `parquet:"col"`
	XOff   int32   `parquet:"x_off"`
	YOff   int32   `parquet:"y_off"`
	Width  int32   `parquet:"width"`
	Height int32   `parquet:"height"`
	Bytes  int64   `parquet:"bytes"`
	Digest string  `parquet:"digest"`
	Min    float64 `parquet:"min"`
	Max    float64 `parquet:"max"`
	Mean   float64 `parquet:"mean"`
}

func newIndexRow(band, r, c int, ext Window, blob []byte, tile *array.Dense) IndexRow {
	stats := array.StatsOf(tile)
	return IndexRow{
		Band:   int32(band),
		Row:    int32(r),
		Col:    int32(c),
		XOff:   int32(ext.ColOff),
		YOff:   int32(ext.RowOff),
		Width:  int32(ext.Width),
		Height: int32(ext.Height),
		Bytes:  int64(len(blob)),
		Digest: digest.FromBytes(blob).String(),
		Min:    stats.Min,
		Max:    stats.Max,
		Mean:   stats.Mean(),
	}
}

func (d *Dataset) writeIndex(ctx context.Context) error {
	rows := make([]IndexRow, 0, len(d.written))
	for _, row := range d.written {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b IndexRow) int {
		return cmp.Or(cmp.Compare(a.Band, b.Band), cmp.Compare(a.Row, b.Row), cmp.Compare(a.Col, b.Col))
	})

	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return fmt.Errorf("encode block index: %w", err)
	}
	return d.store.Put(ctx, d.layout.Index(), &buf)
}

// ReadBlockIndex loads the block index of the raster at path.
func ReadBlockIndex(ctx context.Context, store storage.Store, path string) ([]IndexRow, error) {
	lay, err := rasterLayout(path, "")
	if err != nil {
		return nil, err
	}
	b, err := storage.ReadAll(ctx, store, lay.Index())
	if err != nil {
		return nil, fmt.Errorf("tiled: block index %s: %w", path, err)
	}
	rows, err := parquet.Read[IndexRow](bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("tiled: block index %s: %w", path, err)
	}
	return rows, nil
}

// Verify checks every tile listed in the block index against its digest.
func Verify(ctx context.Context, store storage.Store, path string) error {
	rows, err := ReadBlockIndex(ctx, store, path)
	if err != nil {
		return err
	}
	d, err := Open(ctx, store, path)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close(ctx) }()

	for _, row := range rows {
		key := d.layout.Tile(int(row.Band), int(row.Row), int(row.Col))
		blob, err := storage.ReadAll(ctx, store, key)
		if err != nil {
			return fmt.Errorf("tiled: verify %s: %w", key, err)
		}
		want, err := digest.Parse(row.Digest)
		if err != nil {
			return fmt.Errorf("tiled: verify %s: %w", key, err)
		}
		if got := want.Algorithm().FromBytes(blob); got != want {
			return fmt.Errorf("%w: %s has %s, index has %s", ErrChecksum, key, got, want)
		}
	}
	return nil
}
