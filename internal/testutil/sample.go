package testutil

import (
	"context"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/tiled"
)

// Sample raster geometry. Neither dimension is a multiple of the block size,
// so the last block row and column are clipped.
const (
	SampleWidth  = 53
	SampleHeight = 37
	SampleBands  = 3
	SampleBlock  = 16
)

// SampleProfile returns the profile WriteSample creates.
func SampleProfile() tiled.Profile {
	return tiled.Profile{
		Driver:     tiled.DriverName,
		Width:      SampleWidth,
		Height:     SampleHeight,
		Count:      SampleBands,
		DType:      array.Uint8,
		BlockXSize: SampleBlock,
		BlockYSize: SampleBlock,
		Compress:   "zstd",
		Transform:  [6]float64{300, 0, 101985, 0, -300, 2826915},
		CRS:        "EPSG:32618",
	}
}

// SampleData returns the band x row x col pixels of the sample raster.
func SampleData() *array.Dense {
	d := array.NewDense(array.Uint8, SampleBands, SampleHeight, SampleWidth)
	i := 0
	for b := range SampleBands {
		for r := range SampleHeight {
			for c := range SampleWidth {
				d.SetInt(i, int64((b*71+r*7+c*3)%256))
				i++
			}
		}
	}
	return d
}

// WriteSample stores the sample raster at path and returns its pixels.
func WriteSample(ctx context.Context, store storage.Store, path string) (*array.Dense, error) {
	ds, err := tiled.Create(ctx, store, path, SampleProfile())
	if err != nil {
		return nil, err
	}
	data := SampleData()
	win := tiled.Window{Width: SampleWidth, Height: SampleHeight}
	if err := ds.Write(ctx, data, win); err != nil {
		_ = ds.Close(ctx)
		return nil, err
	}
	if err := ds.Close(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

// Band returns plane band (1-based) of a band x row x col array.
func Band(d *array.Dense, band int) *array.Dense {
	shape := d.Shape()
	p, err := d.Extract([]int{band - 1, 0, 0}, []int{1, shape[1], shape[2]})
	if err != nil {
		panic(err)
	}
	p, err = p.Reshape(shape[1], shape[2])
	if err != nil {
		panic(err)
	}
	return p
}
