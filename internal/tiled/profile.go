package tiled

import (
	"fmt"
	"strings"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/codec"
	"github.com/justapithecus/lazyraster/internal/compress"
)

// DriverName is the only driver this format writes.
const DriverName = "Tiled"

// DefaultBlockSize is used for block dimensions left at zero.
const DefaultBlockSize = 256

// Profile holds the creation options of a raster.
type Profile struct {
	Driver     string
	Width      int
	Height     int
	Count      int
	DType      array.DType
	BlockXSize int
	BlockYSize int
	Compress   string
	Transform  [6]float64
	CRS        string
	NoData     *float64
}

// IdentityTransform maps pixel coordinates onto themselves.
var IdentityTransform = [6]float64{1, 0, 0, 0, 1, 0}

// Normalize fills defaults and validates p.
func (p Profile) Normalize() (Profile, error) {
	switch {
	case p.Driver == "":
		p.Driver = DriverName
	case !strings.EqualFold(p.Driver, DriverName):
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, p.Driver)
	default:
		p.Driver = DriverName
	}

	if p.Width <= 0 || p.Height <= 0 {
		return Profile{}, fmt.Errorf("%w: size %dx%d", ErrInvalidProfile, p.Width, p.Height)
	}
	if p.Count <= 0 {
		return Profile{}, fmt.Errorf("%w: band count %d", ErrInvalidProfile, p.Count)
	}
	if !p.DType.Valid() {
		return Profile{}, fmt.Errorf("%w: dtype %v", ErrInvalidProfile, p.DType)
	}
	if p.BlockXSize == 0 {
		p.BlockXSize = DefaultBlockSize
	}
	if p.BlockYSize == 0 {
		p.BlockYSize = DefaultBlockSize
	}
	if p.BlockXSize < 0 || p.BlockYSize < 0 {
		return Profile{}, fmt.Errorf("%w: block size %dx%d", ErrInvalidProfile, p.BlockXSize, p.BlockYSize)
	}

	c, err := compress.ByName(p.Compress)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	p.Compress = c.Name()

	if p.Transform == [6]float64{} {
		p.Transform = IdentityTransform
	}
	return p, nil
}

func (p Profile) header() codec.Header {
	return codec.Header{
		Driver:     p.Driver,
		Width:      p.Width,
		Height:     p.Height,
		Count:      p.Count,
		DType:      p.DType.String(),
		BlockXSize: p.BlockXSize,
		BlockYSize: p.BlockYSize,
		Compress:   p.Compress,
		Transform:  p.Transform,
		CRS:        p.CRS,
		NoData:     p.NoData,
	}
}

func profileFromHeader(h codec.Header) (Profile, error) {
	dt, err := array.ParseDType(h.DType)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return Profile{
		Driver:     h.Driver,
		Width:      h.Width,
		Height:     h.Height,
		Count:      h.Count,
		DType:      dt,
		BlockXSize: h.BlockXSize,
		BlockYSize: h.BlockYSize,
		Compress:   h.Compress,
		Transform:  h.Transform,
		CRS:        h.CRS,
		NoData:     h.NoData,
	}.Normalize()
}
