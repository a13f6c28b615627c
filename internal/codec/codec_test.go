package codec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/codec"
	"github.com/justapithecus/lazyraster/internal/compress"
)

func TestHeader_EncodeDecode(t *testing.T) {
	nodata := -9999.0
	h := codec.Header{
		Driver:     "Tiled",
		Width:      100,
		Height:     50,
		Count:      3,
		DType:      "uint8",
		BlockXSize: 32,
		BlockYSize: 16,
		Compress:   "zstd",
		Transform:  [6]float64{0.5, 0, 10, 0, -0.5, 20},
		CRS:        "EPSG:4326",
		NoData:     &nodata,
	}

	b, err := codec.EncodeHeader(h)
	if err != nil {
		t.Fatalf("EncodeHeader failed: %v", err)
	}
	if !strings.Contains(string(b), `"schema": "lazyraster-tiled"`) {
		t.Errorf("encoded header missing schema:\n%s", b)
	}

	got, err := codec.DecodeHeader(b)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if got.Width != 100 || got.Height != 50 || got.Count != 3 || got.BlockXSize != 32 {
		t.Errorf("decoded geometry = %+v", got)
	}
	if got.Transform != h.Transform {
		t.Errorf("Transform = %v, want %v", got.Transform, h.Transform)
	}
	if got.NoData == nil || *got.NoData != nodata {
		t.Errorf("NoData = %v, want %v", got.NoData, nodata)
	}
	if got.Version != codec.Version {
		t.Errorf("Version = %d, want %d", got.Version, codec.Version)
	}
}

func TestHeader_RejectsForeignDocuments(t *testing.T) {
	for _, doc := range []string{
		`{"schema":"other","version":1}`,
		`{"schema":"lazyraster-tiled","version":99}`,
		`not json`,
	} {
		_, err := codec.DecodeHeader([]byte(doc))
		if !errors.Is(err, codec.ErrSchema) {
			t.Errorf("DecodeHeader(%s) error = %v, want ErrSchema", doc, err)
		}
	}
}

func TestTile_RoundTrip(t *testing.T) {
	tile, err := array.FromValues([]uint16{1, 2, 3, 4, 500, 600}, 2, 3)
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []compress.Compressor{compress.NewNoop(), compress.NewGzip(), compress.NewZstd()} {
		blob, err := codec.EncodeTile(tile, c)
		if err != nil {
			t.Fatalf("%s: EncodeTile failed: %v", c.Name(), err)
		}
		got, err := codec.DecodeTile(blob, c, array.Uint16, []int{2, 3})
		if err != nil {
			t.Fatalf("%s: DecodeTile failed: %v", c.Name(), err)
		}
		if !got.Equal(tile) {
			t.Errorf("%s: round trip mismatch", c.Name())
		}
	}
}

func TestTile_WrongShape(t *testing.T) {
	tile := array.NewDense(array.Uint8, 4, 4)
	blob, err := codec.EncodeTile(tile, compress.NewNoop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = codec.DecodeTile(blob, compress.NewNoop(), array.Uint8, []int{4, 5})
	if !errors.Is(err, array.ErrShapeMismatch) {
		t.Errorf("DecodeTile error = %v, want ErrShapeMismatch", err)
	}
}
