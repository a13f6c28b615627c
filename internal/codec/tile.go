package codec

import (
	"fmt"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/compress"
)

// EncodeTile serializes a tile as compressed little-endian pixels.
func EncodeTile(tile *array.Dense, c compress.Compressor) ([]byte, error) {
	blob, err := compress.Encode(c, tile.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codec: encode tile: %w", err)
	}
	return blob, nil
}

// DecodeTile restores a tile of the given dtype and shape.
func DecodeTile(blob []byte, c compress.Compressor, dtype array.DType, shape []int) (*array.Dense, error) {
	raw, err := compress.Decode(c, blob)
	if err != nil {
		return nil, fmt.Errorf("codec: decode tile: %w", err)
	}
	tile, err := array.NewDenseFrom(dtype, shape, raw)
	if err != nil {
		return nil, fmt.Errorf("codec: decode tile: %w", err)
	}
	return tile, nil
}
