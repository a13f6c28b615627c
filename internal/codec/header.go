// Package codec provides the serialization of raster headers and pixel tiles.
package codec

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Schema identifies raster header documents.
const (
	Schema  = "lazyraster-tiled"
	Version = 1
)

// ErrSchema indicates a header that is not a supported raster header.
var ErrSchema = errors.New("codec: unsupported raster header")

// Header is the persisted description of a tiled raster.
type Header struct {
	Schema     string     `json:"schema"`
	Version    int        `json:"version"`
	Driver     string     `json:"driver"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Count      int        `json:"count"`
	DType      string     `json:"dtype"`
	BlockXSize int        `json:"blockxsize"`
	BlockYSize int        `json:"blockysize"`
	Compress   string     `json:"compress,omitempty"`
	Transform  [6]float64 `json:"transform"`
	CRS        string     `json:"crs,omitempty"`
	NoData     *float64   `json:"nodata,omitempty"`
}

// EncodeHeader serializes h, stamping the schema name and version.
func EncodeHeader(h Header) ([]byte, error) {
	h.Schema = Schema
	h.Version = Version
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("codec: encode header: %w", err)
	}
	return b, nil
}

// DecodeHeader parses a header and checks its schema and version.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(b, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if h.Schema != Schema {
		return Header{}, fmt.Errorf("%w: schema %q", ErrSchema, h.Schema)
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: version %d", ErrSchema, h.Version)
	}
	return h, nil
}
