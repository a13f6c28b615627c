// Package layout names the objects a tiled raster occupies inside a store.
//
// A raster at prefix p is laid out as:
//
//	p/raster.json              header
//	p/b{band}/{row}.{col}{ext} one tile per band block
//	p/blocks.parquet           block index, written on close
package layout

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	headerName = "raster.json"
	indexName  = "blocks.parquet"
)

// Raster resolves object keys for one raster prefix.
type Raster struct {
	prefix string
	ext    string
}

// New returns the layout of the raster stored under prefix, with tiles
// carrying the compressor extension ext.
func New(prefix, ext string) Raster {
	return Raster{prefix: strings.Trim(prefix, "/"), ext: ext}
}

// Prefix returns the raster prefix, without trailing slash.
func (r Raster) Prefix() string { return r.prefix }

// Header returns the header key.
func (r Raster) Header() string { return r.join(headerName) }

// Index returns the block index key.
func (r Raster) Index() string { return r.join(indexName) }

// BandPrefix returns the prefix holding the tiles of a band.
func (r Raster) BandPrefix(band int) string {
	return r.join("b"+strconv.Itoa(band)) + "/"
}

// Tile returns the key of the tile at (row, col) of band.
func (r Raster) Tile(band, row, col int) string {
	return fmt.Sprintf("%s%d.%d%s", r.BandPrefix(band), row, col, r.ext)
}

// ParseTile extracts band, row and col from a tile key of this raster.
func (r Raster) ParseTile(key string) (band, row, col int, ok bool) {
	rest, found := strings.CutPrefix(key, r.join("b"))
	if !found {
		return 0, 0, 0, false
	}
	bandPart, name, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, 0, false
	}
	name, found = strings.CutSuffix(name, r.ext)
	if !found {
		return 0, 0, 0, false
	}
	rowPart, colPart, found := strings.Cut(name, ".")
	if !found {
		return 0, 0, 0, false
	}

	var err error
	if band, err = strconv.Atoi(bandPart); err != nil {
		return 0, 0, 0, false
	}
	if row, err = strconv.Atoi(rowPart); err != nil {
		return 0, 0, 0, false
	}
	if col, err = strconv.Atoi(colPart); err != nil {
		return 0, 0, 0, false
	}
	return band, row, col, true
}

func (r Raster) join(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "/" + name
}
