// Package lazyraster reads rasters as deferred chunked arrays and writes
// chunked arrays back to rasters.
//
// The read path maps a raster's native block layout onto the chunk grid of
// an array.Array: every chunk is a ReadTask that opens the raster, reads one
// window of one band and closes it again. Nothing touches storage until the
// array is evaluated.
//
// The write path accepts deferred or in-memory arrays. Deferred arrays are
// stored chunk by chunk through a Sink holding the single output handle,
// with writes serialized by a lock. In-memory arrays are written in one call.
//
// Paths are object prefixes inside a Store. Without WithStore, a path is a
// filesystem path and the raster lives in a directory of that name.
package lazyraster

import (
	"errors"

	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/tiled"
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Window is a rectangular pixel region: column/row offset plus extent.
type Window = tiled.Window

// BlockIndex is the (row, col) position of a block in the chunk grid.
type BlockIndex = tiled.BlockIndex

// BlockWindow pairs a block position with the pixels it covers.
type BlockWindow = tiled.BlockWindow

// Profile holds raster creation options: driver, size, band count, dtype,
// block size, compression and georeferencing.
type Profile = tiled.Profile

// IndexRow describes one stored block in a raster's block index.
type IndexRow = tiled.IndexRow

// Store abstracts the object storage rasters live in.
//
// Implementations are provided here (NewFS, NewMemory) and in the s3 and
// redisstore subpackages.
type Store = storage.Store

// DriverName is the raster driver written by this package.
const DriverName = tiled.DriverName

// NewFS creates a filesystem Store rooted at an existing directory.
func NewFS(root string) (Store, error) {
	return storage.NewFS(root)
}

// NewMemory creates an in-memory Store.
func NewMemory() Store {
	return storage.NewMemory()
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrShape indicates an array whose rank is neither 2 nor 3, or a write
	// region that does not describe rows and columns.
	ErrShape = errors.New("lazyraster: array must have rank 2 or 3")

	// ErrSinkClosed indicates a write to a Sink outside its Open/Close scope.
	ErrSinkClosed = errors.New("lazyraster: sink is not open")

	// ErrInvalidBlockSize indicates a block-size multiplier below 1.
	ErrInvalidBlockSize = errors.New("lazyraster: block size must be at least 1")

	// ErrOptionNotValidForRead indicates a write-only option passed to a read.
	ErrOptionNotValidForRead = errors.New("option not valid for read")

	// ErrOptionNotValidForWrite indicates a read-only option passed to a write.
	ErrOptionNotValidForWrite = errors.New("option not valid for write")
)

// Errors surfaced from the raster format and stores.
var (
	ErrNotFound          = storage.ErrNotFound
	ErrInvalidPath       = storage.ErrInvalidPath
	ErrInvalidBand       = tiled.ErrInvalidBand
	ErrInvalidProfile    = tiled.ErrInvalidProfile
	ErrUnsupportedDriver = tiled.ErrUnsupportedDriver
	ErrWindowOutOfBounds = tiled.ErrWindowOutOfBounds
	ErrChecksum          = tiled.ErrChecksum
)
