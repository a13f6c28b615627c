// Package compress provides block compressors for raster tiles.
package compress

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compressor handles compression and decompression of block streams.
type Compressor interface {
	// Name returns the compressor identifier recorded in raster headers.
	Name() string

	// Extension returns the block object extension (for example, ".gz", ".zst", "").
	Extension() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// ErrUnknownCompressor is returned by ByName for unsupported names.
var ErrUnknownCompressor = errors.New("unknown compressor")

// ByName resolves a compressor from a profile value.
// The empty string and "none" select Noop.
func ByName(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "noop":
		return NewNoop(), nil
	case "gzip", "deflate":
		return NewGzip(), nil
	case "zstd":
		return NewZstd(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompressor, name)
	}
}

// Encode compresses a whole block.
func Encode(c Compressor, raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses a whole block.
func Decode(c Compressor, blob []byte) ([]byte, error) {
	r, err := c.Decompress(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Gzip implements Compressor using gzip compression.
type Gzip struct{}

// NewGzip creates a gzip compressor.
func NewGzip() *Gzip {
	return &Gzip{}
}

// Name returns the compressor identifier.
func (g *Gzip) Name() string {
	return "gzip"
}

// Extension returns the file extension for gzip.
func (g *Gzip) Extension() string {
	return ".gz"
}

// Compress wraps a writer with gzip compression.
func (g *Gzip) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

// Decompress wraps a reader with gzip decompression.
func (g *Gzip) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

var _ Compressor = (*Gzip)(nil)

// Zstd implements Compressor using Zstandard.
// Zstd decodes faster than gzip, which matters for read-heavy chunk graphs.
type Zstd struct{}

// NewZstd creates a zstd compressor.
func NewZstd() *Zstd {
	return &Zstd{}
}

// Name returns the compressor identifier.
func (z *Zstd) Name() string {
	return "zstd"
}

// Extension returns the file extension for zstd.
func (z *Zstd) Extension() string {
	return ".zst"
}

// Compress wraps a writer with zstd compression.
func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// Decompress wraps a reader with zstd decompression.
func (z *Zstd) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

var _ Compressor = (*Zstd)(nil)

// Noop implements Compressor with no compression.
type Noop struct{}

// NewNoop creates a noop compressor.
func NewNoop() *Noop {
	return &Noop{}
}

// Name returns the compressor identifier.
func (n *Noop) Name() string {
	return "none"
}

// Extension returns an empty extension (no compression).
func (n *Noop) Extension() string {
	return ""
}

// Compress returns a writer that passes through unchanged.
func (n *Noop) Compress(w io.Writer) (io.WriteCloser, error) {
	return &noopWriteCloser{w}, nil
}

// Decompress returns a reader that passes through unchanged.
func (n *Noop) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// noopWriteCloser wraps a writer to implement WriteCloser.
type noopWriteCloser struct {
	io.Writer
}

func (n *noopWriteCloser) Close() error {
	return nil
}

var _ Compressor = (*Noop)(nil)
