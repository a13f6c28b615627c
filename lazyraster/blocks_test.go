package lazyraster

import (
	"errors"
	"testing"

	"github.com/justapithecus/lazyraster/internal/testutil"
)

func TestResolveBlocks_NativeGrid(t *testing.T) {
	store, _ := sampleStore(t)

	blocks, err := ResolveBlocks(t.Context(), samplePath, 1, WithStore(store))
	if err != nil {
		t.Fatalf("ResolveBlocks failed: %v", err)
	}
	if blocks.ChunkHeight != testutil.SampleBlock || blocks.ChunkWidth != testutil.SampleBlock {
		t.Errorf("chunk shape = %dx%d, want %dx%d", blocks.ChunkHeight, blocks.ChunkWidth, testutil.SampleBlock, testutil.SampleBlock)
	}
	// 37x53 in 16x16 blocks: 3 rows by 4 cols.
	if len(blocks.Windows) != 12 {
		t.Fatalf("got %d windows, want 12", len(blocks.Windows))
	}
	first := blocks.Windows[0]
	if first.Index != (BlockIndex{Row: 0, Col: 0}) || first.Window != (Window{Width: 16, Height: 16}) {
		t.Errorf("first block = %+v", first)
	}
	// Row-major order.
	if blocks.Windows[1].Index != (BlockIndex{Row: 0, Col: 1}) {
		t.Errorf("second block index = %+v, want {0 1}", blocks.Windows[1].Index)
	}
	last := blocks.Windows[11]
	want := Window{ColOff: 48, RowOff: 32, Width: 5, Height: 5}
	if last.Index != (BlockIndex{Row: 2, Col: 3}) || last.Window != want {
		t.Errorf("edge block = %+v, want index {2 3} window %s", last, want)
	}
}

func TestResolveBlocks_MultiplierScalesEveryField(t *testing.T) {
	store, _ := sampleStore(t)

	native, err := ResolveBlocks(t.Context(), samplePath, 2, WithStore(store))
	if err != nil {
		t.Fatalf("ResolveBlocks failed: %v", err)
	}
	for _, m := range []int{2, 3, 4} {
		scaled, err := ResolveBlocks(t.Context(), samplePath, 2, WithStore(store), WithBlockSize(m))
		if err != nil {
			t.Fatalf("ResolveBlocks(m=%d) failed: %v", m, err)
		}
		if scaled.ChunkHeight != native.ChunkHeight*m || scaled.ChunkWidth != native.ChunkWidth*m {
			t.Errorf("m=%d: chunk shape = %dx%d", m, scaled.ChunkHeight, scaled.ChunkWidth)
		}
		if len(scaled.Windows) != len(native.Windows) {
			t.Fatalf("m=%d: got %d windows, want %d", m, len(scaled.Windows), len(native.Windows))
		}
		for i, bw := range scaled.Windows {
			if bw.Index != native.Windows[i].Index || bw.Window != native.Windows[i].Window.Scale(m) {
				t.Errorf("m=%d: window %d = %+v, want %+v scaled", m, i, bw, native.Windows[i])
			}
		}
	}
}

func TestResolveBlocks_Errors(t *testing.T) {
	store, _ := sampleStore(t)
	ctx := t.Context()

	if _, err := ResolveBlocks(ctx, samplePath, 4, WithStore(store)); !errors.Is(err, ErrInvalidBand) {
		t.Errorf("band 4: expected ErrInvalidBand, got %v", err)
	}
	if _, err := ResolveBlocks(ctx, samplePath, 1, WithStore(store), WithBlockSize(0)); !errors.Is(err, ErrInvalidBlockSize) {
		t.Errorf("block size 0: expected ErrInvalidBlockSize, got %v", err)
	}
	if _, err := ResolveBlocks(ctx, "missing", 1, WithStore(store)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing raster: expected ErrNotFound, got %v", err)
	}
}
