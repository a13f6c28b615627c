package tiled

import "fmt"

// Window is a rectangular pixel region: column/row offset plus extent.
type Window struct {
	ColOff int
	RowOff int
	Width  int
	Height int
}

// Scale multiplies every field by m.
func (w Window) Scale(m int) Window {
	return Window{ColOff: w.ColOff * m, RowOff: w.RowOff * m, Width: w.Width * m, Height: w.Height * m}
}

// Empty reports whether the window covers no pixels.
func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// Intersect returns the overlap of w and o. Disjoint windows yield a window
// with zero width or height.
func (w Window) Intersect(o Window) Window {
	c0, r0 := max(w.ColOff, o.ColOff), max(w.RowOff, o.RowOff)
	c1 := min(w.ColOff+w.Width, o.ColOff+o.Width)
	r1 := min(w.RowOff+w.Height, o.RowOff+o.Height)
	return Window{ColOff: c0, RowOff: r0, Width: max(c1-c0, 0), Height: max(r1-r0, 0)}
}

// Contains reports whether o lies entirely inside w.
func (w Window) Contains(o Window) bool {
	return o.ColOff >= w.ColOff && o.RowOff >= w.RowOff &&
		o.ColOff+o.Width <= w.ColOff+w.Width &&
		o.RowOff+o.Height <= w.RowOff+w.Height
}

func (w Window) String() string {
	return fmt.Sprintf("Window(col_off=%d, row_off=%d, width=%d, height=%d)", w.ColOff, w.RowOff, w.Width, w.Height)
}

// BlockIndex is the (row, col) position of a block in a band's block grid.
type BlockIndex struct {
	Row int
	Col int
}

// BlockWindow pairs a block position with the pixels it covers.
type BlockWindow struct {
	Index  BlockIndex
	Window Window
}
