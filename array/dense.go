package array

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrShapeMismatch indicates operands or buffers whose shapes disagree.
var ErrShapeMismatch = errors.New("array: shape mismatch")

// Dense is an in-memory, row-major array stored as a little-endian byte buffer.
type Dense struct {
	dtype DType
	shape []int
	data  []byte
}

// Element is the set of Go types a Dense can be built from.
type Element interface {
	bool | uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64
}

// NewDense allocates a zero-filled array.
func NewDense(dtype DType, shape ...int) *Dense {
	return &Dense{
		dtype: dtype,
		shape: slices.Clone(shape),
		data:  make([]byte, numElements(shape)*dtype.Size()),
	}
}

// NewDenseFrom wraps an existing little-endian buffer without copying.
func NewDenseFrom(dtype DType, shape []int, data []byte) (*Dense, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("array: invalid dtype %v", dtype)
	}
	if want := numElements(shape) * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("%w: buffer has %d bytes, shape %v of %s needs %d", ErrShapeMismatch, len(data), shape, dtype, want)
	}
	return &Dense{dtype: dtype, shape: slices.Clone(shape), data: data}, nil
}

// FromValues builds a Dense from a typed slice.
func FromValues[T Element](vals []T, shape ...int) (*Dense, error) {
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	if numElements(shape) != len(vals) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(vals), shape)
	}

	var d *Dense
	switch v := any(vals).(type) {
	case []bool:
		d = NewDense(Bool, shape...)
		for i, x := range v {
			if x {
				d.data[i] = 1
			}
		}
	case []uint8:
		d = NewDense(Uint8, shape...)
		copy(d.data, v)
	case []int8:
		d = NewDense(Int8, shape...)
		for i, x := range v {
			d.data[i] = byte(x)
		}
	case []uint16:
		d = NewDense(Uint16, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint16(d.data[i*2:], x)
		}
	case []int16:
		d = NewDense(Int16, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint16(d.data[i*2:], uint16(x))
		}
	case []uint32:
		d = NewDense(Uint32, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint32(d.data[i*4:], x)
		}
	case []int32:
		d = NewDense(Int32, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint32(d.data[i*4:], uint32(x))
		}
	case []uint64:
		d = NewDense(Uint64, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint64(d.data[i*8:], x)
		}
	case []int64:
		d = NewDense(Int64, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint64(d.data[i*8:], uint64(x))
		}
	case []float32:
		d = NewDense(Float32, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint32(d.data[i*4:], math.Float32bits(x))
		}
	case []float64:
		d = NewDense(Float64, shape...)
		for i, x := range v {
			binary.LittleEndian.PutUint64(d.data[i*8:], math.Float64bits(x))
		}
	}
	return d, nil
}

// Values copies the elements of d into a typed slice.
// T must match the dtype of d exactly.
func Values[T Element](d *Dense) ([]T, error) {
	out := make([]T, d.Len())
	var want DType
	switch any(out).(type) {
	case []bool:
		want = Bool
	case []uint8:
		want = Uint8
	case []int8:
		want = Int8
	case []uint16:
		want = Uint16
	case []int16:
		want = Int16
	case []uint32:
		want = Uint32
	case []int32:
		want = Int32
	case []uint64:
		want = Uint64
	case []int64:
		want = Int64
	case []float32:
		want = Float32
	case []float64:
		want = Float64
	}
	if want != d.dtype {
		return nil, fmt.Errorf("array: cannot read %s values as %s", d.dtype, want)
	}

	switch v := any(out).(type) {
	case []bool:
		for i := range v {
			v[i] = d.data[i] != 0
		}
	case []uint8:
		copy(v, d.data)
	default:
		for i := range out {
			if d.dtype.IsFloat() {
				setTyped(out, i, d.Float(i))
			} else {
				setTypedInt(out, i, d.Int(i))
			}
		}
	}
	return out, nil
}

func setTyped[T Element](out []T, i int, f float64) {
	switch v := any(out).(type) {
	case []float32:
		v[i] = float32(f)
	case []float64:
		v[i] = f
	}
}

func setTypedInt[T Element](out []T, i int, n int64) {
	switch v := any(out).(type) {
	case []int8:
		v[i] = int8(n)
	case []uint16:
		v[i] = uint16(n)
	case []int16:
		v[i] = int16(n)
	case []uint32:
		v[i] = uint32(n)
	case []int32:
		v[i] = int32(n)
	case []uint64:
		v[i] = uint64(n)
	case []int64:
		v[i] = n
	}
}

// DType returns the element type.
func (d *Dense) DType() DType { return d.dtype }

// Shape returns a copy of the shape.
func (d *Dense) Shape() []int { return slices.Clone(d.shape) }

// Rank returns the number of dimensions.
func (d *Dense) Rank() int { return len(d.shape) }

// Len returns the number of elements.
func (d *Dense) Len() int { return numElements(d.shape) }

// Bytes returns the underlying little-endian buffer. It is not copied.
func (d *Dense) Bytes() []byte { return d.data }

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	return &Dense{dtype: d.dtype, shape: slices.Clone(d.shape), data: bytes.Clone(d.data)}
}

// Reshape returns a view with a new shape over the same buffer.
func (d *Dense) Reshape(shape ...int) (*Dense, error) {
	if numElements(shape) != d.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShapeMismatch, d.shape, shape)
	}
	return &Dense{dtype: d.dtype, shape: slices.Clone(shape), data: d.data}, nil
}

// Equal reports whether d and o have the same dtype, shape and contents.
func (d *Dense) Equal(o *Dense) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.dtype == o.dtype && slices.Equal(d.shape, o.shape) && bytes.Equal(d.data, o.data)
}

// Float returns element i (flat, row-major) as float64.
func (d *Dense) Float(i int) float64 {
	b := d.data[i*d.dtype.Size():]
	switch d.dtype {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(b))
	default:
		return float64(d.Int(i))
	}
}

// Int returns element i as int64. Floats are truncated toward zero.
func (d *Dense) Int(i int) int64 {
	b := d.data[i*d.dtype.Size():]
	switch d.dtype {
	case Bool, Uint8:
		return int64(b[0])
	case Int8:
		return int64(int8(b[0]))
	case Uint16:
		return int64(binary.LittleEndian.Uint16(b))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case Uint32:
		return int64(binary.LittleEndian.Uint32(b))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case Uint64, Int64:
		return int64(binary.LittleEndian.Uint64(b))
	case Float32, Float64:
		return int64(d.Float(i))
	default:
		return 0
	}
}

// SetFloat stores v at element i, converting to the array dtype.
func (d *Dense) SetFloat(i int, v float64) {
	b := d.data[i*d.dtype.Size():]
	switch d.dtype {
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case Bool:
		if v != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case Uint64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	default:
		d.SetInt(i, int64(v))
	}
}

// SetInt stores v at element i, wrapping to the array dtype.
func (d *Dense) SetInt(i int, v int64) {
	b := d.data[i*d.dtype.Size():]
	switch d.dtype {
	case Bool:
		if v != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case Uint8, Int8:
		b[0] = byte(v)
	case Uint16, Int16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case Uint32, Int32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case Uint64, Int64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case Float32, Float64:
		d.SetFloat(i, float64(v))
	}
}

// Fill sets every element to v.
func (d *Dense) Fill(v float64) {
	if v == 0 {
		clear(d.data)
		return
	}
	n := d.Len()
	if n == 0 {
		return
	}
	d.SetFloat(0, v)
	size := d.dtype.Size()
	for i := 1; i < n; i++ {
		copy(d.data[i*size:(i+1)*size], d.data[:size])
	}
}

// AsType converts d to another dtype. The same dtype returns d itself.
func (d *Dense) AsType(dt DType) *Dense {
	if dt == d.dtype {
		return d
	}
	out := NewDense(dt, d.shape...)
	n := d.Len()
	for i := range n {
		if d.dtype.IsFloat() || dt.IsFloat() || d.dtype == Uint64 {
			out.SetFloat(i, d.Float(i))
		} else {
			out.SetInt(i, d.Int(i))
		}
	}
	return out
}

// Extract copies the box [start, start+count) into a new array.
func (d *Dense) Extract(start, count []int) (*Dense, error) {
	if err := d.checkBox(start, count); err != nil {
		return nil, err
	}
	out := NewDense(d.dtype, count...)
	if out.Len() == 0 {
		return out, nil
	}
	copyBox(d, start, out, make([]int, len(count)), count)
	return out, nil
}

// Paste copies src into d with its origin at offset. Dtypes must match.
func (d *Dense) Paste(src *Dense, offset []int) error {
	if src.dtype != d.dtype {
		return fmt.Errorf("array: cannot paste %s into %s", src.dtype, d.dtype)
	}
	if err := d.checkBox(offset, src.shape); err != nil {
		return err
	}
	if src.Len() == 0 {
		return nil
	}
	copyBox(src, make([]int, len(offset)), d, offset, src.shape)
	return nil
}

func (d *Dense) checkBox(start, count []int) error {
	if len(start) != len(d.shape) || len(count) != len(d.shape) {
		return fmt.Errorf("%w: box rank %d/%d on array of rank %d", ErrShapeMismatch, len(start), len(count), len(d.shape))
	}
	for i := range d.shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > d.shape[i] {
			return fmt.Errorf("%w: box start=%v count=%v exceeds shape %v", ErrShapeMismatch, start, count, d.shape)
		}
	}
	return nil
}

// copyBox copies a count-shaped box from src at srcOff to dst at dstOff,
// one contiguous innermost run at a time.
func copyBox(src *Dense, srcOff []int, dst *Dense, dstOff []int, count []int) {
	rank := len(count)
	size := src.dtype.Size()
	if rank == 0 {
		copy(dst.data[:size], src.data[:size])
		return
	}
	srcStrides := strides(src.shape)
	dstStrides := strides(dst.shape)
	run := count[rank-1] * size

	idx := make([]int, rank-1)
	for {
		so, do := srcOff[rank-1], dstOff[rank-1]
		for a := range rank - 1 {
			so += (srcOff[a] + idx[a]) * srcStrides[a]
			do += (dstOff[a] + idx[a]) * dstStrides[a]
		}
		copy(dst.data[do*size:do*size+run], src.data[so*size:so*size+run])

		a := rank - 2
		for a >= 0 {
			idx[a]++
			if idx[a] < count[a] {
				break
			}
			idx[a] = 0
			a--
		}
		if a < 0 {
			return
		}
	}
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
