package array

import (
	"fmt"
	"strings"
)

// DType is the element type of an array.
// Names follow the numpy spelling used by raster profiles ("uint8", "float32").
type DType uint8

const (
	Invalid DType = iota
	Bool
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	Bool:    "bool",
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Uint64:  "uint64",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
}

// ParseDType resolves a dtype name. "byte" is accepted as an alias of uint8.
func ParseDType(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "byte" {
		return Uint8, nil
	}
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return Invalid, fmt.Errorf("array: unsupported dtype %q", s)
}

func (dt DType) String() string {
	if n, ok := dtypeNames[dt]; ok {
		return n
	}
	return fmt.Sprintf("dtype(%d)", uint8(dt))
}

// Valid reports whether dt is a known dtype.
func (dt DType) Valid() bool {
	_, ok := dtypeNames[dt]
	return ok
}

// Size returns the element size in bytes.
func (dt DType) Size() int {
	switch dt {
	case Bool, Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether dt is a floating point type.
func (dt DType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// IsSigned reports whether dt is a signed integer type.
func (dt DType) IsSigned() bool {
	return dt == Int8 || dt == Int16 || dt == Int32 || dt == Int64
}

// IsInteger reports whether dt is an integer or bool type.
func (dt DType) IsInteger() bool {
	return dt.Valid() && !dt.IsFloat()
}

// Promote returns the result dtype of a binary operation between a and b.
// Bool is absorbed by any other type; mixed signedness widens to the next
// signed size; any float operand yields the wider float.
func Promote(a, b DType) DType {
	switch {
	case a == b:
		return a
	case a == Bool:
		return b
	case b == Bool:
		return a
	case a.IsFloat() || b.IsFloat():
		if a == Float64 || b == Float64 || a.Size() >= 4 && !a.IsFloat() || b.Size() >= 4 && !b.IsFloat() {
			return Float64
		}
		return Float32
	case a.IsSigned() == b.IsSigned():
		if a.Size() >= b.Size() {
			return a
		}
		return b
	}

	signed, unsigned := a, b
	if !a.IsSigned() {
		signed, unsigned = b, a
	}
	if signed.Size() > unsigned.Size() {
		return signed
	}
	switch unsigned.Size() {
	case 1:
		return Int16
	case 2:
		return Int32
	default:
		return Int64
	}
}
