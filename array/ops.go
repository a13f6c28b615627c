package array

import (
	"context"
	"fmt"
	"math"
	"slices"
)

// BinaryOp is an element-wise operation between two operands.
type BinaryOp uint8

const (
	OpAnd BinaryOp = iota + 1
	OpOr
	OpAdd
	OpSub
	OpMul
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpEqual
)

var opNames = map[BinaryOp]string{
	OpAnd:          "and",
	OpOr:           "or",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpGreater:      "gt",
	OpGreaterEqual: "ge",
	OpLess:         "lt",
	OpLessEqual:    "le",
	OpEqual:        "eq",
}

func (op BinaryOp) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// IsComparison reports whether op yields a bool array.
func (op BinaryOp) IsComparison() bool {
	return op >= OpGreater && op <= OpEqual
}

// ResultDType returns the dtype op produces from operands of a and b.
func (op BinaryOp) ResultDType(a, b DType) (DType, error) {
	if _, ok := opNames[op]; !ok {
		return Invalid, fmt.Errorf("array: unknown operation %v", op)
	}
	if op.IsComparison() {
		return Bool, nil
	}
	out := Promote(a, b)
	if (op == OpAnd || op == OpOr) && out.IsFloat() {
		return Invalid, fmt.Errorf("array: %s is not defined for %s and %s", op, a, b)
	}
	return out, nil
}

// Binary applies op element-wise to two arrays of the same shape.
func Binary(op BinaryOp, x, y *Dense) (*Dense, error) {
	if !slices.Equal(x.shape, y.shape) {
		return nil, fmt.Errorf("%w: %s of %v and %v", ErrShapeMismatch, op, x.shape, y.shape)
	}
	dt, err := op.ResultDType(x.dtype, y.dtype)
	if err != nil {
		return nil, err
	}
	out := NewDense(dt, x.shape...)
	apply(op, out, x.Len(), x.dtype, y.dtype, x.Float, y.Float, x.Int, y.Int)
	return out, nil
}

// BinaryScalar applies op between every element of x and v.
// Integer arrays keep their dtype unless v has a fractional part.
func BinaryScalar(op BinaryOp, x *Dense, v float64) (*Dense, error) {
	sdt := x.dtype
	if v != math.Trunc(v) && !x.dtype.IsFloat() {
		sdt = Float64
	}
	dt, err := op.ResultDType(x.dtype, sdt)
	if err != nil {
		return nil, err
	}
	out := NewDense(dt, x.shape...)
	fv := func(int) float64 { return v }
	iv := func(int) int64 { return int64(v) }
	apply(op, out, x.Len(), x.dtype, sdt, x.Float, fv, x.Int, iv)
	return out, nil
}

func apply(op BinaryOp, out *Dense, n int, adt, bdt DType, af, bf func(int) float64, ai, bi func(int) int64) {
	useFloat := adt.IsFloat() || bdt.IsFloat() || adt == Uint64 || bdt == Uint64
	if op == OpAnd || op == OpOr {
		useFloat = false
	}
	for i := range n {
		if useFloat {
			a, b := af(i), bf(i)
			switch op {
			case OpAdd:
				out.SetFloat(i, a+b)
			case OpSub:
				out.SetFloat(i, a-b)
			case OpMul:
				out.SetFloat(i, a*b)
			default:
				out.SetInt(i, boolInt(compare(op, a, b)))
			}
			continue
		}
		a, b := ai(i), bi(i)
		switch op {
		case OpAnd:
			out.SetInt(i, a&b)
		case OpOr:
			out.SetInt(i, a|b)
		case OpAdd:
			out.SetInt(i, a+b)
		case OpSub:
			out.SetInt(i, a-b)
		case OpMul:
			out.SetInt(i, a*b)
		default:
			out.SetInt(i, boolInt(compare(op, a, b)))
		}
	}
}

func compare[T int64 | float64](op BinaryOp, a, b T) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpEqual:
		return a == b
	}
	return false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// BinaryTask combines one chunk of each operand.
type BinaryTask struct {
	Op    BinaryOp
	Left  Key
	Right Key
}

func (t BinaryTask) Deps() []Key  { return []Key{t.Left, t.Right} }
func (t BinaryTask) Kind() string { return "binary" }

func (t BinaryTask) Run(_ context.Context, deps []*Dense) (*Dense, error) {
	return Binary(t.Op, deps[0], deps[1])
}

// ScalarTask combines one chunk with a constant.
type ScalarTask struct {
	Op     BinaryOp
	Src    Key
	Scalar float64
}

func (t ScalarTask) Deps() []Key  { return []Key{t.Src} }
func (t ScalarTask) Kind() string { return "scalar" }

func (t ScalarTask) Run(_ context.Context, deps []*Dense) (*Dense, error) {
	return BinaryScalar(t.Op, deps[0], t.Scalar)
}

// AsTypeTask converts one chunk to DType.
type AsTypeTask struct {
	Src   Key
	DType DType
}

func (t AsTypeTask) Deps() []Key  { return []Key{t.Src} }
func (t AsTypeTask) Kind() string { return "astype" }

func (t AsTypeTask) Run(_ context.Context, deps []*Dense) (*Dense, error) {
	return deps[0].AsType(t.DType), nil
}

// Binary returns the deferred element-wise op between a and b.
// Both arrays must have the same shape and chunking.
func (a *Array) Binary(op BinaryOp, b *Array) (*Array, error) {
	if !slices.Equal(a.shape, b.shape) {
		return nil, fmt.Errorf("%w: %s of %v and %v", ErrShapeMismatch, op, a.shape, b.shape)
	}
	if !sameChunks(a.chunks, b.chunks) {
		return nil, fmt.Errorf("%w: %s of differently chunked arrays %v and %v", ErrShapeMismatch, op, a.chunks, b.chunks)
	}
	dt, err := op.ResultDType(a.dtype, b.dtype)
	if err != nil {
		return nil, err
	}
	name := op.String() + "-" + Tokenize(op, a.name, b.name)
	return a.derive(name, dt, func(k Key) Task {
		return BinaryTask{Op: op, Left: k, Right: NewKey(b.name, k.Index()...)}
	}, b.graph)
}

// Scalar returns the deferred element-wise op between a and v.
func (a *Array) Scalar(op BinaryOp, v float64) (*Array, error) {
	sdt := a.dtype
	if v != math.Trunc(v) && !a.dtype.IsFloat() {
		sdt = Float64
	}
	dt, err := op.ResultDType(a.dtype, sdt)
	if err != nil {
		return nil, err
	}
	name := op.String() + "-" + Tokenize(op, a.name, v)
	return a.derive(name, dt, func(k Key) Task {
		return ScalarTask{Op: op, Src: k, Scalar: v}
	})
}

// AsType returns a deferred conversion of a to dt.
func (a *Array) AsType(dt DType) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("array: invalid dtype %v", dt)
	}
	if dt == a.dtype {
		return a, nil
	}
	name := "astype-" + Tokenize(a.name, dt.String())
	return a.derive(name, dt, func(k Key) Task {
		return AsTypeTask{Src: k, DType: dt}
	})
}

// derive builds a same-grid array whose chunk at each index is produced by
// mk applied to the source key at that index.
func (a *Array) derive(name string, dt DType, mk func(Key) Task, extra ...Graph) (*Array, error) {
	keys := a.Keys()
	layer := make(Graph, len(keys))
	for _, k := range keys {
		layer[NewKey(name, k.Index()...)] = mk(k)
	}
	graph := Merge(append([]Graph{a.graph, layer}, extra...)...)
	return New(name, graph, a.chunks, dt, a.shape)
}

func sameChunks(a, b [][]int) bool {
	return slices.EqualFunc(a, b, func(x, y []int) bool { return slices.Equal(x, y) })
}
