// Package value implements the compile-time constant Value model:
// literals, struct/array/vector aggregates, zero initialisation, and the
// cast machinery that distinguishes a silent (lossless, used at
// argument/assignment sites) cast from an explicit one.
//
// Grounded on a reference type-system implementation's small tagged-union
// Value (secondary reference; the original interpreter, SynteLang, represents
// every operand as a bare float64 and has no constant-folding machinery to
// borrow from).
package value

import (
	"fmt"
	"math"

	"soul/internal/ident"
	"soul/internal/types"
)

// Value is tagged by its Type (the language definition: "Value. Tagged by its Type.").
// Exactly one of the payload fields is meaningful, selected by Type.Tag()
// and, for primitives, by Type.PrimitiveType().
type Value struct {
	typ *types.Type

	i    int64
	f    float64
	b    bool
	str  ident.StringHandle
	strValid bool

	// aggregates: struct members, or vector/array elements.
	elems []Value

	// large unsized-array constants live out-of-line; constHandle is set
	// instead of elems when the table owns the backing storage.
	constHandle ident.ConstantHandle
	hasConstHandle bool
}

func (v Value) Type() *types.Type { return v.typ }

func Bool(b bool) Value   { return Value{typ: types.BoolT, b: b} }
func Int32(i int32) Value { return Value{typ: types.Int32T, i: int64(i)} }
func Int64(i int64) Value { return Value{typ: types.Int64T, i: i} }
func Float32(f float32) Value { return Value{typ: types.Float32T, f: float64(f)} }
func Float64(f float64) Value { return Value{typ: types.Float64T, f: f} }
func StringLit(h ident.StringHandle) Value {
	return Value{typ: types.StringT, str: h, strValid: true}
}

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsInt() int64       { return v.i }
func (v Value) AsFloat() float64   { return v.f }
func (v Value) AsString() (ident.StringHandle, bool) { return v.str, v.strValid }
func (v Value) Elements() []Value  { return v.elems }

// Aggregate builds a vector/array/struct value from already-typed elements.
func Aggregate(t *types.Type, elems []Value) Value {
	return Value{typ: t, elems: elems}
}

// LargeConstant wraps a handle into a ConstantTable, used for unsized-array
// literals too large to inline .
func LargeConstant(t *types.Type, h ident.ConstantHandle) Value {
	return Value{typ: t, constHandle: h, hasConstHandle: true}
}

func (v Value) ConstantHandle() (ident.ConstantHandle, bool) {
	return v.constHandle, v.hasConstHandle
}

// ZeroInitialiser produces the zero Value for any Type .
func ZeroInitialiser(t *types.Type) Value {
	switch t.Tag() {
	case types.TagPrimitive:
		switch t.PrimitiveType() {
		case types.Bool:
			return Bool(false)
		case types.Int32:
			return Int32(0)
		case types.Int64:
			return Int64(0)
		case types.Float32:
			return Value{typ: t, f: 0}
		case types.Float64:
			return Value{typ: t, f: 0}
		case types.StringLiteral:
			return Value{typ: t}
		default:
			return Value{typ: t}
		}
	case types.TagBoundedInt:
		return Value{typ: t, i: 0}
	case types.TagVector:
		n := t.VectorSize()
		elems := make([]Value, n)
		for i := range elems {
			elems[i] = ZeroInitialiser(types.Prim(t.VectorElement()))
		}
		return Aggregate(t, elems)
	case types.TagArray:
		if t.IsUnsizedArray() {
			return Aggregate(t, nil)
		}
		n := t.ArraySize()
		elems := make([]Value, n)
		for i := range elems {
			elems[i] = ZeroInitialiser(t.ElementType())
		}
		return Aggregate(t, elems)
	case types.TagStruct:
		info := t.StructRef()
		elems := make([]Value, len(info.Members))
		for i, m := range info.Members {
			elems[i] = ZeroInitialiser(m.Type)
		}
		return Aggregate(t, elems)
	}
	return Value{typ: t}
}

// --- casting ---

// IsIntegerLiteral reports whether v is a bare (non-bounded, non-vector)
// integer constant — the only case the language definition grants unconditional silent
// numeric widening to: "Integer literals silently cast to any numeric type
// that losslessly represents them."
func (v Value) IsIntegerLiteral() bool {
	return v.typ.IsPrimitive() && v.typ.PrimitiveType().IsInteger()
}

// losslesslyRepresents reports whether the literal value v can be
// represented in target without loss, for the literal-specific silent-cast
// carve-out.
func (v Value) losslesslyRepresents(target *types.Type) bool {
	if !v.IsIntegerLiteral() {
		return false
	}
	switch {
	case target.IsPrimitive() && target.PrimitiveType().IsInteger():
		if target.PrimitiveType() == types.Int32 {
			return v.i >= math.MinInt32 && v.i <= math.MaxInt32
		}
		return true // int64 always fits an int32-or-smaller literal
	case target.IsPrimitive() && target.PrimitiveType().IsFloat():
		if target.PrimitiveType() == types.Float32 {
			return float64(int64(float32(v.i))) == float64(v.i)
		}
		return float64(int64(float64(v.i))) == float64(v.i)
	case target.IsBoundedInt():
		return v.i >= 0 && v.i < int64(target.BoundedIntLimit())
	}
	return false
}

// CanSilentlyCastTo mirrors types.CanSilentlyCastTo but additionally grants
// the integer-literal carve-out the language definition describes.
func (v Value) CanSilentlyCastTo(target *types.Type) bool {
	if types.CanSilentlyCastTo(target, v.typ) {
		return true
	}
	return v.losslesslyRepresents(target)
}

// CastToType implements the language definition Value::castToType: an explicit cast,
// narrowing permitted, returns an error for illegal conversions (e.g. a
// struct to a number, or a shape mismatch on an aggregate). A bounded-int
// target wraps or clamps the value into range rather than failing.
func (v Value) CastToType(t *types.Type) (Value, error) {
	if !types.CanCastTo(t, v.typ) && !v.losslesslyRepresents(t) {
		return Value{}, types.CastNotPermittedError{Target: t, Source: v.typ}
	}
	switch t.Tag() {
	case types.TagPrimitive:
		switch t.PrimitiveType() {
		case types.Bool:
			if v.typ.IsNumeric() {
				return Bool(v.numeric() != 0), nil
			}
			return Bool(v.b), nil
		case types.Int32:
			return Int32(int32(v.numeric())), nil
		case types.Int64:
			return Int64(int64(v.numeric())), nil
		case types.Float32:
			return Value{typ: t, f: float64(float32(v.numeric()))}, nil
		case types.Float64:
			return Value{typ: t, f: v.numeric()}, nil
		}
	case types.TagBoundedInt:
		n := int64(v.numeric())
		limit := int64(t.BoundedIntLimit())
		if t.BoundedIntWraps() {
			n = ((n % limit) + limit) % limit
		} else {
			if n < 0 {
				n = 0
			} else if n >= limit {
				n = limit - 1
			}
		}
		return Value{typ: t, i: n}, nil
	case types.TagVector, types.TagArray:
		if t.ElementType() == nil {
			return Value{}, types.CastNotPermittedError{Target: t, Source: v.typ}
		}
		if len(v.elems) != expectedCount(t) {
			return Value{}, fmt.Errorf("element count mismatch casting %s to %s", v.typ, t)
		}
		out := make([]Value, len(v.elems))
		for i, e := range v.elems {
			ev, err := e.CastToType(t.ElementType())
			if err != nil {
				return Value{}, err
			}
			out[i] = ev
		}
		return Aggregate(t, out), nil
	case types.TagStruct:
		return v, nil
	}
	return Value{}, types.CastNotPermittedError{Target: t, Source: v.typ}
}

func expectedCount(t *types.Type) int {
	if t.IsVector() {
		return t.VectorSize()
	}
	return t.ArraySize()
}

// CastToTypeExpectingSuccess is used where the resolver has already
// asserted (via CanSilentlyCastTo) that the cast must succeed; an error
// here means the resolver's own reasoning was inconsistent, which is an
// InternalAssert condition, not a user error.
func (v Value) CastToTypeExpectingSuccess(t *types.Type) Value {
	out, err := v.CastToType(t)
	if err != nil {
		panic(fmt.Sprintf("internal error: expected silent cast %s -> %s to succeed: %v", v.typ, t, err))
	}
	return out
}

func (v Value) numeric() float64 {
	if v.typ.IsPrimitiveFloat() {
		return v.f
	}
	return float64(v.i)
}

// Equal is structural equality, used by the runtime machine's == and !=
// operators.
func (v Value) Equal(o Value) bool {
	if !v.typ.Equal(o.typ) {
		return false
	}
	if len(v.elems) != len(o.elems) {
		return false
	}
	if len(v.elems) > 0 {
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	}
	switch {
	case v.typ.IsPrimitiveFloat():
		return v.f == o.f
	case v.typ.IsPrimitive() && v.typ.PrimitiveType() == types.Bool:
		return v.b == o.b
	case v.strValid || o.strValid:
		return v.str == o.str && v.strValid == o.strValid
	default:
		return v.i == o.i
	}
}

func (v Value) String() string {
	switch {
	case v.typ == nil:
		return "<invalid>"
	case v.typ.IsPrimitiveFloat():
		return fmt.Sprintf("%g%s", v.f, v.typ)
	case v.typ.IsPrimitive() && v.typ.PrimitiveType() == types.Bool:
		return fmt.Sprintf("%v", v.b)
	case v.strValid:
		return fmt.Sprintf("\"<str#%d>\"", v.str)
	case len(v.elems) > 0:
		return fmt.Sprintf("%s{...%d elems}", v.typ, len(v.elems))
	default:
		return fmt.Sprintf("%d%s", v.i, v.typ)
	}
}
