package types

// canCastTo implements explicit-cast rules: the language definition canCastTo. Most
// numeric/bool/bounded-int conversions are legal explicitly; aggregates
// require matching shape; structs only cast to themselves.
func CanCastTo(target, src *Type) bool {
	if CanSilentlyCastTo(target, src) {
		return true
	}
	switch {
	case target.IsPrimitive() && target.PrimitiveType().IsNumeric() && src.IsNumeric():
		return true
	case target.IsPrimitive() && target.PrimitiveType() == Bool && src.IsNumeric():
		return true
	case target.IsNumeric() && src.IsPrimitive() && src.PrimitiveType() == Bool:
		return true
	case target.IsBoundedInt() && src.IsNumeric():
		return true
	case target.IsVector() && src.IsVector():
		return target.VectorSize() == src.VectorSize() && CanCastTo(Prim(target.VectorElement()), Prim(src.VectorElement()))
	case target.IsFixedSizeArray() && src.IsFixedSizeArray():
		return target.ArraySize() == src.ArraySize() && CanCastTo(target.ElementType(), src.ElementType())
	case target.IsStruct() && src.IsStruct():
		return target.StructRef() == src.StructRef()
	}
	return false
}

// CanSilentlyCastTo implements the language definition canSilentlyCastTo: the set of
// conversions allowed implicitly at argument/return/assignment sites.
// Integer literals silently cast to any numeric type that losslessly
// represents them — that literal-specific widening lives in value.go,
// not here; this function answers the type-only question.
func CanSilentlyCastTo(target, src *Type) bool {
	if target == nil || src == nil {
		return false
	}
	bareTarget, bareSrc := target.WithoutConst(), src.WithoutConst()

	if bareTarget.Equal(bareSrc) {
		return true
	}

	switch {
	case bareTarget.IsPrimitive() && bareSrc.IsPrimitive():
		return silentPrimitiveWiden(bareTarget.PrimitiveType(), bareSrc.PrimitiveType())
	case bareTarget.IsBoundedInt() && bareSrc.IsPrimitive() && bareSrc.PrimitiveType().IsInteger():
		// A plain integer can silently become a bounded integer only when
		// it is itself a bounded-int typed constant; general widening of
		// an arbitrary int32 into a bounded int needs an explicit cast
		// since it may truncate. Handled as literal-specific in value.go.
		return false
	case bareTarget.IsVector() && bareSrc.IsVector():
		return bareTarget.VectorSize() == bareSrc.VectorSize() &&
			silentPrimitiveWiden(bareTarget.VectorElement(), bareSrc.VectorElement())
	case bareTarget.IsVector() && bareSrc.IsPrimitive():
		// a scalar broadcasts into a vector of matching element type
		return bareTarget.VectorElement() == bareSrc.PrimitiveType()
	case bareTarget.IsFixedSizeArray() && bareSrc.IsFixedSizeArray():
		return bareTarget.ArraySize() == bareSrc.ArraySize() &&
			CanSilentlyCastTo(bareTarget.ElementType(), bareSrc.ElementType())
	case bareTarget.IsUnsizedArray() && bareSrc.IsFixedSizeArray():
		return CanSilentlyCastTo(bareTarget.ElementType(), bareSrc.ElementType())
	case bareTarget.IsStruct() && bareSrc.IsStruct():
		return bareTarget.StructRef() == bareSrc.StructRef()
	}
	return false
}

// silentPrimitiveWiden is the lossless-widening lattice for primitives:
// int32 -> int64 -> float64, int32 -> float32 (lossy above 2^24 but spec
// treats it as the standard numeric promotion, matching the source
// language), bool never silently converts to/from numerics.
func silentPrimitiveWiden(target, src Primitive) bool {
	if target == src {
		return true
	}
	switch src {
	case Int32:
		return target == Int64 || target == Float32 || target == Float64
	case Int64:
		return target == Float64
	case Float32:
		return target == Float64
	}
	return false
}

// CanPassAsArgumentTo implements the language definition canPassAsArgumentTo: parameter
// matching used by function overload resolution (internal/resolve). With
// requireExact set it demands the bare types match exactly (used to find
// "exact match" candidates in FunctionResolver); otherwise it falls back to
// silent-cast compatibility.
func CanPassAsArgumentTo(target, src *Type, requireExact bool) bool {
	// by-reference parameters require the argument to actually be (or be
	// promotable to) a reference of a type-equal or silently-castable kind;
	// by-value parameters ignore the argument's reference-ness.
	if target.IsReference() {
		if !CanSilentlyCastTo(target.WithoutReference(), src.WithoutReference()) {
			return false
		}
		if requireExact {
			return target.WithoutReference().Equal(src.WithoutReference())
		}
		return true
	}
	bareTarget := target.WithoutReference()
	bareSrc := src.WithoutReference()
	if requireExact {
		return bareTarget.WithoutConst().Equal(bareSrc.WithoutConst())
	}
	return CanSilentlyCastTo(bareTarget, bareSrc)
}
