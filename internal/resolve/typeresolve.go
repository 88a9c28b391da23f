package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

// resolveTypes is pass 2: disambiguate SubscriptWithBrackets and
// SubscriptWithChevrons into a ConcreteType (type position) or an
// ArrayElementRef (value position), evaluate TypeMetaFunction expressions
// once their argument's type is known, and then materialise every resolved
// type-position expression into the structural *types.Type field of the
// declaration that carries it (VarDecl.Type, Param.Type, Endpoint.SampleTypes,
// FunctionDecl.ReturnType, StructDecl.Info.Members[i].Type, UsingDecl.Resolved).
func resolveTypes(m ast.Module, ctx *Context) passResult {
	var res passResult
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		switch n := e.(type) {
		case *ast.SubscriptWithBrackets:
			repl, failed := resolveBracketSubscript(n, ctx)
			if failed {
				res.numFailures++
				return nil, false
			}
			if repl == nil {
				return nil, false
			}
			res.numReplaced++
			return repl, true
		case *ast.SubscriptWithChevrons:
			repl, failed := resolveChevronSubscript(n, ctx)
			if failed {
				res.numFailures++
				return nil, false
			}
			if repl == nil {
				return nil, false
			}
			res.numReplaced++
			return repl, true
		case *ast.TypeMetaFunction:
			repl, failed := resolveTypeMeta(n, ctx)
			if failed {
				res.numFailures++
				return nil, false
			}
			if repl == nil {
				return nil, false
			}
			res.numReplaced++
			return repl, true
		}
		return nil, false
	})
	res.numReplaced += materializeTypes(m)
	return res
}

// resolveBracketSubscript decides what `base[index]` / `base[]` means: a
// fixed/unsized array type when base is itself a resolved type, otherwise
// an element access or slice into a value.
func resolveBracketSubscript(n *ast.SubscriptWithBrackets, ctx *Context) (ast.Expr, bool) {
	baseType := concreteTypeOf(n.Base)
	if baseType != nil {
		if n.Index == nil {
			return ast.NewConcreteType(types.UnsizedArray(baseType)), false
		}
		c, ok := n.Index.(*ast.Constant)
		if !ok {
			return nil, true // size not yet folded to a constant; retry
		}
		size := int(c.Value.AsInt())
		if size < 1 {
			ctx.errf(n.Location(), diag.TypeError, "array size must be >= 1, got %d", size)
			return ast.NewConcreteType(types.VoidT), false
		}
		if baseType.IsArray() {
			ctx.errf(n.Location(), diag.NotYetImplemented, "multi-dimensional arrays are not supported")
			return ast.NewConcreteType(types.VoidT), false
		}
		arr, err := types.FixedArray(baseType, size)
		if err != nil {
			ctx.errf(n.Location(), diag.TypeError, "%v", err)
			return ast.NewConcreteType(types.VoidT), false
		}
		return ast.NewConcreteType(arr), false
	}
	if isUnresolvedValue(n.Base) {
		return nil, true
	}
	r := &ast.ArrayElementRef{Base: n.Base, Index: n.Index, Slice: n.Slice}
	r.Loc = n.Location()
	return r, false
}

func resolveChevronSubscript(n *ast.SubscriptWithChevrons, ctx *Context) (ast.Expr, bool) {
	if qi, ok := n.Base.(*ast.QualifiedIdentifier); ok && len(qi.Parts) == 1 {
		name := qi.Parts[0].String()
		if name == "wrap" || name == "clamp" {
			if len(n.Args) != 1 {
				ctx.errf(n.Location(), diag.TypeError, "%s<N> takes exactly one argument", name)
				return ast.NewConcreteType(types.VoidT), false
			}
			c, ok := n.Args[0].(*ast.Constant)
			if !ok {
				return nil, true
			}
			bi, err := types.BoundedInt(int(c.Value.AsInt()), name == "wrap")
			if err != nil {
				ctx.errf(n.Location(), diag.TypeError, "%v", err)
				return ast.NewConcreteType(types.VoidT), false
			}
			return ast.NewConcreteType(bi), false
		}
	}
	baseType := concreteTypeOf(n.Base)
	if baseType == nil {
		return nil, true
	}
	if !baseType.IsPrimitive() {
		ctx.errf(n.Location(), diag.TypeError, "%s is not a valid vector element type", baseType)
		return ast.NewConcreteType(types.VoidT), false
	}
	if len(n.Args) != 1 {
		ctx.errf(n.Location(), diag.TypeError, "vector size must have exactly one argument")
		return ast.NewConcreteType(types.VoidT), false
	}
	c, ok := n.Args[0].(*ast.Constant)
	if !ok {
		return nil, true
	}
	vec, err := types.Vector(baseType.PrimitiveType(), int(c.Value.AsInt()))
	if err != nil {
		ctx.errf(n.Location(), diag.TypeError, "%v", err)
		return ast.NewConcreteType(types.VoidT), false
	}
	return ast.NewConcreteType(vec), false
}

func resolveTypeMeta(n *ast.TypeMetaFunction, ctx *Context) (ast.Expr, bool) {
	t := concreteTypeOf(n.Arg)
	if t == nil {
		t = n.Arg.ExprType()
	}
	if t == nil {
		return nil, true
	}
	loc := n.Location()
	mk := func(tt *types.Type) ast.Expr { c := ast.NewConcreteType(tt); c.Loc = loc; return c }
	switch n.Kind {
	case ast.MetaType:
		return mk(t), false
	case ast.MetaElementType:
		et := t.ElementType()
		if et == nil {
			ctx.errf(loc, diag.TypeError, "%s has no element type", t)
			return mk(types.VoidT), false
		}
		return mk(et), false
	case ast.MetaMakeConst:
		return mk(t.WithConst()), false
	case ast.MetaMakeReference:
		return mk(t.WithReference()), false
	case ast.MetaPrimitiveType:
		if t.IsVector() {
			return mk(types.Prim(t.VectorElement())), false
		}
		return mk(t), false
	case ast.MetaSize:
		return intConstant(sizeOf(t), loc), false
	case ast.MetaIsArray:
		return boolConstant(t.IsArray(), loc), false
	case ast.MetaIsVector:
		return boolConstant(t.IsVector(), loc), false
	case ast.MetaIsStruct:
		return boolConstant(t.IsStruct(), loc), false
	case ast.MetaIsInt:
		return boolConstant(t.IsInteger(), loc), false
	case ast.MetaIsFloat:
		return boolConstant(t.IsPrimitiveFloat(), loc), false
	case ast.MetaIsBool:
		return boolConstant(t.IsBool(), loc), false
	case ast.MetaIsReference:
		return boolConstant(t.IsReference(), loc), false
	case ast.MetaIsConst:
		return boolConstant(t.IsConst(), loc), false
	}
	return nil, true
}

func sizeOf(t *types.Type) int64 {
	switch {
	case t.IsVector():
		return int64(t.VectorSize())
	case t.IsArray():
		return int64(t.ArraySize())
	case t.IsStruct():
		return int64(len(t.StructRef().Members))
	}
	return 1
}

// concreteTypeOf reports the *types.Type a type-position expression has
// resolved to, or nil if e is not (yet, or ever) a resolved type.
func concreteTypeOf(e ast.Expr) *types.Type {
	if ct, ok := e.(*ast.ConcreteType); ok {
		return ct.ExprType()
	}
	return nil
}

// isUnresolvedValue reports whether e still needs further resolution before
// we can tell whether it denotes a type or a value — an unresolved
// QualifiedIdentifier (awaiting function/using resolution) or a
// not-yet-disambiguated CallOrCast/subscript.
func isUnresolvedValue(e ast.Expr) bool {
	switch e.(type) {
	case *ast.QualifiedIdentifier, *ast.SubscriptWithBrackets, *ast.SubscriptWithChevrons:
		return true
	case *ast.CallOrCast:
		return true
	}
	return false
}

// valueTypeOf infers the type of an already-resolved value expression,
// for callers that need an argument or operand's type but can't rely on
// exprBase.typ having been populated (only ConcreteType and Constant carry
// it directly; everything else is derived from what it points at).
func valueTypeOf(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.Constant:
		return n.Value.Type()
	case *ast.VariableRef:
		return symbolType(n.Target)
	case *ast.InputEndpointRef:
		return endpointSoleType(n.Target)
	case *ast.OutputEndpointRef:
		return endpointSoleType(n.Target)
	case *ast.ProcessorPropertyRef:
		return endpointSoleType(n.Endpoint)
	case *ast.BuiltinConstant:
		return types.Float64T
	case *ast.FunctionCall:
		return n.Target.ReturnType
	case *ast.TypeCast:
		return concreteTypeOf(n.Target)
	case *ast.ArrayElementRef:
		bt := valueTypeOf(n.Base)
		if bt == nil {
			return nil
		}
		if n.Slice != nil {
			return bt.CreateUnsizedArray()
		}
		return bt.ElementType()
	case *ast.StructMemberRef:
		bt := valueTypeOf(n.Base)
		if bt == nil || !bt.IsStruct() || n.MemberIdx < 0 {
			return nil
		}
		return bt.StructRef().Members[n.MemberIdx].Type
	case *ast.UnaryOp:
		return valueTypeOf(n.Arg)
	case *ast.IncDec:
		return valueTypeOf(n.Target)
	case *ast.AssignExpr:
		return valueTypeOf(n.Target)
	case *ast.BinaryOp:
		return binaryOpType(n)
	case *ast.Ternary:
		tt, ft := valueTypeOf(n.True), valueTypeOf(n.False)
		if tt == nil {
			return ft
		}
		return tt
	case *ast.CommaExpr:
		if len(n.Items) == 0 {
			return nil
		}
		return valueTypeOf(n.Items[len(n.Items)-1])
	case *ast.WriteToEndpoint:
		return types.VoidT
	case *ast.AdvanceCall:
		return types.VoidT
	case *ast.InitialiserList:
		if len(n.Elements) == 0 {
			return nil
		}
		et := valueTypeOf(n.Elements[0])
		if et == nil {
			return nil
		}
		return et.CreateUnsizedArray()
	}
	return nil
}

func symbolType(s ast.Symbol) *types.Type {
	switch v := s.(type) {
	case *ast.VarDecl:
		return v.Type
	case *ast.Param:
		return v.Type
	}
	return nil
}

func endpointSoleType(e *ast.Endpoint) *types.Type {
	if e == nil || len(e.SampleTypes) == 0 {
		return nil
	}
	return e.SampleTypes[0]
}

// binaryOpType gives the comparison/boolean operators a bool result and
// everything else the wider of its two operand types, mirroring
// silentPrimitiveWiden's lattice without duplicating it.
func binaryOpType(n *ast.BinaryOp) *types.Type {
	if isComparisonOrLogical(n.Op) {
		return types.BoolT
	}
	lt, rt := valueTypeOf(n.Lhs), valueTypeOf(n.Rhs)
	if lt == nil {
		return rt
	}
	if rt == nil {
		return lt
	}
	if types.CanSilentlyCastTo(lt, rt) {
		return lt
	}
	if types.CanSilentlyCastTo(rt, lt) {
		return rt
	}
	return lt
}

func isComparisonOrLogical(op token.Kind) bool {
	switch op {
	case token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge:
		return true
	}
	return false
}

func boolConstant(b bool, loc diag.Location) ast.Expr {
	c := &ast.Constant{Value: value.Bool(b)}
	c.Loc = loc
	return c
}

func intConstant(i int64, loc diag.Location) ast.Expr {
	c := &ast.Constant{Value: value.Int32(int32(i))}
	c.Loc = loc
	return c
}
