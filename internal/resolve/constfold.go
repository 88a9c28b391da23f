package resolve

import (
	"math"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

// foldConstants is pass 6: fold unary/binary/ternary operations and
// narrowing casts over already-constant operands, reads of write-once
// variables with a constant initialiser, and calls to numeric intrinsics
// whose arguments are all constant.
func foldConstants(m ast.Module, ctx *Context) passResult {
	var res passResult
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		repl := tryFold(e, ctx)
		if repl == nil {
			return nil, false
		}
		res.numReplaced++
		return repl, true
	})
	return res
}

func tryFold(e ast.Expr, ctx *Context) ast.Expr {
	switch n := e.(type) {
	case *ast.VariableRef:
		return foldVariableRead(n)
	case *ast.UnaryOp:
		return foldUnary(n, ctx)
	case *ast.BinaryOp:
		return foldBinary(n, ctx)
	case *ast.Ternary:
		return foldTernary(n)
	case *ast.TypeCast:
		return foldCast(n, ctx)
	case *ast.FunctionCall:
		return foldIntrinsicCall(n)
	}
	return nil
}

func foldVariableRead(n *ast.VariableRef) ast.Expr {
	v, ok := n.Target.(*ast.VarDecl)
	if !ok || !(v.IsConst || v.IsWriteOnceWithConstantInit()) {
		return nil
	}
	c, ok := v.Init.(*ast.Constant)
	if !ok {
		return nil
	}
	out := &ast.Constant{Value: c.Value}
	out.Loc = n.Location()
	return out
}

func constOperand(e ast.Expr) (value.Value, bool) {
	c, ok := e.(*ast.Constant)
	if !ok {
		return value.Value{}, false
	}
	return c.Value, true
}

func foldUnary(n *ast.UnaryOp, ctx *Context) ast.Expr {
	v, ok := constOperand(n.Arg)
	if !ok {
		return nil
	}
	t := v.Type()
	var out value.Value
	switch n.Op {
	case token.Minus:
		if t.IsPrimitiveFloat() {
			out = negFloat(v, t)
		} else {
			out = negInt(v, t)
		}
	case token.Not:
		out = value.Bool(!v.AsBool())
	case token.Tilde:
		out = bitwiseNot(v, t)
	default:
		return nil
	}
	return mkConstant(out, n.Location())
}

func negFloat(v value.Value, t *types.Type) value.Value {
	if t.PrimitiveType() == types.Float32 {
		return value.Float32(float32(-v.AsFloat()))
	}
	return value.Float64(-v.AsFloat())
}

func negInt(v value.Value, t *types.Type) value.Value {
	if t.PrimitiveType() == types.Int64 {
		return value.Int64(-v.AsInt())
	}
	return value.Int32(int32(-v.AsInt()))
}

func bitwiseNot(v value.Value, t *types.Type) value.Value {
	if t.PrimitiveType() == types.Int64 {
		return value.Int64(^v.AsInt())
	}
	return value.Int32(int32(^int32(v.AsInt())))
}

func foldBinary(n *ast.BinaryOp, ctx *Context) ast.Expr {
	lv, lok := constOperand(n.Lhs)
	rv, rok := constOperand(n.Rhs)
	if !lok || !rok {
		return nil
	}
	if isComparisonOrLogical(n.Op) {
		return mkConstant(foldComparison(n.Op, lv, rv), n.Location())
	}
	resultType := binaryOpType(n)
	if resultType == nil {
		return nil
	}
	if n.Op == token.Slash || n.Op == token.Percent {
		if resultType.IsInteger() && rv.AsInt() == 0 {
			ctx.errf(n.Location(), diag.OverflowError, "division by constant zero")
			return nil
		}
	}
	out, ok := foldArith(n.Op, lv, rv, resultType)
	if !ok {
		return nil
	}
	return mkConstant(out, n.Location())
}

func foldComparison(op token.Kind, lv, rv value.Value) value.Value {
	var cmp int
	if lv.Type().IsPrimitiveFloat() || rv.Type().IsPrimitiveFloat() {
		lf, rf := lv.AsFloat(), rv.AsFloat()
		if lv.Type().IsInteger() {
			lf = float64(lv.AsInt())
		}
		if rv.Type().IsInteger() {
			rf = float64(rv.AsInt())
		}
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		li, ri := lv.AsInt(), rv.AsInt()
		switch {
		case li < ri:
			cmp = -1
		case li > ri:
			cmp = 1
		}
	}
	switch op {
	case token.Eq:
		return value.Bool(cmp == 0)
	case token.Ne:
		return value.Bool(cmp != 0)
	case token.Lt:
		return value.Bool(cmp < 0)
	case token.Le:
		return value.Bool(cmp <= 0)
	case token.Gt:
		return value.Bool(cmp > 0)
	default: // token.Ge
		return value.Bool(cmp >= 0)
	}
}

func foldArith(op token.Kind, lv, rv value.Value, resultType *types.Type) (value.Value, bool) {
	if !resultType.IsPrimitive() {
		return value.Value{}, false // vector/array constant folding is not attempted
	}
	lv = lv.CastToTypeExpectingSuccess(resultType)
	rv = rv.CastToTypeExpectingSuccess(resultType)
	if resultType.IsPrimitiveFloat() {
		lf, rf := lv.AsFloat(), rv.AsFloat()
		var f float64
		switch op {
		case token.Plus:
			f = lf + rf
		case token.Minus:
			f = lf - rf
		case token.Star:
			f = lf * rf
		case token.Slash:
			f = lf / rf
		default:
			return value.Value{}, false
		}
		if resultType.PrimitiveType() == types.Float32 {
			return value.Float32(float32(f)), true
		}
		return value.Float64(f), true
	}
	li, ri := lv.AsInt(), rv.AsInt()
	var i int64
	switch op {
	case token.Plus:
		i = li + ri
	case token.Minus:
		i = li - ri
	case token.Star:
		i = li * ri
	case token.Slash:
		i = li / ri
	case token.Percent:
		i = li % ri
	case token.Amp:
		i = li & ri
	case token.Pipe:
		i = li | ri
	case token.Caret:
		i = li ^ ri
	case token.Shl:
		i = li << uint(ri)
	case token.Shr:
		i = li >> uint(ri)
	default:
		return value.Value{}, false
	}
	if resultType.PrimitiveType() == types.Int64 {
		return value.Int64(i), true
	}
	return value.Int32(int32(i)), true
}

func foldTernary(n *ast.Ternary) ast.Expr {
	c, ok := constOperand(n.Cond)
	if !ok {
		return nil
	}
	if c.AsBool() {
		return n.True
	}
	return n.False
}

func foldCast(n *ast.TypeCast, ctx *Context) ast.Expr {
	v, ok := constOperand(n.Arg)
	if !ok {
		return nil
	}
	t := concreteTypeOf(n.Target)
	if t == nil {
		return nil
	}
	out, err := v.CastToType(t)
	if err != nil {
		ctx.errf(n.Location(), diag.TypeError, "%v", err)
		return nil
	}
	return mkConstant(out, n.Location())
}

// foldIntrinsicCall evaluates a FunctionCall to a specialised intrinsic
// when every argument has folded to a constant.
func foldIntrinsicCall(n *ast.FunctionCall) ast.Expr {
	if n.Target.GenericOrigin == nil || !n.Target.GenericOrigin.IsIntrinsic() {
		return nil
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, ok := constOperand(a)
		if !ok {
			return nil
		}
		args[i] = v
	}
	out, ok := evalIntrinsic(n.Target.GenericOrigin.IntrinsicOf, args, n.Target.ReturnType)
	if !ok {
		return nil
	}
	return mkConstant(out, n.Location())
}

func evalIntrinsic(name string, args []value.Value, resultType *types.Type) (value.Value, bool) {
	toFloat := func(v value.Value) float64 {
		v = v.CastToTypeExpectingSuccess(types.Float64T)
		return v.AsFloat()
	}
	mk := func(f float64) value.Value {
		switch resultType.PrimitiveType() {
		case types.Float32:
			return value.Float32(float32(f))
		case types.Int32:
			return value.Int32(int32(f))
		case types.Int64:
			return value.Int64(int64(f))
		}
		return value.Float64(f)
	}
	if len(args) == 1 {
		x := toFloat(args[0])
		switch name {
		case "abs":
			return mk(math.Abs(x)), true
		case "sqrt":
			return mk(math.Sqrt(x)), true
		case "sin":
			return mk(math.Sin(x)), true
		case "cos":
			return mk(math.Cos(x)), true
		case "tan":
			return mk(math.Tan(x)), true
		case "floor":
			return mk(math.Floor(x)), true
		case "ceil":
			return mk(math.Ceil(x)), true
		case "round":
			return mk(math.Round(x)), true
		case "exp":
			return mk(math.Exp(x)), true
		case "log":
			return mk(math.Log(x)), true
		}
	}
	if len(args) == 2 {
		x, y := toFloat(args[0]), toFloat(args[1])
		switch name {
		case "min":
			return mk(math.Min(x, y)), true
		case "max":
			return mk(math.Max(x, y)), true
		case "pow":
			return mk(math.Pow(x, y)), true
		case "fmod":
			return mk(math.Mod(x, y)), true
		}
	}
	if len(args) == 3 && name == "clamp" {
		x, lo, hi := toFloat(args[0]), toFloat(args[1]), toFloat(args[2])
		return mk(math.Min(math.Max(x, lo), hi)), true
	}
	return value.Value{}, false
}

func mkConstant(v value.Value, loc diag.Location) ast.Expr {
	c := &ast.Constant{Value: v}
	c.Loc = loc
	return c
}
