package runtime

import (
	"math"

	"soul/internal/ast"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

func (mc *Machine) evalBinary(ex *ast.BinaryOp) value.Value {
	lhs, rhs := mc.eval(ex.Lhs), mc.eval(ex.Rhs)
	return applyBinary(ex.Op, lhs, rhs)
}

// applyBinary evaluates one binary operator over already-evaluated
// operands, for both BinaryOp nodes and the compound-assignment
// desugaring AssignExpr/IncDec route through.
func applyBinary(op token.Kind, lhs, rhs value.Value) value.Value {
	t := resultType(lhs, rhs)
	switch op {
	case token.Eq:
		return value.Bool(lhs.Equal(rhs))
	case token.Ne:
		return value.Bool(!lhs.Equal(rhs))
	case token.Lt:
		return value.Bool(numeric(lhs) < numeric(rhs))
	case token.Le:
		return value.Bool(numeric(lhs) <= numeric(rhs))
	case token.Gt:
		return value.Bool(numeric(lhs) > numeric(rhs))
	case token.Ge:
		return value.Bool(numeric(lhs) >= numeric(rhs))
	}
	if t != nil && t.IsPrimitiveFloat() {
		a, b := numeric(lhs), numeric(rhs)
		switch op {
		case token.Plus:
			return newFloat(t, a+b)
		case token.Minus:
			return newFloat(t, a-b)
		case token.Star:
			return newFloat(t, a*b)
		case token.Slash:
			return newFloat(t, a/b)
		case token.Percent:
			return newFloat(t, math.Mod(a, b))
		}
		return value.Value{}
	}
	a, b := lhs.AsInt(), rhs.AsInt()
	var r int64
	switch op {
	case token.Plus:
		r = a + b
	case token.Minus:
		r = a - b
	case token.Star:
		r = a * b
	case token.Slash:
		if b == 0 {
			return newInt(t, 0)
		}
		r = a / b
	case token.Percent:
		if b == 0 {
			return newInt(t, 0)
		}
		r = a % b
	case token.Shl:
		r = a << uint(b)
	case token.Shr:
		r = a >> uint(b)
	case token.UShr:
		r = int64(uint64(a) >> uint(b))
	case token.Amp:
		r = a & b
	case token.Pipe:
		r = a | b
	case token.Caret:
		r = a ^ b
	default:
		return value.Value{}
	}
	return newInt(t, r)
}

func (mc *Machine) evalUnary(ex *ast.UnaryOp) value.Value {
	v := mc.eval(ex.Arg)
	switch ex.Op {
	case token.Minus:
		if v.Type() != nil && v.Type().IsPrimitiveFloat() {
			return newFloat(v.Type(), -v.AsFloat())
		}
		return newInt(v.Type(), -v.AsInt())
	case token.Not:
		return value.Bool(!v.AsBool())
	case token.Tilde:
		return newInt(v.Type(), ^v.AsInt())
	}
	return value.Value{}
}

// resultType takes lhs's type when it is a float and rhs's otherwise,
// relying on the silent-widening rule the resolver already enforced before lowering —
// by the time the machine sees a BinaryOp, both sides are guaranteed
// compatible, so this only needs to break the lhs/rhs tie, not validate
// anything.
func resultType(lhs, rhs value.Value) *types.Type {
	if lhs.Type() == nil {
		return rhs.Type()
	}
	if rhs.Type() == nil {
		return lhs.Type()
	}
	if lhs.Type().IsPrimitiveFloat() {
		return lhs.Type()
	}
	return rhs.Type()
}

func numeric(v value.Value) float64 {
	if v.Type() != nil && v.Type().IsPrimitiveFloat() {
		return v.AsFloat()
	}
	return float64(v.AsInt())
}

func newFloat(t *types.Type, f float64) value.Value {
	if t != nil && t.PrimitiveType() == types.Float32 {
		return value.Float32(float32(f))
	}
	return value.Float64(f)
}

func newInt(t *types.Type, i int64) value.Value {
	if t != nil && t.PrimitiveType() == types.Int64 {
		return value.Int64(i)
	}
	return value.Int32(int32(i))
}

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }

// evalIntrinsic mirrors internal/resolve/constfold.go's compile-time
// constant folder, run here at audio rate instead of compile time — the
// two exist separately because the folder only ever sees constant
// arguments, while the machine evaluates arbitrary runtime values the
// folder could never have seen.
func evalIntrinsic(name string, args []value.Value, resultType *types.Type) (value.Value, bool) {
	toFloat := func(v value.Value) float64 { return numeric(v) }
	mk := func(f float64) value.Value {
		if resultType != nil {
			if p := resultType.PrimitiveType(); p == types.Int32 || p == types.Int64 {
				return newInt(resultType, int64(f))
			}
		}
		return newFloat(resultType, f)
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
