package resolve

import (
	"soul/internal/ast"
	"soul/internal/ident"
)

// unaryNumericIntrinsics etc. name the built-in functions every SOUL
// program sees without declaring them, each generic over a single
// wildcard so the same declaration serves int32, int64, float32, float64
// and numeric vectors alike — resolveFunctions dispatches to them exactly
// as it would a user-written generic function such as `T max<T>(T a, T
// b)` (generics.go; the parser builds Wildcards for those directly from
// the trailing `<T>` list). Intrinsic params carry no DeclaredType at
// all, since there's no parsed `<T>` list to clear it against: a nil
// DeclaredType on a param of a generic FunctionDecl is this package's
// convention for "a bare wildcard" either way.
var unaryNumericIntrinsics = []string{
	"abs", "sqrt", "sin", "cos", "tan", "floor", "ceil", "round", "exp", "log",
}

var binaryNumericIntrinsics = []string{
	"min", "max", "pow", "fmod",
}

var ternaryNumericIntrinsics = []string{
	"clamp",
}

var paramNames = []string{"x", "y", "z", "w"}

// intrinsicFuncs lazily builds and caches the set of intrinsic
// FunctionDecls visible to FunctionResolver's unqualified-name lookup.
func (c *Context) intrinsicFuncs() []*ast.FunctionDecl {
	if c.intrinsics != nil {
		return c.intrinsics
	}
	wildcard := c.Idents.Intern("T")
	mk := func(name string, arity int) *ast.FunctionDecl {
		fn := &ast.FunctionDecl{
			Name:        c.Idents.Intern(name),
			Wildcards:   []*ident.Identifier{wildcard},
			IntrinsicOf: name,
		}
		for i := 0; i < arity; i++ {
			fn.Params = append(fn.Params, &ast.Param{Name: c.Idents.Intern(paramNames[i])})
		}
		return fn
	}
	var out []*ast.FunctionDecl
	for _, n := range unaryNumericIntrinsics {
		out = append(out, mk(n, 1))
	}
	for _, n := range binaryNumericIntrinsics {
		out = append(out, mk(n, 2))
	}
	for _, n := range ternaryNumericIntrinsics {
		out = append(out, mk(n, 3))
	}
	c.intrinsics = out
	return out
}

// intrinsicsByNameArity returns every intrinsic FunctionDecl matching name
// and arity — always zero or one, since no two intrinsics here share a
// name, but returning a slice keeps the call site uniform with ordinary
// scope lookups.
func (c *Context) intrinsicsByNameArity(name string, arity int) []*ast.FunctionDecl {
	var out []*ast.FunctionDecl
	for _, fn := range c.intrinsicFuncs() {
		if fn.Name.String() == name && len(fn.Params) == arity {
			out = append(out, fn)
		}
	}
	return out
}
