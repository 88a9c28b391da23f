package resolve

import (
	"testing"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/parser"
)

func parse(t *testing.T, src string) (*ast.Namespace, *Context) {
	t.Helper()
	idents := ident.NewPool()
	strs := ident.NewStringDictionary()
	diags := &diag.List{}
	ns := parser.Parse("test.soul", src, idents, strs, diags)
	ctx := &Context{Diags: diags, Idents: idents, Strs: strs}
	return ns, ctx
}

func findFunc(ns *ast.Namespace, name string) *ast.FunctionDecl {
	for _, f := range ns.Functions {
		if f.Name.String() == name {
			return f
		}
	}
	return nil
}

func TestResolveConstantFolding(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	let x = 2 + 3 * 4;
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", ctx.Diags.String())
	}
	if len(ns.Constants) != 1 {
		t.Fatalf("expected one constant, got %d", len(ns.Constants))
	}
	x := ns.Constants[0]
	c, ok := x.Init.(*ast.Constant)
	if !ok {
		t.Fatalf("expected x's initialiser to be folded to a Constant, got %T", x.Init)
	}
	if got := c.Value.AsInt(); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
}

func TestResolveGenericSpecialisation(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	T max<T>(T a, T b)
	{
		return a > b ? a : b;
	}

	let r1 = max(1, 2);
	let r2 = max(1.0f, 2.0f);
	let r3 = max(3, 4);
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", ctx.Diags.String())
	}
	tmpl := findFunc(ns, "max")
	if tmpl == nil {
		t.Fatalf("expected to find the max template function")
	}
	if !tmpl.IsGeneric() {
		t.Fatalf("expected max to remain generic (Wildcards set)")
	}
	if len(tmpl.Specialisations) != 2 {
		t.Fatalf("expected exactly two specialisations (int32, float32), got %d", len(tmpl.Specialisations))
	}

	callTarget := func(init ast.Expr) *ast.FunctionDecl {
		fc, ok := init.(*ast.FunctionCall)
		if !ok {
			t.Fatalf("expected a resolved FunctionCall, got %T", init)
		}
		return fc.Target
	}
	r1 := callTarget(ns.Constants[0].Init)
	r3 := callTarget(ns.Constants[2].Init)
	if r1 != r3 {
		t.Fatalf("expected the two int32 calls to reuse the same specialisation")
	}
	if r1.GenericOrigin != tmpl {
		t.Fatalf("expected the specialisation's GenericOrigin to point back at the template")
	}
}

func TestResolveIntrinsicCall(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	let a = clamp(5, 0, 3);
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", ctx.Diags.String())
	}
	c, ok := ns.Constants[0].Init.(*ast.Constant)
	if !ok {
		t.Fatalf("expected a constant-folded clamp() call, got %T", ns.Constants[0].Init)
	}
	if got := c.Value.AsInt(); got != 3 {
		t.Fatalf("expected clamp(5, 0, 3) == 3, got %d", got)
	}
}

func TestResolveNoMatchingOverload(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	float foo(int32 a) { return 1.0f; }
	float foo(float32 a) { return 2.0f; }

	let r = foo(1L);
}
`)
	Resolve(ns, ctx)
	if !ctx.Diags.HasErrors() {
		t.Fatalf("expected a no-match error for foo(1L) with no int64 overload")
	}
}

func TestResolveOverloadExactMatchWins(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	float foo(int32 a) { return 1.0f; }
	float foo(float32 a) { return 2.0f; }

	let r = foo(1);
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", ctx.Diags.String())
	}
	fc, ok := ns.Constants[0].Init.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected a resolved FunctionCall, got %T", ns.Constants[0].Init)
	}
	if len(fc.Target.Params) != 1 || fc.Target.Params[0].Type == nil || fc.Target.Params[0].Type.String() != "int32" {
		t.Fatalf("expected foo(1) to resolve to the int32 overload, got params %v", fc.Target.Params)
	}
}

func TestResolveDeadBranchElimination(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	void run()
	{
		if (1 > 0)
		{
			let a = 1;
		}
		else
		{
			let b = 2;
		}
	}
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", ctx.Diags.String())
	}
	fn := findFunc(ns, "run")
	if fn == nil {
		t.Fatalf("expected to find run()")
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected the IfStmt to be replaced by its single taken branch, got %d statements", len(fn.Body.Stmts))
	}
	if _, ok := fn.Body.Stmts[0].(*ast.Block); !ok {
		t.Fatalf("expected the surviving statement to be the Then block, got %T", fn.Body.Stmts[0])
	}
}

func TestResolveInitialiserCycle(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	let a = b + 1;
	let b = a + 1;
}
`)
	Resolve(ns, ctx)
	if !ctx.Diags.HasErrors() {
		t.Fatalf("expected an initialiser-cycle error for a <-> b")
	}
}

func TestResolveAssignToConstIsRejected(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	void run()
	{
		let a = 1;
		a = 2;
	}
}
`)
	Resolve(ns, ctx)
	if !ctx.Diags.HasErrors() {
		t.Fatalf("expected an error assigning to a const-initialised local")
	}
}

func TestResolveConstantArrayIndexOutOfRange(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	void run()
	{
		int32[4] a;
		let v = a[10];
	}
}
`)
	Resolve(ns, ctx)
	if !ctx.Diags.HasErrors() {
		t.Fatalf("expected an out-of-range error indexing a fixed array with a constant 10")
	}
}

func TestResolveAtWrapsOutOfRangeIndexInstead(t *testing.T) {
	ns, ctx := parse(t, `
namespace N
{
	void run()
	{
		int32[4] a;
		let v = at(a, 10);
	}
}
`)
	Resolve(ns, ctx)
	if ctx.Diags.HasErrors() {
		t.Fatalf("at(array, index) must never report an out-of-range error: %s", ctx.Diags.String())
	}
}
