package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/types"
)

// FullResolve runs once per module after the fixpoint loop has settled:
// checks that only make sense once every name and type is known, plus the
// dead-branch elimination and cast-insertion work that isn't itself a
// name/type resolution step so doesn't belong in the fixpoint loop proper
// (the full-resolve stage).
func FullResolve(m ast.Module, ctx *Context) {
	foldConstantIfStmts(m)
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		checkFullyResolved(e, ctx)
		insertBinaryOpCasts(e, ctx)
		insertTernaryCasts(e, ctx)
		checkAssignmentTarget(e, ctx)
		checkArraySubscriptRange(e, ctx)
		checkWriteToEndpoint(e, ctx)
		return nil, false
	})
}

func checkFullyResolved(e ast.Expr, ctx *Context) {
	if qi, ok := e.(*ast.QualifiedIdentifier); ok {
		ctx.errf(qi.Location(), diag.ResolutionFailure, "unresolved name %q", qiString(qi))
	}
}

func qiString(qi *ast.QualifiedIdentifier) string {
	s := ""
	for i, p := range qi.Parts {
		if i > 0 {
			s += "::"
		}
		s += p.String()
	}
	return s
}

// insertBinaryOpCasts unifies a BinaryOp's operand types for the
// arithmetic/bitwise operators (comparisons already produce bool and
// never need this) by silently casting the narrower side, recording which
// side it touched.
func insertBinaryOpCasts(e ast.Expr, ctx *Context) {
	bin, ok := e.(*ast.BinaryOp)
	if !ok || isComparisonOrLogical(bin.Op) {
		return
	}
	lt, rt := valueTypeOf(bin.Lhs), valueTypeOf(bin.Rhs)
	if lt == nil || rt == nil || lt.Equal(rt) {
		return
	}
	switch {
	case types.CanSilentlyCastTo(lt, rt):
		bin.Rhs = wrapCast(bin.Rhs, lt)
		bin.InsertedCastOnRhs = true
	case types.CanSilentlyCastTo(rt, lt):
		bin.Lhs = wrapCast(bin.Lhs, rt)
		bin.InsertedCastOnLhs = true
	default:
		ctx.errf(bin.Location(), diag.TypeError, "operands of type %s and %s do not share a common type", lt, rt)
	}
}

func insertTernaryCasts(e ast.Expr, ctx *Context) {
	tern, ok := e.(*ast.Ternary)
	if !ok {
		return
	}
	tt, ft := valueTypeOf(tern.True), valueTypeOf(tern.False)
	if tt == nil || ft == nil || tt.Equal(ft) {
		return
	}
	switch {
	case types.CanSilentlyCastTo(tt, ft):
		tern.False = wrapCast(tern.False, tt)
		tern.InsertedCastOnFalse = true
	case types.CanSilentlyCastTo(ft, tt):
		tern.True = wrapCast(tern.True, ft)
		tern.InsertedCastOnTrue = true
	default:
		ctx.errf(tern.Location(), diag.TypeError, "ternary branches of type %s and %s do not share a common type", tt, ft)
	}
}

func wrapCast(e ast.Expr, t *types.Type) ast.Expr {
	c := &ast.TypeCast{Target: ast.NewConcreteType(t), Arg: e}
	c.Loc = e.Location()
	return c
}

// checkAssignmentTarget rejects assignment to a const variable or to
// anything that isn't an lvalue shape. A variable's const-ness is
// VarDecl.IsConst, set directly from the `const`/`let` keyword at parse
// time — independent of whether its Type ended up wearing a `const`
// wrapper, which only happens for an explicitly-typed `const T x` and
// never for a type inferred from the initialiser.
func checkAssignmentTarget(e ast.Expr, ctx *Context) {
	asn, ok := e.(*ast.AssignExpr)
	if !ok {
		return
	}
	if !isLvalue(asn.Target) {
		ctx.errf(asn.Location(), diag.TypeError, "assignment target is not assignable")
		return
	}
	if isConstTarget(asn.Target) {
		ctx.errf(asn.Location(), diag.TypeError, "cannot assign to a const value")
	}
}

func isConstTarget(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.VariableRef:
		if v, ok := n.Target.(*ast.VarDecl); ok && v.IsConst {
			return true
		}
		if t := valueTypeOf(n); t != nil && t.IsConst() {
			return true
		}
	case *ast.ArrayElementRef:
		return isConstTarget(n.Base)
	case *ast.StructMemberRef:
		return isConstTarget(n.Base)
	}
	return false
}

func isLvalue(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.VariableRef:
		return true
	case *ast.ArrayElementRef:
		return isLvalue(n.Base)
	case *ast.StructMemberRef:
		return isLvalue(n.Base)
	case *ast.OutputEndpointRef:
		return false // writes to an endpoint go through WriteToEndpoint, not AssignExpr
	}
	return false
}

// checkArraySubscriptRange catches an out-of-bounds constant index into a
// fixed-size array or vector at resolve time rather than waiting for the
// runtime bounds check HEART lowering would otherwise have to insert.
func checkArraySubscriptRange(e ast.Expr, ctx *Context) {
	ref, ok := e.(*ast.ArrayElementRef)
	if !ok || ref.Wrap || ref.Index == nil {
		return
	}
	idx, ok := ref.Index.(*ast.Constant)
	if !ok {
		return
	}
	bt := valueTypeOf(ref.Base)
	if bt == nil {
		return
	}
	n := idx.Value.AsInt()
	var size int
	switch {
	case bt.IsFixedSizeArray():
		size = bt.ArraySize()
	case bt.IsVector():
		size = bt.VectorSize()
	default:
		return
	}
	if n < 0 || n >= int64(size) {
		ctx.errf(ref.Location(), diag.OverflowError, "index %d out of range for size %d", n, size)
	}
}

// checkWriteToEndpoint verifies the value written matches one of the
// output endpoint's declared sample types.
func checkWriteToEndpoint(e ast.Expr, ctx *Context) {
	w, ok := e.(*ast.WriteToEndpoint)
	if !ok {
		return
	}
	ep := endpointOf(w.Endpoint)
	if ep == nil {
		return
	}
	vt := valueTypeOf(w.Value)
	if vt == nil {
		return
	}
	if !ep.AcceptsType(vt) {
		ctx.errf(w.Location(), diag.TypeError, "value of type %s is not accepted by output %s", vt, ep.Name)
	}
}

func endpointOf(e ast.Expr) *ast.Endpoint {
	switch n := e.(type) {
	case *ast.OutputEndpointRef:
		return n.Target
	case *ast.ArrayElementRef:
		return endpointOf(n.Base)
	case *ast.ProcessorPropertyRef:
		return n.Endpoint
	}
	return nil
}

// foldConstantIfStmts replaces `if (constTrue) then else` with just the
// taken branch's Block — a Block satisfies Stmt, so the IfStmt's slot in
// the enclosing statement list can be replaced outright with it.
func foldConstantIfStmts(m ast.Module) {
	switch mm := m.(type) {
	case *ast.Namespace:
		for _, f := range mm.Functions {
			foldIfsInFunction(f)
		}
	case *ast.Processor:
		for _, f := range mm.Functions {
			foldIfsInFunction(f)
		}
	}
}

func foldIfsInFunction(f *ast.FunctionDecl) {
	if f.Body != nil {
		foldIfsInBlock(f.Body)
	}
}

func foldIfsInBlock(b *ast.Block) {
	for i, s := range b.Stmts {
		b.Stmts[i] = foldIfsInStmt(s)
	}
}

func foldIfsInStmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.IfStmt:
		foldIfsInBlock(n.Then)
		if n.Else != nil {
			foldIfsInBlock(n.Else)
		}
		if c, ok := n.Cond.(*ast.Constant); ok {
			if c.Value.AsBool() {
				return n.Then
			}
			if n.Else != nil {
				return n.Else
			}
			empty := &ast.Block{}
			empty.Loc = n.Location()
			return empty
		}
		return n
	case *ast.WhileStmt:
		foldIfsInBlock(n.Body)
	case *ast.DoStmt:
		foldIfsInBlock(n.Body)
	case *ast.ForStmt:
		foldIfsInBlock(n.Body)
	case *ast.LoopStmt:
		foldIfsInBlock(n.Body)
	case *ast.Block:
		foldIfsInBlock(n)
	}
	return s
}
