package resolve

import "soul/internal/ast"

// rebuildUseCounts is pass 4: reset then recount every VarDecl/Param's
// Reads/Writes. A by-reference call argument counts as a write (the callee
// may mutate it); an argument to a call whose callee is not yet resolved is
// pessimistically treated as a write too, since FunctionResolver has not
// yet told us whether the matching parameter is by-reference.
func rebuildUseCounts(m ast.Module, ctx *Context) passResult {
	resetUseCounts(m)
	countModule(m)
	return passResult{}
}

// countModule visits every top-level statement/initialiser expression
// exactly once and lets countUses recurse through it in context; it
// intentionally does not go through the generic walkModuleExprs visitor,
// since that one already recurses bottom-up and would double-count every
// nested node.
func countModule(m ast.Module) {
	switch mm := m.(type) {
	case *ast.Namespace:
		for _, c := range mm.Constants {
			countUses(c.Init)
		}
		for _, f := range mm.Functions {
			countFunction(f)
		}
	case *ast.Processor:
		for _, v := range mm.StateVars {
			countUses(v.Init)
		}
		for _, f := range mm.Functions {
			countFunction(f)
		}
	case *ast.Graph:
		for _, inst := range mm.Instances {
			for _, a := range inst.SpecArgs {
				countUses(a)
			}
		}
	}
}

func countFunction(f *ast.FunctionDecl) {
	if f.Body != nil {
		countBlock(f.Body)
	}
}

func countBlock(b *ast.Block) {
	for _, v := range b.Locals {
		countUses(v.Init)
	}
	for _, s := range b.Stmts {
		countStmt(s)
	}
}

func countStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		countUses(n.X)
	case *ast.VarDeclStmt:
		countUses(n.Decl.Init)
	case *ast.IfStmt:
		countUses(n.Cond)
		countBlock(n.Then)
		if n.Else != nil {
			countBlock(n.Else)
		}
	case *ast.WhileStmt:
		countUses(n.Cond)
		countBlock(n.Body)
	case *ast.DoStmt:
		countBlock(n.Body)
		countUses(n.Cond)
	case *ast.ForStmt:
		if forScope, ok := n.Body.Parent.(*ast.Block); ok && forScope != n.Body {
			countBlock(forScope)
		}
		if _, isDecl := n.Init.(*ast.VarDeclStmt); !isDecl && n.Init != nil {
			countStmt(n.Init)
		}
		countUses(n.Cond)
		countUses(n.Step)
		countBlock(n.Body)
	case *ast.LoopStmt:
		countUses(n.Count)
		countBlock(n.Body)
	case *ast.ReturnStmt:
		countUses(n.Value)
	case *ast.Block:
		countBlock(n)
	}
}

func resetUseCounts(m ast.Module) {
	switch mm := m.(type) {
	case *ast.Namespace:
		for _, c := range mm.Constants {
			c.Reads, c.Writes = 0, 0
		}
		for _, f := range mm.Functions {
			resetFunctionCounts(f)
		}
	case *ast.Processor:
		for _, v := range mm.StateVars {
			v.Reads, v.Writes = 0, 0
		}
		for _, f := range mm.Functions {
			resetFunctionCounts(f)
		}
	}
}

func resetFunctionCounts(f *ast.FunctionDecl) {
	for _, p := range f.Params {
		p.Reads, p.Writes = 0, 0
	}
	if f.Body != nil {
		resetBlockCounts(f.Body)
	}
}

func resetBlockCounts(b *ast.Block) {
	for _, v := range b.Locals {
		v.Reads, v.Writes = 0, 0
	}
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *ast.IfStmt:
			resetBlockCounts(n.Then)
			if n.Else != nil {
				resetBlockCounts(n.Else)
			}
		case *ast.WhileStmt:
			resetBlockCounts(n.Body)
		case *ast.DoStmt:
			resetBlockCounts(n.Body)
		case *ast.ForStmt:
			if forScope, ok := n.Body.Parent.(*ast.Block); ok && forScope != n.Body {
				resetBlockCounts(forScope)
			}
			resetBlockCounts(n.Body)
		case *ast.LoopStmt:
			resetBlockCounts(n.Body)
		case *ast.Block:
			resetBlockCounts(n)
		}
	}
}

// countUses walks one top-level expression in read context, dispatching
// into write context wherever the use-count rule demands it
// (assignment targets, inc/dec targets, by-reference and unresolved-call
// arguments).
func countUses(e ast.Expr) {
	walkInContext(e, false)
}

func walkInContext(e ast.Expr, write bool) {
	switch n := e.(type) {
	case nil:
		return
	case *ast.VariableRef:
		markUse(n.Target, write)
	case *ast.AssignExpr:
		walkInContext(n.Target, true)
		walkInContext(n.Value, false)
	case *ast.IncDec:
		walkInContext(n.Target, true)
		walkInContext(n.Target, false)
	case *ast.ArrayElementRef:
		walkInContext(n.Base, write)
		walkInContext(n.Index, false)
		if n.Slice != nil {
			walkInContext(n.Slice.Low, false)
			walkInContext(n.Slice.High, false)
		}
	case *ast.StructMemberRef:
		walkInContext(n.Base, write)
	case *ast.FunctionCall:
		for i, a := range n.Args {
			byRef := i < len(n.Target.Params) && n.Target.Params[i].Type != nil && n.Target.Params[i].Type.IsReference()
			walkInContext(a, byRef)
		}
	case *ast.CallOrCast:
		walkInContext(n.Callee, false)
		for _, a := range n.Args {
			walkInContext(a, true) // unresolved: pessimistic
		}
	case *ast.WriteToEndpoint:
		walkInContext(n.Value, false)
	case *ast.BinaryOp:
		walkInContext(n.Lhs, false)
		walkInContext(n.Rhs, false)
	case *ast.UnaryOp:
		walkInContext(n.Arg, false)
	case *ast.Ternary:
		walkInContext(n.Cond, false)
		walkInContext(n.True, false)
		walkInContext(n.False, false)
	case *ast.TypeCast:
		walkInContext(n.Arg, false)
	case *ast.InitialiserList:
		for _, el := range n.Elements {
			walkInContext(el, false)
		}
	case *ast.CommaExpr:
		for _, it := range n.Items {
			walkInContext(it, false)
		}
	case *ast.StaticAssert:
		walkInContext(n.Cond, false)
	case *ast.TypeMetaFunction:
		walkInContext(n.Arg, false)
	}
}

func markUse(sym ast.Symbol, write bool) {
	switch v := sym.(type) {
	case *ast.VarDecl:
		if write {
			v.Writes++
		} else {
			v.Reads++
		}
	case *ast.Param:
		if write {
			v.Writes++
		} else {
			v.Reads++
		}
	}
}
