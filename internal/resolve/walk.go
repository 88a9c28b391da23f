package resolve

import "soul/internal/ast"

// exprVisit is the shape every pass's node-level logic takes: given the
// lexical scope the expression appears in, decide whether to replace it.
// Used by the rewriting passes (steps 1-3, 5-6) and by FullResolve;
// use-count rebuilding (step 4) and cycle detection walk the AST themselves.
type exprVisit func(scope ast.Scope, e ast.Expr) (ast.Expr, bool)

func visitorFor(scope ast.Scope, fn exprVisit) *ast.Visitor {
	return &ast.Visitor{Expr: func(e ast.Expr) (ast.Expr, bool) { return fn(scope, e) }}
}

// walkModuleExprs visits every expression reachable from m's own
// declarations — state/constant variable initialisers, function bodies,
// graph connection endpoints and instance specialisation arguments — each
// tagged with the ast.Scope it lexically lives in. It does not recurse
// into sub-modules; callers iterate the flat module list Resolve builds.
func walkModuleExprs(m ast.Module, fn exprVisit) {
	switch mm := m.(type) {
	case *ast.Namespace:
		for _, s := range mm.Structs {
			walkStructMembers(mm, s, fn)
		}
		for _, u := range mm.Usings {
			u.TargetExpr = ast.RewriteExpr(u.TargetExpr, visitorFor(mm, fn))
		}
		for _, c := range mm.Constants {
			walkVarDecl(mm, c, fn)
		}
		for _, f := range mm.Functions {
			walkFunctionDecl(mm, f, fn)
		}
	case *ast.Processor:
		for _, e := range mm.Endpoints {
			for i := range e.SampleTypeExprs {
				e.SampleTypeExprs[i] = ast.RewriteExpr(e.SampleTypeExprs[i], visitorFor(mm, fn))
			}
		}
		for _, s := range mm.Structs {
			walkStructMembers(mm, s, fn)
		}
		for _, u := range mm.Usings {
			u.TargetExpr = ast.RewriteExpr(u.TargetExpr, visitorFor(mm, fn))
		}
		for _, v := range mm.StateVars {
			walkVarDecl(mm, v, fn)
		}
		for _, prm := range mm.SpecialisationParams {
			prm.DeclaredType = ast.RewriteExpr(prm.DeclaredType, visitorFor(mm, fn))
		}
		for _, f := range mm.Functions {
			walkFunctionDecl(mm, f, fn)
		}
	case *ast.Graph:
		for _, e := range mm.Endpoints {
			for i := range e.SampleTypeExprs {
				e.SampleTypeExprs[i] = ast.RewriteExpr(e.SampleTypeExprs[i], visitorFor(mm, fn))
			}
		}
		for _, inst := range mm.Instances {
			// inst.ProcessorNameExpr is resolved separately by
			// resolveQualifiedIdentifiers into inst.ResolvedModule, not
			// rewritten in place like an ordinary expression.
			for i := range inst.SpecArgs {
				inst.SpecArgs[i] = ast.RewriteExpr(inst.SpecArgs[i], visitorFor(mm, fn))
			}
		}
		for _, c := range mm.Connections {
			c.Source = ast.RewriteExpr(c.Source, visitorFor(mm, fn))
			c.Dest = ast.RewriteExpr(c.Dest, visitorFor(mm, fn))
		}
	}
}

func walkStructMembers(scope ast.Scope, s *ast.StructDecl, fn exprVisit) {
	for i := range s.MemberExprs {
		if s.MemberExprs[i] != nil {
			s.MemberExprs[i] = ast.RewriteExpr(s.MemberExprs[i], visitorFor(scope, fn))
		}
	}
}

func walkVarDecl(scope ast.Scope, v *ast.VarDecl, fn exprVisit) {
	if v.DeclaredType != nil {
		v.DeclaredType = ast.RewriteExpr(v.DeclaredType, visitorFor(scope, fn))
	}
	walkVarInit(scope, v, fn)
}

func walkFunctionDecl(scope ast.Scope, f *ast.FunctionDecl, fn exprVisit) {
	if f.ReturnExpr != nil {
		f.ReturnExpr = ast.RewriteExpr(f.ReturnExpr, visitorFor(scope, fn))
	}
	for _, prm := range f.Params {
		if prm.DeclaredType != nil {
			prm.DeclaredType = ast.RewriteExpr(prm.DeclaredType, visitorFor(scope, fn))
		}
	}
	walkFunctionBody(f, fn)
}

func walkVarInit(scope ast.Scope, v *ast.VarDecl, fn exprVisit) {
	if v.Init != nil {
		v.Init = ast.RewriteExpr(v.Init, visitorFor(scope, fn))
	}
}

func walkFunctionBody(f *ast.FunctionDecl, fn exprVisit) {
	if f.Body == nil {
		return
	}
	walkBlock(f.Body, fn)
}

func walkBlock(b *ast.Block, fn exprVisit) {
	for i, s := range b.Stmts {
		b.Stmts[i] = walkStmt(b, s, fn)
	}
}

func walkStmt(scope ast.Scope, s ast.Stmt, fn exprVisit) ast.Stmt {
	switch n := s.(type) {
	case *ast.ExprStmt:
		n.X = ast.RewriteExpr(n.X, visitorFor(scope, fn))
	case *ast.VarDeclStmt:
		walkVarDecl(scope, n.Decl, fn)
	case *ast.IfStmt:
		n.Cond = ast.RewriteExpr(n.Cond, visitorFor(scope, fn))
		walkBlock(n.Then, fn)
		if n.Else != nil {
			walkBlock(n.Else, fn)
		}
	case *ast.WhileStmt:
		n.Cond = ast.RewriteExpr(n.Cond, visitorFor(scope, fn))
		walkBlock(n.Body, fn)
	case *ast.DoStmt:
		walkBlock(n.Body, fn)
		n.Cond = ast.RewriteExpr(n.Cond, visitorFor(scope, fn))
	case *ast.ForStmt:
		forScope := n.Body.Parent
		if forScope == nil {
			forScope = scope
		}
		if n.Init != nil {
			n.Init = walkStmt(forScope, n.Init, fn)
		}
		if n.Cond != nil {
			n.Cond = ast.RewriteExpr(n.Cond, visitorFor(forScope, fn))
		}
		if n.Step != nil {
			n.Step = ast.RewriteExpr(n.Step, visitorFor(forScope, fn))
		}
		walkBlock(n.Body, fn)
	case *ast.LoopStmt:
		if n.Count != nil {
			n.Count = ast.RewriteExpr(n.Count, visitorFor(scope, fn))
		}
		walkBlock(n.Body, fn)
	case *ast.ReturnStmt:
		if n.Value != nil {
			n.Value = ast.RewriteExpr(n.Value, visitorFor(scope, fn))
		}
	case *ast.Block:
		walkBlock(n, fn)
	}
	return s
}

// walkModuleExprsReadOnly is the non-rewriting counterpart of
// walkModuleExprs for a visit that only observes; no pass calls it
// (use-count rebuild and cycle detection walk the AST themselves).
func walkModuleExprsReadOnly(m ast.Module, visit func(scope ast.Scope, e ast.Expr)) {
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		visit(scope, e)
		return nil, false
	})
}
