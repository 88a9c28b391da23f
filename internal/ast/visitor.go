package ast

// This file is the "visitor pattern" design note of the language definition: a generic
// entry point that dispatches on variant tag via a type switch (replacing
// virtual dispatch), supporting both read-only traversal and rewriting
// (returning a replacement that takes over the original slot).

// ExprRewriter is applied to every expression node, post-order (children
// are rewritten first). Returning (nil, false) leaves the node unchanged;
// returning (x, true) replaces it.
type ExprRewriter func(e Expr) (Expr, bool)

// StmtRewriter is applied to every statement node, post-order.
type StmtRewriter func(s Stmt) (Stmt, bool)

// Visitor bundles both rewriters; either may be nil to skip that kind.
type Visitor struct {
	Expr ExprRewriter
	Stmt StmtRewriter
}

// RewriteExpr walks e's children bottom-up, then offers e itself to v.Expr.
func RewriteExpr(e Expr, v *Visitor) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *VariableRef, *ProcessorRef, *InputEndpointRef, *OutputEndpointRef,
		*BuiltinConstant, *Constant, *ConcreteType, *QualifiedIdentifier, *AdvanceCall:
		// leaves: no child expressions to recurse into.
	case *ProcessorPropertyRef:
	case *StructMemberRef:
		n.Base = RewriteExpr(n.Base, v)
	case *ArrayElementRef:
		n.Base = RewriteExpr(n.Base, v)
		if n.Index != nil {
			n.Index = RewriteExpr(n.Index, v)
		}
		if n.Slice != nil {
			if n.Slice.Low != nil {
				n.Slice.Low = RewriteExpr(n.Slice.Low, v)
			}
			if n.Slice.High != nil {
				n.Slice.High = RewriteExpr(n.Slice.High, v)
			}
		}
	case *CallOrCast:
		n.Callee = RewriteExpr(n.Callee, v)
		for i := range n.Args {
			n.Args[i] = RewriteExpr(n.Args[i], v)
		}
	case *FunctionCall:
		for i := range n.Args {
			n.Args[i] = RewriteExpr(n.Args[i], v)
		}
	case *TypeCast:
		n.Arg = RewriteExpr(n.Arg, v)
	case *BinaryOp:
		n.Lhs = RewriteExpr(n.Lhs, v)
		n.Rhs = RewriteExpr(n.Rhs, v)
	case *UnaryOp:
		n.Arg = RewriteExpr(n.Arg, v)
	case *Ternary:
		n.Cond = RewriteExpr(n.Cond, v)
		n.True = RewriteExpr(n.True, v)
		n.False = RewriteExpr(n.False, v)
	case *IncDec:
		n.Target = RewriteExpr(n.Target, v)
	case *TypeMetaFunction:
		n.Arg = RewriteExpr(n.Arg, v)
	case *InitialiserList:
		for i := range n.Elements {
			n.Elements[i] = RewriteExpr(n.Elements[i], v)
		}
	case *WriteToEndpoint:
		n.Endpoint = RewriteExpr(n.Endpoint, v)
		n.Value = RewriteExpr(n.Value, v)
	case *SubscriptWithBrackets:
		n.Base = RewriteExpr(n.Base, v)
		if n.Index != nil {
			n.Index = RewriteExpr(n.Index, v)
		}
	case *SubscriptWithChevrons:
		n.Base = RewriteExpr(n.Base, v)
		for i := range n.Args {
			n.Args[i] = RewriteExpr(n.Args[i], v)
		}
	case *AssignExpr:
		n.Target = RewriteExpr(n.Target, v)
		n.Value = RewriteExpr(n.Value, v)
	case *CommaExpr:
		for i := range n.Items {
			n.Items[i] = RewriteExpr(n.Items[i], v)
		}
	case *StaticAssert:
		n.Cond = RewriteExpr(n.Cond, v)
	}

	if v == nil || v.Expr == nil {
		return e
	}
	if repl, changed := v.Expr(e); changed {
		return repl
	}
	return e
}

// RewriteStmt walks s's children bottom-up (including nested expressions
// via RewriteExpr), then offers s itself to v.Stmt.
func RewriteStmt(s Stmt, v *Visitor) Stmt {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *Block:
		for i := range n.Stmts {
			n.Stmts[i] = RewriteStmt(n.Stmts[i], v)
		}
	case *ExprStmt:
		n.X = RewriteExpr(n.X, v)
	case *VarDeclStmt:
		if n.Decl.Init != nil {
			n.Decl.Init = RewriteExpr(n.Decl.Init, v)
		}
	case *IfStmt:
		n.Cond = RewriteExpr(n.Cond, v)
		n.Then = RewriteStmt(n.Then, v).(*Block)
		if n.Else != nil {
			n.Else = RewriteStmt(n.Else, v).(*Block)
		}
	case *WhileStmt:
		n.Cond = RewriteExpr(n.Cond, v)
		n.Body = RewriteStmt(n.Body, v).(*Block)
	case *DoStmt:
		n.Body = RewriteStmt(n.Body, v).(*Block)
		n.Cond = RewriteExpr(n.Cond, v)
	case *ForStmt:
		if n.Init != nil {
			n.Init = RewriteStmt(n.Init, v)
		}
		if n.Cond != nil {
			n.Cond = RewriteExpr(n.Cond, v)
		}
		if n.Step != nil {
			n.Step = RewriteExpr(n.Step, v)
		}
		n.Body = RewriteStmt(n.Body, v).(*Block)
	case *LoopStmt:
		if n.Count != nil {
			n.Count = RewriteExpr(n.Count, v)
		}
		n.Body = RewriteStmt(n.Body, v).(*Block)
	case *ReturnStmt:
		if n.Value != nil {
			n.Value = RewriteExpr(n.Value, v)
		}
	case *BreakStmt, *ContinueStmt:
	}

	if v == nil || v.Stmt == nil {
		return s
	}
	if repl, changed := v.Stmt(s); changed {
		return repl
	}
	return s
}

// WalkExpr is the read-only counterpart of RewriteExpr.
func WalkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	RewriteExpr(e, &Visitor{Expr: func(x Expr) (Expr, bool) {
		visit(x)
		return nil, false
	}})
}

// WalkStmt is the read-only counterpart of RewriteStmt.
func WalkStmt(s Stmt, visit func(Stmt)) {
	if s == nil {
		return
	}
	RewriteStmt(s, &Visitor{Stmt: func(x Stmt) (Stmt, bool) {
		visit(x)
		return nil, false
	}})
}
