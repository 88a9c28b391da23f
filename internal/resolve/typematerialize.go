package resolve

import (
	"soul/internal/ast"
	"soul/internal/types"
)

// materializeTypes copies every declaration's now-resolved type-position
// expression into its structural *types.Type field, and returns how many
// fields it newly filled in (counted as "replaced" for fixpoint purposes).
func materializeTypes(m ast.Module) int {
	n := 0
	switch mm := m.(type) {
	case *ast.Namespace:
		for _, s := range mm.Structs {
			n += materializeStruct(s)
		}
		for _, u := range mm.Usings {
			n += materializeUsing(u)
		}
		for _, c := range mm.Constants {
			n += materializeVarDecl(c)
		}
		for _, f := range mm.Functions {
			n += materializeFunction(f)
		}
	case *ast.Processor:
		for _, e := range mm.Endpoints {
			n += materializeEndpoint(e)
		}
		for _, s := range mm.Structs {
			n += materializeStruct(s)
		}
		for _, u := range mm.Usings {
			n += materializeUsing(u)
		}
		for _, v := range mm.StateVars {
			n += materializeVarDecl(v)
		}
		for _, prm := range mm.SpecialisationParams {
			n += materializeParam(prm)
		}
		for _, f := range mm.Functions {
			n += materializeFunction(f)
		}
	case *ast.Graph:
		for _, e := range mm.Endpoints {
			n += materializeEndpoint(e)
		}
	}
	return n
}

func materializeStruct(s *ast.StructDecl) int {
	n := 0
	for i, me := range s.MemberExprs {
		if me == nil {
			continue
		}
		if t := concreteTypeOf(me); t != nil {
			s.Info.Members[i].Type = t
			s.MemberExprs[i] = nil
			n++
		}
	}
	return n
}

func materializeUsing(u *ast.UsingDecl) int {
	if u.Resolved != nil {
		return 0
	}
	if t := concreteTypeOf(u.TargetExpr); t != nil {
		u.Resolved = t
		return 1
	}
	return 0
}

func materializeVarDecl(v *ast.VarDecl) int {
	n := 0
	if v.Type == nil {
		if v.DeclaredType != nil {
			if t := concreteTypeOf(v.DeclaredType); t != nil {
				v.Type = t
				n++
			}
		} else if v.Init != nil {
			if t := valueTypeOf(v.Init); t != nil {
				v.Type = t
				n++
			}
		}
	}
	if v.Type != nil && v.Type.IsUnsizedArray() && v.Init != nil {
		if lst, ok := v.Init.(*ast.InitialiserList); ok {
			v.Type = v.Type.WithArraySize(len(lst.Elements))
			n++
		}
	}
	return n
}

func materializeParam(p *ast.Param) int {
	if p.Type == nil && p.DeclaredType != nil {
		if t := concreteTypeOf(p.DeclaredType); t != nil {
			p.Type = t
			return 1
		}
	}
	return 0
}

func materializeFunction(f *ast.FunctionDecl) int {
	n := 0
	if f.ReturnType == nil && f.ReturnExpr != nil {
		if t := concreteTypeOf(f.ReturnExpr); t != nil {
			f.ReturnType = t
			n++
		}
	}
	for _, prm := range f.Params {
		n += materializeParam(prm)
	}
	if f.Body != nil {
		n += materializeBlockLocals(f.Body)
	}
	return n
}

func materializeBlockLocals(b *ast.Block) int {
	n := 0
	for _, v := range b.Locals {
		n += materializeVarDecl(v)
	}
	for _, s := range b.Stmts {
		n += materializeStmtLocals(s)
	}
	return n
}

func materializeStmtLocals(s ast.Stmt) int {
	switch n := s.(type) {
	case *ast.IfStmt:
		c := materializeBlockLocals(n.Then)
		if n.Else != nil {
			c += materializeBlockLocals(n.Else)
		}
		return c
	case *ast.WhileStmt:
		return materializeBlockLocals(n.Body)
	case *ast.DoStmt:
		return materializeBlockLocals(n.Body)
	case *ast.ForStmt:
		c := materializeBlockLocals(n.Body)
		if forScope, ok := n.Body.Parent.(*ast.Block); ok && forScope != n.Body {
			c += materializeBlockLocals(forScope)
		} else if vd, ok := n.Init.(*ast.VarDeclStmt); ok {
			c += materializeVarDecl(vd.Decl)
		}
		return c
	case *ast.LoopStmt:
		return materializeBlockLocals(n.Body)
	case *ast.Block:
		return materializeBlockLocals(n)
	}
	return 0
}

func materializeEndpoint(e *ast.Endpoint) int {
	n := 0
	if len(e.SampleTypes) < len(e.SampleTypeExprs) {
		e.SampleTypes = make([]*types.Type, len(e.SampleTypeExprs))
	}
	for i, te := range e.SampleTypeExprs {
		if e.SampleTypes[i] != nil {
			continue
		}
		if t := concreteTypeOf(te); t != nil {
			e.SampleTypes[i] = t
			n++
		}
	}
	return n
}
