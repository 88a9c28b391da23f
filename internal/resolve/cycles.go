package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
)

// checkInitialiserCycles detects a variable whose initialiser transitively
// reads itself — the resolution pipeline's post-fixpoint cycle check, run once
// resolution has settled so every VariableRef.Target is known. Unlike
// StructDecl/UsingDecl this runs over a local visiting set rather than
// fields on VarDecl, since it is a one-shot check, not something the
// fixpoint loop revisits.
func checkInitialiserCycles(m ast.Module, ctx *Context) {
	vars := moduleLevelVars(m)
	if len(vars) == 0 {
		return
	}
	state := map[*ast.VarDecl]int{} // 0 unvisited, 1 visiting, 2 done
	for _, v := range vars {
		walkInitCycle(v, state, ctx)
	}
}

func moduleLevelVars(m ast.Module) []*ast.VarDecl {
	switch mm := m.(type) {
	case *ast.Namespace:
		return mm.Constants
	case *ast.Processor:
		return mm.StateVars
	}
	return nil
}

func walkInitCycle(v *ast.VarDecl, state map[*ast.VarDecl]int, ctx *Context) {
	switch state[v] {
	case 2:
		return
	case 1:
		ctx.errf(v.Location(), diag.ResolutionFailure, "initialiser cycle involving %s", v.Name)
		return
	}
	state[v] = 1
	if v.Init != nil {
		ast.WalkExpr(v.Init, func(e ast.Expr) {
			ref, ok := e.(*ast.VariableRef)
			if !ok {
				return
			}
			if dep, ok := ref.Target.(*ast.VarDecl); ok {
				walkInitCycle(dep, state, ctx)
			}
		})
	}
	state[v] = 2
}
