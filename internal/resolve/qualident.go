package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/types"
)

// builtinConstants are the identifiers recognised even with no declaration
// in scope — tried only once the ordinary outward walk finds nothing.
var builtinConstants = map[string]bool{
	"pi": true, "twoPi": true, "nan": true, "inf": true,
}

// resolveQualifiedIdentifiers is pass 1: replace every QualifiedIdentifier
// that names exactly one non-function symbol with the appropriate resolved
// reference node. A QualifiedIdentifier that names one or more functions is
// left alone deliberately — resolving a call is resolveFunctions' job, and
// CallOrCast.Callee staying a QualifiedIdentifier is exactly what it
// expects to find.
func resolveQualifiedIdentifiers(m ast.Module, ctx *Context) passResult {
	var res passResult
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		qi, ok := e.(*ast.QualifiedIdentifier)
		if !ok {
			return nil, false
		}
		repl, failed := resolveOneQualifiedIdentifier(scope, qi, ctx)
		if failed {
			res.numFailures++
			return nil, false
		}
		if repl == nil {
			// either a function-name hit (left for resolveFunctions) or a
			// module hit (handled via ProcessorInstance below).
			return nil, false
		}
		res.numReplaced++
		return repl, true
	})
	if g, ok := m.(*ast.Graph); ok {
		res.merge(resolveInstanceModules(g, ctx))
	}
	return res
}

// resolveInstanceModules resolves each `let name = ProcessorName(args)`
// instance's processor/graph name into inst.ResolvedModule. The name is
// looked up starting from the graph's own lexical scope so a processor
// declared in an enclosing namespace (or the graph's own namespace
// sibling) is found the same way any other qualified identifier would be.
func resolveInstanceModules(g *ast.Graph, ctx *Context) passResult {
	var res passResult
	for _, inst := range g.Instances {
		if inst.ResolvedModule != nil {
			continue
		}
		qi, ok := inst.ProcessorNameExpr.(*ast.QualifiedIdentifier)
		if !ok {
			continue
		}
		mod, failed := resolveModulePath(g, qi, ctx)
		if failed {
			res.numFailures++
			continue
		}
		if mod == nil {
			continue
		}
		inst.ResolvedModule = mod
		res.numReplaced++
	}
	return res
}

func resolveModulePath(scope ast.Scope, qi *ast.QualifiedIdentifier, ctx *Context) (ast.Module, bool) {
	if len(qi.Parts) == 0 {
		return nil, true
	}
	hits, _ := ast.LookupOutward(scope, qi.Parts[0])
	if len(hits) == 0 {
		ctx.errf(qi.Location(), diag.ResolutionFailure, "cannot find processor or graph %q", qi.Parts[0].String())
		return nil, true
	}
	for _, part := range qi.Parts[1:] {
		if len(hits) != 1 {
			break
		}
		mod, ok := asModule(hits[0])
		if !ok {
			ctx.errf(qi.Location(), diag.ResolutionFailure, "%q is not a namespace", hits[0].SymbolName().String())
			return nil, true
		}
		hits = mod.Lookup(part)
		if len(hits) == 0 {
			ctx.errf(qi.Location(), diag.ResolutionFailure, "cannot find %q in %q", part.String(), mod.ModuleName().String())
			return nil, true
		}
	}
	if len(hits) != 1 {
		ctx.errf(qi.Location(), diag.ResolutionFailure, "ambiguous reference to %q", qi.Parts[len(qi.Parts)-1].String())
		return nil, true
	}
	mod, ok := asModule(hits[0])
	if !ok {
		ctx.errf(qi.Location(), diag.ResolutionFailure, "%q is not a processor or graph", qi.Parts[len(qi.Parts)-1].String())
		return nil, true
	}
	return mod, false
}

func resolveOneQualifiedIdentifier(scope ast.Scope, qi *ast.QualifiedIdentifier, ctx *Context) (ast.Expr, bool) {
	if len(qi.Parts) == 0 {
		return nil, true
	}
	hits, _ := ast.LookupOutward(scope, qi.Parts[0])
	if len(hits) == 0 {
		if len(qi.Parts) == 1 && builtinConstants[qi.Parts[0].String()] {
			bc := &ast.BuiltinConstant{Name: qi.Parts[0].String()}
			bc.Loc = qi.Location()
			return bc, false
		}
		ctx.errf(qi.Location(), diag.ResolutionFailure, "cannot find %q", qi.Parts[0].String())
		return nil, true
	}
	if len(hits) == 1 && len(qi.Parts) == 2 {
		if inst, ok := hits[0].(*ast.ProcessorInstance); ok {
			return resolveProcessorProperty(qi, inst, qi.Parts[1])
		}
	}
	for _, part := range qi.Parts[1:] {
		if len(hits) != 1 {
			break
		}
		mod, ok := asModule(hits[0])
		if !ok {
			ctx.errf(qi.Location(), diag.ResolutionFailure, "%q is not a namespace, processor or graph", hits[0].SymbolName().String())
			return nil, true
		}
		hits = mod.Lookup(part)
		if len(hits) == 0 {
			ctx.errf(qi.Location(), diag.ResolutionFailure, "cannot find %q in %q", part.String(), mod.ModuleName().String())
			return nil, true
		}
	}
	if len(hits) > 1 {
		if allFunctions(hits) {
			return nil, false
		}
		ctx.errf(qi.Location(), diag.ResolutionFailure, "ambiguous reference to %q", qi.Parts[len(qi.Parts)-1].String())
		return nil, true
	}
	if _, ok := hits[0].(*ast.FunctionDecl); ok {
		return nil, false
	}
	if _, ok := asModule(hits[0]); ok {
		// a bare module name outside a ProcessorInstance position (e.g. a
		// mistaken reference) has nothing sensible to resolve to here.
		return nil, false
	}
	if u, ok := hits[0].(*ast.UsingDecl); ok && u.Resolved == nil {
		// TypeResolver has not yet filled in the alias's target; retry once
		// it has, rather than freezing a stale nil concrete type in place.
		return nil, true
	}
	return resolveHitToExpr(qi, hits[0]), false
}

// resolveProcessorProperty handles `instance.endpointName` inside a graph
// connection: the dotted path never goes through a module's Lookup (a
// ProcessorInstance is not itself a Scope), so it is resolved once the
// instance's module is known rather than by the general multi-part loop.
func resolveProcessorProperty(qi *ast.QualifiedIdentifier, inst *ast.ProcessorInstance, prop *ident.Identifier) (ast.Expr, bool) {
	r := &ast.ProcessorPropertyRef{Instance: inst, Property: prop}
	r.Loc = qi.Location()
	if inst.ResolvedModule == nil {
		return nil, true // not yet known this round; retried once resolveInstanceModules runs
	}
	for _, ep := range endpointsOf(inst.ResolvedModule) {
		if ep.Name == prop {
			r.Endpoint = ep
			return r, false
		}
	}
	return nil, true
}

func endpointsOf(m ast.Module) []*ast.Endpoint {
	switch mm := m.(type) {
	case *ast.Processor:
		return mm.Endpoints
	case *ast.Graph:
		return mm.Endpoints
	}
	return nil
}

func allFunctions(hits []ast.Symbol) bool {
	for _, h := range hits {
		if _, ok := h.(*ast.FunctionDecl); !ok {
			return false
		}
	}
	return true
}

func asModule(s ast.Symbol) (ast.Module, bool) {
	mod, ok := s.(ast.Module)
	return mod, ok
}

func resolveHitToExpr(qi *ast.QualifiedIdentifier, hit ast.Symbol) ast.Expr {
	loc := qi.Location()
	switch h := hit.(type) {
	case *ast.VarDecl:
		r := &ast.VariableRef{Target: h}
		r.Loc = loc
		return r
	case *ast.Param:
		r := &ast.VariableRef{Target: h}
		r.Loc = loc
		return r
	case *ast.Endpoint:
		if h.Direction == ast.DirOutput {
			r := &ast.OutputEndpointRef{Target: h}
			r.Loc = loc
			return r
		}
		r := &ast.InputEndpointRef{Target: h}
		r.Loc = loc
		return r
	case *ast.ProcessorInstance:
		r := &ast.ProcessorRef{Target: h}
		r.Loc = loc
		return r
	case *ast.UsingDecl:
		ct := ast.NewConcreteType(h.Resolved)
		ct.Loc = loc
		return ct
	case *ast.StructDecl:
		ct := ast.NewConcreteType(types.StructRef(h.Info))
		ct.Loc = loc
		return ct
	}
	return nil
}
