package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/types"
)

// resolveFunctions is pass 5: disambiguate every CallOrCast into a
// FunctionCall, a TypeCast, or the special at(array, index) wrap-index
// form. Candidates are drawn from ordinary
// lexical scope lookup plus the intrinsic namespace (intrinsics.go).
func resolveFunctions(m ast.Module, ctx *Context) passResult {
	var res passResult
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		call, ok := e.(*ast.CallOrCast)
		if !ok {
			return nil, false
		}
		repl, failed := resolveCallOrCast(scope, call, ctx)
		if failed {
			res.numFailures++
			return nil, false
		}
		if repl == nil {
			return nil, false
		}
		res.numReplaced++
		return repl, true
	})
	return res
}

func resolveCallOrCast(scope ast.Scope, call *ast.CallOrCast, ctx *Context) (ast.Expr, bool) {
	// Type(args): an explicit cast, once the callee has resolved to a type.
	if t := concreteTypeOf(call.Callee); t != nil {
		if len(call.Args) != 1 {
			ctx.errf(call.Location(), diag.TypeError, "a cast takes exactly one argument")
			return &ast.TypeCast{Target: call.Callee, Arg: call.Args[0]}, false
		}
		tc := &ast.TypeCast{Target: call.Callee, Arg: call.Args[0]}
		tc.Loc = call.Location()
		return tc, false
	}

	qi, ok := call.Callee.(*ast.QualifiedIdentifier)
	if !ok {
		// callee is some other still-unresolved expression (e.g. nested
		// CallOrCast); wait for it to settle first.
		return nil, true
	}
	if len(qi.Parts) != 1 {
		// a dotted callee (namespace::func(...)) is not resolved:
		// resolveQualifiedIdentifiers leaves a function-name hit as it
		// is and nothing shortens it to a single part, so such a call
		// stays an unresolved CallOrCast.
		return nil, true
	}
	name := qi.Parts[0].String()

	if name == "at" {
		return resolveAtCall(call, ctx)
	}

	argTypes := make([]*types.Type, len(call.Args))
	allKnown := true
	for i, a := range call.Args {
		argTypes[i] = valueTypeOf(a)
		if argTypes[i] == nil {
			allKnown = false
		}
	}

	candidates := functionCandidates(scope, qi.Parts[0], len(call.Args), ctx)
	if len(candidates) == 0 {
		ctx.errf(call.Location(), diag.ResolutionFailure, "no function named %q taking %d argument(s)", name, len(call.Args))
		return nil, false
	}
	if !allKnown {
		return nil, true
	}

	target, ok := pickCandidate(candidates, argTypes)
	if !ok {
		ctx.errf(call.Location(), diag.ResolutionFailure, "no overload of %q matches the given argument types", name)
		return nil, false
	}

	fc := &ast.FunctionCall{Target: target, Args: call.Args}
	fc.Loc = call.Location()
	return fc, false
}

// functionCandidates gathers every FunctionDecl of the given name and
// arity visible from scope, plus any matching intrinsic. Lexical hits take
// priority: intrinsics are only offered when nothing user-declared shares
// the name, mirroring how a user function shadows a builtin in scope.
func functionCandidates(scope ast.Scope, name *ident.Identifier, arity int, ctx *Context) []*ast.FunctionDecl {
	hits, _ := ast.LookupOutward(scope, name)
	var out []*ast.FunctionDecl
	anyUserFunc := false
	for _, h := range hits {
		if f, ok := h.(*ast.FunctionDecl); ok {
			anyUserFunc = true
			if len(f.Params) == arity {
				out = append(out, f)
			}
		}
	}
	if anyUserFunc {
		return out
	}
	return ctx.intrinsicsByNameArity(name.String(), arity)
}

func resolveAtCall(call *ast.CallOrCast, ctx *Context) (ast.Expr, bool) {
	if len(call.Args) != 2 {
		ctx.errf(call.Location(), diag.TypeError, "at(array, index) takes exactly two arguments")
		return nil, false
	}
	r := &ast.ArrayElementRef{Base: call.Args[0], Index: call.Args[1], Wrap: true}
	r.Loc = call.Location()
	return r, false
}

// pickCandidate applies the resolution-rule ordering:
// exactly one non-impossible candidate wins outright; otherwise exactly
// one exact match wins; otherwise exactly one generic specialisation
// succeeds; anything else is ambiguous or impossible.
func pickCandidate(candidates []*ast.FunctionDecl, argTypes []*types.Type) (*ast.FunctionDecl, bool) {
	var possible, exact []*ast.FunctionDecl
	for _, c := range candidates {
		if c.IsGeneric() {
			continue
		}
		if candidateMatches(c, argTypes, false) {
			possible = append(possible, c)
			if candidateMatches(c, argTypes, true) {
				exact = append(exact, c)
			}
		}
	}
	if len(possible) == 1 {
		return possible[0], true
	}
	if len(exact) == 1 {
		return exact[0], true
	}

	var specialised []*ast.FunctionDecl
	for _, c := range candidates {
		if !c.IsGeneric() {
			continue
		}
		if spec, ok := specialise(c, argTypes); ok {
			specialised = append(specialised, spec)
		}
	}
	if len(specialised) == 1 {
		return specialised[0], true
	}
	return nil, false
}

func candidateMatches(f *ast.FunctionDecl, argTypes []*types.Type, exact bool) bool {
	if len(f.Params) != len(argTypes) {
		return false
	}
	for i, p := range f.Params {
		if p.Type == nil || argTypes[i] == nil {
			return false
		}
		if !types.CanPassAsArgumentTo(p.Type, argTypes[i], exact) {
			return false
		}
	}
	return true
}
