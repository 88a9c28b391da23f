// Package resolve implements the iterative fixpoint name and type
// resolution engine at the heart of the front end. It runs a fixed
// sequence of rewriting passes over a module's AST until no more names
// can be resolved and no more nodes are rewritten, then a final
// FullResolve pass performs checks that only make sense once resolution
// has settled.
//
// The control shape — run every pass, count what changed, stop once a
// round makes no further progress — mirrors the compaction loop in the
// reference transfer/collate implementation this front end's pipeline is
// modelled on, which breaks out of its own repeated passes exactly the
// same way once a round leaves its listing unchanged.
package resolve

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
)

// Context threads the shared tables every pass needs, plus the running
// ignoreErrors flag the fixpoint loop flips for the final, error-surfacing
// re-run of each pass.
type Context struct {
	Diags        *diag.List
	Idents       *ident.Pool
	Strs         *ident.StringDictionary
	Consts       *ident.ConstantTable
	IgnoreErrors bool

	intrinsics []*ast.FunctionDecl // lazily built by intrinsicFuncs, see intrinsics.go
}

func (c *Context) errf(loc diag.Location, kind diag.Kind, format string, args ...interface{}) {
	if c.IgnoreErrors {
		return
	}
	c.Diags.Addf(loc, kind, format, args...)
}

// passResult is what every pass returns: how many names it could not
// resolve this round, and how many nodes it rewrote.
type passResult struct {
	numFailures int
	numReplaced int
}

func (r *passResult) merge(o passResult) {
	r.numFailures += o.numFailures
	r.numReplaced += o.numReplaced
}

// pass is one of the resolution engine's numbered steps, applied to one
// module (not recursively — Resolve below handles recursion into
// sub-modules).
type pass func(m ast.Module, ctx *Context) passResult

var passes = []pass{
	resolveQualifiedIdentifiers,
	resolveTypes,
	convertStreamOperations,
	rebuildUseCounts,
	resolveFunctions,
	foldConstants,
}

// Resolve runs the fixpoint loop over ns and every sub-module, then the
// post-fixpoint FullResolve and initialiser-cycle checks. It is the
// package's only exported entry point; internal/compiler calls it once per
// linked program after internal/sanity's pre-resolution pass.
func Resolve(ns *ast.Namespace, ctx *Context) {
	var modules []ast.Module
	collectModules(ns, &modules)
	for _, m := range modules {
		runFixpoint(m, ctx)
	}
	for _, m := range modules {
		FullResolve(m, ctx)
	}
	for _, m := range modules {
		checkInitialiserCycles(m, ctx)
	}
}

func collectModules(m ast.Module, out *[]ast.Module) {
	*out = append(*out, m)
	for _, sub := range m.SubModules() {
		collectModules(sub, out)
	}
}

// runFixpoint repeats the pass list until no failures remain or nothing
// was rewritten; on stall with failures remaining, re-run every pass once
// more with errors enabled so the first precise diagnostic is produced.
func runFixpoint(m ast.Module, ctx *Context) {
	ctx.IgnoreErrors = true
	for {
		var round passResult
		for _, p := range passes {
			round.merge(p(m, ctx))
		}
		if round.numFailures == 0 || round.numReplaced == 0 {
			if round.numFailures > 0 {
				ctx.IgnoreErrors = false
				for _, p := range passes {
					p(m, ctx)
				}
				ctx.IgnoreErrors = true
			}
			return
		}
	}
}
