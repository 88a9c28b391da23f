// Package ast defines the abstract syntax tree: typed node variants for
// declarations, statements and expressions, each owning a Context that
// carries source location and a weak link to its parent scope, plus the
// traversal/rewriting visitor framework the resolution engine
// (internal/resolve) drives.
//
// There is no AST in the original implementation (SynteLang parses directly into an
// executable op listing, the reference op-listing interpreter's `operation`/`listing`);
// the node shapes here are new, but the "a flat list of things with a
// name and an operator-like tag, grouped into listings/functions" idiom —
// operation{Op, Opd} grouped into listing, listings grouped into a
// systemState — is the same shape this package generalises into
// Decl/Stmt/Expr nodes grouped into Blocks grouped into Modules.
package ast

import (
	"soul/internal/diag"
	"soul/internal/ident"
)

// Context is embedded in every node. Parent is a weak (non-owning) link
// used for upward name-lookup (the language definition "Scope parent links").
type Context struct {
	Loc    diag.Location
	Parent Scope
}

func (c Context) Location() diag.Location { return c.Loc }

// Node is implemented by every AST node.
type Node interface {
	Location() diag.Location
}

// Scope is implemented by every node that owns a namespace of declarations
// searchable by name: Namespace, Processor, Graph and Block (its locals).
// FunctionDecl and StructDecl do not implement it; a function's
// parameters are searched through a small adapter around FunctionDecl
// (internal/parser's funcParamScope, internal/resolve's specParamScope).
type Scope interface {
	Node
	ScopeParent() Scope
	// Lookup returns the declaration bound to name in this scope only
	// (no outward walk) plus how many bindings matched — more than one is
	// an ambiguity the caller reports.
	Lookup(name *ident.Identifier) []Symbol
}

// Symbol is anything a name can resolve to within one scope: a variable,
// a function (possibly overloaded — Lookup can return several), a
// processor/graph instance, an endpoint, a sub-module, a struct, or a
// using-alias.
type Symbol interface {
	Node
	SymbolName() *ident.Identifier
}

// LookupOutward walks from scope outward through parent links, stopping at
// the first scope with at least one match — the resolution pipeline: "Name
// lookup walks outward through lexical scopes, stopping at the first scope
// containing a hit."
func LookupOutward(scope Scope, name *ident.Identifier) ([]Symbol, Scope) {
	for s := scope; s != nil; s = s.ScopeParent() {
		if hits := s.Lookup(name); len(hits) > 0 {
			return hits, s
		}
	}
	return nil, nil
}
