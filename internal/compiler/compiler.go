// Package compiler implements the external-facing entry point the rest of
// this repo's tooling drives: stage source files, link them into one
// program, and walk away with a Program holding every processor's and
// graph's lowered HEART form.
//
// Grounded on the reference op-listing interpreter's two-phase compile/build
// split (a Compiler that accumulates source across possibly-many addCode
// calls before a single build pass walks the accumulated listing) —
// generalised here to SOUL's module system: each AddCode call parses and
// pre-checks one source unit in isolation, and Link is the one place that
// merges every staged unit, runs the fixpoint resolver, and lowers.
package compiler

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/heart"
	"soul/internal/ident"
	"soul/internal/parser"
	"soul/internal/resolve"
	"soul/internal/sanity"
)

// Compiler owns the interning tables every staged unit shares and the list
// of units accumulated so far. A Compiler is single-use for one linked
// Program: once Link has merged the staged units, start a fresh Compiler
// for the next one rather than reusing this one's tables.
type Compiler struct {
	idents *ident.Pool
	strs   *ident.StringDictionary
	consts *ident.ConstantTable

	units []*ast.Namespace
}

// New returns a Compiler with fresh, empty interning tables.
func New() *Compiler {
	return &Compiler{
		idents: ident.NewPool(),
		strs:   ident.NewStringDictionary(),
		consts: ident.NewConstantTable(),
	}
}

// AddCode parses one source unit and runs the pre-resolution sanity checks
// against it in isolation, staging it for the next Link call on success.
// It reports whether the unit was free of errors; messages is appended to
// either way, so a caller that only wants the final verdict can ignore the
// return value and check messages.HasErrors() once after every AddCode and
// Link call it plans to make.
func (c *Compiler) AddCode(messages *diag.List, file, code string) bool {
	before := len(messages.Messages())
	ns := parser.Parse(file, code, c.idents, c.strs, messages)
	sanity.CheckPre(ns, messages)
	if hasErrorsSince(messages, before) {
		return false
	}
	c.units = append(c.units, ns)
	return true
}

func hasErrorsSince(messages *diag.List, from int) bool {
	all := messages.Messages()
	for _, m := range all[from:] {
		if m.Severity == diag.Error {
			return true
		}
	}
	return false
}

// LinkOptions configures the single pass that turns staged units into a
// Program.
type LinkOptions struct {
	// MainProcessor is the name of the processor or graph to treat as the
	// program's entry point. Empty means the caller only wants every
	// module compiled, with no particular one singled out (e.g. a library
	// build that's only going to be imported elsewhere).
	MainProcessor string
	SampleRate    float64
	MaxBlockSize  int
}

// Link merges every unit staged by AddCode into one namespace, resolves it
// to a fixpoint, runs the post-resolution sanity pass, and lowers every
// processor and graph it finds into HEART. It returns nil if linking was
// attempted with nothing staged; otherwise it always returns a Program,
// even one whose Modules are incomplete, so a caller can inspect whatever
// did lower alongside the diagnostics in messages.
func (c *Compiler) Link(messages *diag.List, opts LinkOptions) *Program {
	if len(c.units) == 0 {
		messages.Addf(diag.Location{}, diag.InternalAssert, "Link called with no source units staged")
		return nil
	}

	merged := mergeUnits(c.idents, c.units)

	ctx := &resolve.Context{Diags: messages, Idents: c.idents, Strs: c.strs, Consts: c.consts}
	resolve.Resolve(merged, ctx)
	sanity.CheckPost(merged, messages)

	modules := collectLowerable(merged)
	prog := &Program{
		idents:  c.idents,
		strs:    c.strs,
		consts:  c.consts,
		Modules: make(map[string]*heart.Module, len(modules)),
		Options: opts,
	}
	for _, m := range modules {
		name := m.ModuleName().String()
		hm := heart.Lower(m, messages)
		if hm == nil {
			continue
		}
		hm.Name = name
		prog.Modules[name] = hm
		prog.order = append(prog.order, name)
	}

	if opts.MainProcessor != "" {
		if _, ok := prog.Modules[opts.MainProcessor]; !ok {
			messages.Addf(diag.Location{}, diag.SanityError, "no processor or graph named %q to use as the main processor", opts.MainProcessor)
		}
		prog.Main = opts.MainProcessor
	}

	return prog
}

// Build is AddCode and Link combined for the common case of a single
// source unit compiled on its own.
func (c *Compiler) Build(messages *diag.List, file, code string, opts LinkOptions) *Program {
	if !c.AddCode(messages, file, code) {
		return nil
	}
	return c.Link(messages, opts)
}

// mergeUnits folds every staged unit's top-level declarations into one
// namespace so the resolver sees a single module graph regardless of how
// many source files contributed to it. Each unit's own Namespace node is
// discarded; only its contents survive, reparented onto merged.
func mergeUnits(idents *ident.Pool, units []*ast.Namespace) *ast.Namespace {
	merged := &ast.Namespace{Name: idents.Intern("<program>")}
	for _, u := range units {
		merged.Imports = append(merged.Imports, u.Imports...)
		merged.Structs = append(merged.Structs, u.Structs...)
		merged.Usings = append(merged.Usings, u.Usings...)
		merged.Functions = append(merged.Functions, u.Functions...)
		merged.Constants = append(merged.Constants, u.Constants...)
		merged.Subs = append(merged.Subs, u.Subs...)
	}
	for _, sub := range merged.Subs {
		reparent(sub, merged)
	}
	return merged
}

// reparent rewrites a top-level module's scope-parent link to point at the
// merged namespace in place of whichever per-unit namespace originally
// held it — needed because mergeUnits moves the module without copying
// it, and its Context.Parent would otherwise still point at a namespace
// that's about to be discarded.
func reparent(m ast.Module, parent ast.Scope) {
	switch mm := m.(type) {
	case *ast.Processor:
		mm.Parent = parent
	case *ast.Graph:
		mm.Parent = parent
	}
}

// collectLowerable walks a namespace's module tree and returns every
// processor and graph found, in declaration order. Unlike
// internal/resolve's own (package-private) collectModules, this omits
// namespaces themselves — only processors and graphs have a HEART form.
func collectLowerable(m ast.Module) []ast.Module {
	var out []ast.Module
	var walk func(ast.Module)
	walk = func(m ast.Module) {
		switch m.(type) {
		case *ast.Processor, *ast.Graph:
			out = append(out, m)
		}
		for _, sub := range m.SubModules() {
			walk(sub)
		}
	}
	walk(m)
	return out
}
