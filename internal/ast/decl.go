package ast

import (
	"soul/internal/ident"
	"soul/internal/types"
)

// Module is one of Namespace, Processor or Graph .
type Module interface {
	Scope
	ModuleName() *ident.Identifier
	SubModules() []Module
}

// EndpointDirection.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
)

// EndpointKind.
type EndpointKind int

const (
	EndpointStream EndpointKind = iota
	EndpointEvent
)

// Annotation is one `key: value` (or bare `key`, defaulting to `true`)
// entry of an `[[ ... ]]` block .
type Annotation struct {
	Key   string
	Value Expr // nil means the literal `true` default
}

type Annotations []Annotation

func (a Annotations) Has(key string) bool {
	for _, ann := range a {
		if ann.Key == key {
			return true
		}
	}
	return false
}

func (a Annotations) Get(key string) (Expr, bool) {
	for _, ann := range a {
		if ann.Key == key {
			return ann.Value, true
		}
	}
	return nil, false
}

// Endpoint is a named input or output port .
type Endpoint struct {
	Context
	Name            *ident.Identifier
	Direction       Direction
	Kind            EndpointKind
	SampleTypeExprs []TypeExpr    // as parsed, before resolution
	SampleTypes     []*types.Type // filled in by TypeResolver; may have several for an event endpoint
	ArraySize       int           // 0 means not an endpoint array
	Annotations     Annotations
}

// AcceptsType reports whether v is one of the endpoint's declared sample
// types — the language definition FullResolver: "WriteToEndpoint checks the value
// type is accepted by the output's declared sample-type set (an output
// may accept multiple types for events)."
func (e *Endpoint) AcceptsType(t *types.Type) bool {
	for _, st := range e.SampleTypes {
		if st != nil && types.CanSilentlyCastTo(st, t) {
			return true
		}
	}
	return false
}

func (e *Endpoint) SymbolName() *ident.Identifier { return e.Name }

// StructDecl wraps a types.StructInfo with AST context. Members are
// resolved in place on the embedded StructInfo as the resolver determines
// each field's type.
type StructDecl struct {
	Context
	Name *ident.Identifier
	Info *types.StructInfo
	// MemberExprs holds the still-unresolved type expression for each
	// member, parallel to Info.Members, until TypeResolver fills
	// Info.Members[i].Type in and clears the entry.
	MemberExprs []TypeExpr
	visiting    bool // recursive-declaration detection
	visited     bool
}

func (s *StructDecl) SymbolName() *ident.Identifier { return s.Name }

func (s *StructDecl) IsVisiting() bool    { return s.visiting }
func (s *StructDecl) SetVisiting(v bool)  { s.visiting = v }
func (s *StructDecl) IsVisited() bool     { return s.visited }
func (s *StructDecl) SetVisited(v bool)   { s.visited = v }

// UsingDecl is a type alias (the language definition's `using` declarations).
type UsingDecl struct {
	Context
	Name       *ident.Identifier
	TargetExpr TypeExpr
	Resolved   *types.Type // filled in by TypeResolver
	visiting   bool
	visited    bool
}

func (u *UsingDecl) SymbolName() *ident.Identifier { return u.Name }

func (u *UsingDecl) IsVisiting() bool   { return u.visiting }
func (u *UsingDecl) SetVisiting(v bool) { u.visiting = v }
func (u *UsingDecl) IsVisited() bool    { return u.visited }
func (u *UsingDecl) SetVisited(v bool)  { u.visited = v }

// VarDecl is a state variable, a local `let`/`var`, a namespace-level
// constant, or a function parameter once bound into a scope.
type VarDecl struct {
	Context
	Name         *ident.Identifier
	DeclaredType TypeExpr // nil if inferred from Init
	Type         *types.Type // resolved type, filled in by TypeResolver
	Init         Expr        // nil for an uninitialised state var (implicit zero)
	IsConst      bool
	IsState      bool // lives for the processor instance, not the block
	IsExternal   bool
	Annotations  Annotations

	// use-count bookkeeping rebuilt every resolution iteration.
	Reads  int
	Writes int
}

func (v *VarDecl) SymbolName() *ident.Identifier { return v.Name }

// IsWriteOnceWithConstantInit reports whether v is eligible for the
// ConstantFolder's "read of a write-once variable with a constant
// initialiser" rule (the resolution pipeline).
func (v *VarDecl) IsWriteOnceWithConstantInit() bool {
	if v.Writes > 1 || v.Init == nil {
		return false
	}
	_, ok := v.Init.(*Constant)
	return ok
}

// WildcardPattern names how a generic function's parameter or return
// type expression refers to one of its own wildcards, per the
// generic-function unification rules: bare `T`, `const T`, `T&`, `T[]`,
// `T[N]`, `T<N>`.
type WildcardPattern int

const (
	WildcardBare WildcardPattern = iota
	WildcardConst
	WildcardReference
	WildcardUnsizedArray
	WildcardFixedArray
	WildcardVector
)

// WildcardRef pins a parameter or return type expression to one of a
// generic function's wildcards under one of the WildcardPattern shapes
// above. Size is the literal N for WildcardFixedArray/WildcardVector,
// unused otherwise. A param/return carrying a WildcardRef has no
// DeclaredType/ReturnExpr of its own — there is no declaration a bare
// wildcard name could resolve to, so the parser clears it and leaves
// unification (internal/resolve/generics.go) to bind it directly.
type WildcardRef struct {
	Pattern WildcardPattern
	Name    *ident.Identifier
	Size    int
}

// Param is a function parameter.
type Param struct {
	Context
	Name         *ident.Identifier
	DeclaredType TypeExpr
	Type         *types.Type
	Wildcard     *WildcardRef
	Reads        int
	Writes       int
}

func (p *Param) SymbolName() *ident.Identifier { return p.Name }

// FunctionRole records the handful of recognised function annotations
// that change how the rest of the pipeline treats a function.
type FunctionRole int

const (
	RoleNone FunctionRole = iota
	RoleRun               // the audio-thread entry point 
)

// FunctionDecl is a processor/graph/namespace function, generic or not,
// intrinsic or not.
type FunctionDecl struct {
	Context
	Name           *ident.Identifier
	Wildcards      []*ident.Identifier // generic type parameters, nil if not generic
	Params         []*Param
	ReturnExpr     TypeExpr
	ReturnType     *types.Type
	ReturnWildcard *WildcardRef // set instead of ReturnExpr when the return type names a wildcard
	Body           *Block       // nil for an intrinsic or external function
	Annotations    Annotations
	Role           FunctionRole
	IntrinsicOf    string // non-empty marks this as a built-in with no body

	// Specialisations caches generic specialisations keyed by a string
	// derived from the call's argument types, so repeated calls with the
	// same types reuse one clone instead of generating duplicates.
	Specialisations map[string]*FunctionDecl

	// GenericOrigin points back at the template this was cloned from, nil
	// for non-generic functions and for the template itself.
	GenericOrigin *FunctionDecl
}

func (f *FunctionDecl) SymbolName() *ident.Identifier { return f.Name }
func (f *FunctionDecl) IsGeneric() bool                { return len(f.Wildcards) > 0 }
func (f *FunctionDecl) IsIntrinsic() bool               { return f.IntrinsicOf != "" }

// Namespace groups imports and a sequence of declarations (the language definition:
// "Top level: a namespace implicitly wraps imports...").
type Namespace struct {
	Context
	Name       *ident.Identifier
	Imports    []string
	Subs       []Module
	Structs    []*StructDecl
	Usings     []*UsingDecl
	Functions  []*FunctionDecl
	Constants  []*VarDecl
}

func (n *Namespace) ModuleName() *ident.Identifier { return n.Name }
func (n *Namespace) SubModules() []Module          { return n.Subs }
func (n *Namespace) ScopeParent() Scope            { return n.Parent }

func (n *Namespace) Lookup(name *ident.Identifier) []Symbol {
	var out []Symbol
	for _, s := range n.Subs {
		if s.ModuleName() == name {
			out = append(out, moduleSymbol{s})
		}
	}
	for _, s := range n.Structs {
		if s.Name == name {
			out = append(out, s)
		}
	}
	for _, u := range n.Usings {
		if u.Name == name {
			out = append(out, u)
		}
	}
	for _, c := range n.Constants {
		if c.Name == name {
			out = append(out, c)
		}
	}
	for _, f := range n.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// moduleSymbol adapts a Module (Namespace/Processor/Graph) to Symbol so it
// can be returned from Lookup alongside variables and functions.
type moduleSymbol struct{ Module }

func (m moduleSymbol) SymbolName() *ident.Identifier { return m.Module.ModuleName() }

// Processor is a SOUL processor .
type Processor struct {
	Context
	Name        *ident.Identifier
	Endpoints   []*Endpoint
	StateVars   []*VarDecl
	Structs     []*StructDecl
	Usings      []*UsingDecl
	Functions   []*FunctionDecl
	Annotations Annotations

	// SpecialisationParams are the optional specialisation arguments a
	// graph's `let` block can supply when instantiating this processor.
	SpecialisationParams []*Param
}

func (p *Processor) ModuleName() *ident.Identifier { return p.Name }
func (p *Processor) SubModules() []Module          { return nil }
func (p *Processor) ScopeParent() Scope            { return p.Parent }

func (p *Processor) Lookup(name *ident.Identifier) []Symbol {
	var out []Symbol
	for _, e := range p.Endpoints {
		if e.Name == name {
			out = append(out, e)
		}
	}
	for _, s := range p.Structs {
		if s.Name == name {
			out = append(out, s)
		}
	}
	for _, v := range p.StateVars {
		if v.Name == name {
			out = append(out, v)
		}
	}
	for _, u := range p.Usings {
		if u.Name == name {
			out = append(out, u)
		}
	}
	for _, f := range p.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func (p *Processor) RunFunction() *FunctionDecl {
	for _, f := range p.Functions {
		if f.Role == RoleRun {
			return f
		}
	}
	return nil
}

// ProcessorInstance is one `let name = ProcessorName(args)` entry in a
// graph's let-block, with optional clocking ratio.
type ProcessorInstance struct {
	Context
	Name              *ident.Identifier
	ProcessorNameExpr TypeExpr // resolved to a *Processor or *Graph by QualifiedIdentifierResolver
	ResolvedModule    Module
	SpecArgs          []Expr
	ClockMultiply     float64 // *ratio, 0 means unset/1
	ClockDivide       float64 // /ratio, 0 means unset/1
}

func (pi *ProcessorInstance) SymbolName() *ident.Identifier { return pi.Name }

// ConnectionInterpolation names the optional `[interp]` before `->`.
type ConnectionInterpolation int

const (
	InterpNone ConnectionInterpolation = iota
	InterpLinear
	InterpSinc
	InterpLagrange
)

// Connection is one `src -> [delay] -> dest` wire in a graph's connection
// block .
type Connection struct {
	Context
	Source      Expr // ProcessorPropertyRef-ish path to an endpoint
	Dest        Expr
	DelayLength int // 0 means no delay
	Interp      ConnectionInterpolation
}

// Graph is a SOUL graph .
type Graph struct {
	Context
	Name        *ident.Identifier
	Endpoints   []*Endpoint
	Instances   []*ProcessorInstance
	Connections []*Connection
	Annotations Annotations
}

func (g *Graph) ModuleName() *ident.Identifier { return g.Name }
func (g *Graph) SubModules() []Module          { return nil }
func (g *Graph) ScopeParent() Scope            { return g.Parent }

func (g *Graph) Lookup(name *ident.Identifier) []Symbol {
	var out []Symbol
	for _, e := range g.Endpoints {
		if e.Name == name {
			out = append(out, e)
		}
	}
	for _, pi := range g.Instances {
		if pi.Name == name {
			out = append(out, pi)
		}
	}
	return out
}
