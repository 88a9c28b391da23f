package ast

import (
	"soul/internal/ident"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

// Expr is implemented by every expression node variant .
type Expr interface {
	Node
	ExprNode()
	// ExprType returns the resolved type, or nil before resolution.
	ExprType() *types.Type
}

// TypeExpr is the same syntax used in a type position (the language definition:
// "Type expressions and value expressions share a subset of syntax").
// QualifiedIdentifier, SubscriptWithBrackets/Chevrons and TypeMetaFunction
// all serve double duty; ConcreteType is what TypeResolver replaces them
// with once the type is known.
type TypeExpr = Expr

type exprBase struct {
	Context
	typ *types.Type
}

func (e *exprBase) ExprNode()             {}
func (e *exprBase) ExprType() *types.Type { return e.typ }
func (e *exprBase) SetType(t *types.Type) { e.typ = t }

// QualifiedIdentifier is an unresolved `a::b::c` or bare name reference —
// the resolution pipeline replaces every one of these.
type QualifiedIdentifier struct {
	exprBase
	Parts []*ident.Identifier
}

// VariableRef resolves to a VarDecl or Param.
type VariableRef struct {
	exprBase
	Target Symbol // *VarDecl or *Param
}

// ProcessorRef resolves to a ProcessorInstance (graph let-block entry).
type ProcessorRef struct {
	exprBase
	Target *ProcessorInstance
}

// InputEndpointRef / OutputEndpointRef resolve a name to a declared
// endpoint.
type InputEndpointRef struct {
	exprBase
	Target *Endpoint
}

type OutputEndpointRef struct {
	exprBase
	Target *Endpoint
}

// ProcessorPropertyRef is `instance.property` inside a graph connection or
// specialisation-argument position, e.g. `p.in`.
type ProcessorPropertyRef struct {
	exprBase
	Instance *ProcessorInstance
	Property *ident.Identifier
	Endpoint *Endpoint // resolved once the instance's module is known
}

// BuiltinConstant is one of pi/twoPi/nan/inf (the resolution pipeline).
type BuiltinConstant struct {
	exprBase
	Name string
}

// Constant is a fully folded compile-time value (the resolution pipeline).
type Constant struct {
	exprBase
	Value value.Value
}

// StructMemberRef is `expr.member`.
type StructMemberRef struct {
	exprBase
	Base      Expr
	Member    *ident.Identifier
	MemberIdx int // resolved index into the struct's Members, -1 until resolved
}

// SliceRange is the optional `[lo:hi]` on an ArrayElementRef.
type SliceRange struct {
	Low, High Expr // either may be nil (open range)
}

// ArrayElementRef is `expr[index]` or `expr[lo:hi]` once TypeResolver has
// determined the base is a value/endpoint, not a type (the language definition step
// 2).
type ArrayElementRef struct {
	exprBase
	Base  Expr
	Index Expr       // nil if Slice != nil
	Slice *SliceRange // nil if Index != nil
	Wrap  bool        // true when lowered from `at(array, index)` (the resolution pipeline)
}

// CallOrCast is the not-yet-disambiguated `name(args)` / `Type(args)`
// parse-time node; FunctionResolver rewrites it into FunctionCall or
// TypeCast (the resolution pipeline).
type CallOrCast struct {
	exprBase
	Callee Expr
	Args   []Expr
}

// FunctionCall is a resolved call to a specific (possibly just-specialised)
// function.
type FunctionCall struct {
	exprBase
	Target *FunctionDecl
	Args   []Expr
}

// TypeCast is a resolved `Type(value)` explicit cast.
type TypeCast struct {
	exprBase
	Target TypeExpr
	Arg    Expr
}

// BinaryOp covers all binary operators except the lowered `&&`/`||`
// (those become Ternary, the language definition).
type BinaryOp struct {
	exprBase
	Op       token.Kind
	Lhs, Rhs Expr
	// InsertedCast records a silent cast the FullResolver inserted on the
	// narrower side so both operands share a type (the language definition
	// FullResolver).
	InsertedCastOnLhs bool
	InsertedCastOnRhs bool
}

// UnaryOp covers `-`, `!`, `~` prefix operators.
type UnaryOp struct {
	exprBase
	Op  token.Kind
	Arg Expr
}

// Ternary covers `cond ? t : f`, and is also what `&&`/`||` lower into
// (the language definition: "`||` and `&&` are lowered immediately to ternaries with
// constant true/false branches").
type Ternary struct {
	exprBase
	Cond, True, False Expr
	// InsertedCast mirrors BinaryOp's: the FullResolver sets it on the
	// branch it had to silently cast so both sides share a common type.
	InsertedCastOnTrue  bool
	InsertedCastOnFalse bool
}

// IncDec covers `++x`/`--x` (Pre true) and `x++`/`x--` (Pre false).
type IncDec struct {
	exprBase
	Op     token.Kind // Inc or Dec
	Target Expr
	Pre    bool
}

// TypeMetaFunctionKind enumerates `x.type`, `x.size`, etc.
type TypeMetaFunctionKind int

const (
	MetaType TypeMetaFunctionKind = iota
	MetaSize
	MetaElementType
	MetaIsArray
	MetaIsVector
	MetaIsStruct
	MetaIsInt
	MetaIsFloat
	MetaIsBool
	MetaIsReference
	MetaIsConst
	MetaMakeConst
	MetaMakeReference
	MetaPrimitiveType
)

// TypeMetaFunction is `x.type`, `x.size`, `x.elementType`, `x.isArray`, …
// (the resolution pipeline).
type TypeMetaFunction struct {
	exprBase
	Kind TypeMetaFunctionKind
	Arg  Expr // may itself be a TypeExpr or a value expression
}

// InitialiserList is a comma-separated `{ a, b, c }` list.
type InitialiserList struct {
	exprBase
	Elements []Expr
}

// WriteToEndpoint is `out << value` or `out[i] << value`, rewritten from a
// BinaryOp by ConvertStreamOperations (the resolution pipeline).
type WriteToEndpoint struct {
	exprBase
	Endpoint Expr // OutputEndpointRef or ArrayElementRef of one
	Value    Expr
}

// ConcreteType is what a type-position expression resolves to, once
// resolveTypes has disambiguated it from a value.
type ConcreteType struct {
	exprBase
}

func NewConcreteType(t *types.Type) *ConcreteType {
	c := &ConcreteType{}
	c.typ = t
	return c
}

// SubscriptWithBrackets is the parse-time `a[b]` node before TypeResolver
// decides whether `a` is a type (-> ConcreteType holding a fixed/unsized
// array type) or a value (-> ArrayElementRef indexing).
type SubscriptWithBrackets struct {
	exprBase
	Base  Expr
	Index Expr // nil for `a[]` (unsized array type position)
	Slice *SliceRange
}

// SubscriptWithChevrons is the parse-time `a<b>` node — a vector size, a
// bounded-int limit, or a generic instantiation depending on what `a`
// resolves to.
type SubscriptWithChevrons struct {
	exprBase
	Base Expr
	Args []Expr
}

// AssignExpr is `lhs = rhs` or a compound assignment; kept distinct from
// BinaryOp because only some l-value shapes are legal targets (checked by
// FullResolver's const-ness check, the language definition).
type AssignExpr struct {
	exprBase
	Op     token.Kind // Assign, PlusAssign, ...
	Target Expr
	Value  Expr
}

// CommaExpr is a comma-sequenced expression list used in a `for`
// initialiser/step clause.
type CommaExpr struct {
	exprBase
	Items []Expr
}

// AdvanceCall is `advance()`, lowered to the HEART advance-clock primitive.
type AdvanceCall struct {
	exprBase
}

// StaticAssert is `static_assert(expr[, msg])` (the resolution pipeline).
type StaticAssert struct {
	exprBase
	Cond Expr
	Msg  string
}
