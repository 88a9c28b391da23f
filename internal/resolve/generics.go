package resolve

import (
	"strings"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/types"
)

// specialise returns the concrete FunctionDecl matching tmpl's wildcards
// against the given argument types, cloning and caching the result on
// tmpl.Specialisations, keyed by the function and its argument types.
// false means the arguments don't unify.
func specialise(tmpl *ast.FunctionDecl, argTypes []*types.Type) (*ast.FunctionDecl, bool) {
	if len(tmpl.Params) != len(argTypes) {
		return nil, false
	}
	key := specialisationKey(argTypes)
	if tmpl.Specialisations == nil {
		tmpl.Specialisations = map[string]*ast.FunctionDecl{}
	}
	if existing, ok := tmpl.Specialisations[key]; ok {
		return existing, true
	}

	bound, ok := unifyWildcards(tmpl, argTypes)
	if !ok {
		return nil, false
	}

	spec := cloneFunctionForSpecialisation(tmpl, bound)
	tmpl.Specialisations[key] = spec
	return spec, true
}

func specialisationKey(argTypes []*types.Type) string {
	var b strings.Builder
	for i, t := range argTypes {
		if i > 0 {
			b.WriteByte(',')
		}
		if t == nil {
			b.WriteByte('?')
			continue
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// paramWildcard reports the WildcardRef governing prm's position, falling
// back to intrinsics.go's "nil DeclaredType, nil Type, exactly one
// template wildcard" convention for the synthetic intrinsic FunctionDecls,
// which carry no *ast.WildcardRef at all since they're built directly
// rather than parsed.
func paramWildcard(tmpl *ast.FunctionDecl, prm *ast.Param) *ast.WildcardRef {
	if prm.Wildcard != nil {
		return prm.Wildcard
	}
	if prm.DeclaredType == nil && prm.Type == nil && len(tmpl.Wildcards) == 1 {
		return &ast.WildcardRef{Pattern: ast.WildcardBare, Name: tmpl.Wildcards[0]}
	}
	return nil
}

func returnWildcard(tmpl *ast.FunctionDecl) *ast.WildcardRef {
	if tmpl.ReturnWildcard != nil {
		return tmpl.ReturnWildcard
	}
	if tmpl.ReturnExpr == nil && tmpl.ReturnType == nil && len(tmpl.Wildcards) == 1 {
		return &ast.WildcardRef{Pattern: ast.WildcardBare, Name: tmpl.Wildcards[0]}
	}
	return nil
}

// unifyWildcards walks tmpl's parameter positions in parallel with
// argTypes per the language definition's §4.6 step 7: each recognised
// parameter-side pattern constrains one wildcard identifier against a
// type derived from the caller's argument at that position. Multiple
// positions may constrain the same wildcard; conflicting bindings are
// resolved by a silent-cast union when no reference is involved in either
// binding, otherwise unification fails ("reported" — the caller surfaces
// that as an ordinary no-match, same as any other failed specialisation).
func unifyWildcards(tmpl *ast.FunctionDecl, argTypes []*types.Type) (map[*ident.Identifier]*types.Type, bool) {
	bound := map[*ident.Identifier]*types.Type{}
	referenceInvolved := map[*ident.Identifier]bool{}

	bind := func(name *ident.Identifier, t *types.Type, viaReference bool) bool {
		if t == nil {
			return false
		}
		existing, ok := bound[name]
		if !ok {
			bound[name] = t
			referenceInvolved[name] = viaReference
			return true
		}
		if existing.Equal(t) {
			referenceInvolved[name] = referenceInvolved[name] || viaReference
			return true
		}
		if referenceInvolved[name] || viaReference {
			// a reference-involved wildcard must bind to exactly one type;
			// the language definition reports a conflict here rather than
			// unioning via a silent cast.
			return false
		}
		switch {
		case types.CanSilentlyCastTo(existing, t):
			// existing already wide enough
		case types.CanSilentlyCastTo(t, existing):
			bound[name] = t
		default:
			return false
		}
		return true
	}

	for i, prm := range tmpl.Params {
		argType := argTypes[i]
		w := paramWildcard(tmpl, prm)
		if w == nil {
			// an ordinary, already-concrete parameter of an otherwise
			// generic function: it must simply accept the caller's
			// argument, the same rule candidateMatches applies to a
			// non-generic candidate.
			if prm.Type != nil && !types.CanPassAsArgumentTo(prm.Type, argType, false) {
				return nil, false
			}
			continue
		}
		if argType == nil {
			return nil, false
		}
		switch w.Pattern {
		case ast.WildcardBare:
			if !bind(w.Name, argType, false) {
				return nil, false
			}
		case ast.WildcardConst:
			if !bind(w.Name, argType.WithoutConst(), false) {
				return nil, false
			}
		case ast.WildcardReference:
			if !bind(w.Name, argType.WithoutReference(), true) {
				return nil, false
			}
		case ast.WildcardUnsizedArray:
			if !argType.IsArray() {
				return nil, false
			}
			if !bind(w.Name, argType.ElementType(), false) {
				return nil, false
			}
		case ast.WildcardFixedArray:
			if !argType.IsFixedSizeArray() || argType.ArraySize() != w.Size {
				return nil, false
			}
			if !bind(w.Name, argType.ElementType(), false) {
				return nil, false
			}
		case ast.WildcardVector:
			if !argType.IsVector() || argType.VectorSize() != w.Size {
				return nil, false
			}
			if !bind(w.Name, types.Prim(argType.VectorElement()), false) {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	for _, w := range tmpl.Wildcards {
		if bound[w] == nil {
			// a wildcard that appears only in the return type, never in
			// any parameter position, can't be unified from the call site.
			return nil, false
		}
	}
	return bound, true
}

// wildcardType rebuilds the concrete type a WildcardRef denotes once its
// wildcard is bound, applying the same wrapper the parameter/return type
// expression named (const/reference/array/vector) on top of the bound
// type — the inverse of the stripping unifyWildcards does on the caller
// side (removeConst/removeReference/elementType).
func wildcardType(w *ast.WildcardRef, bound map[*ident.Identifier]*types.Type) *types.Type {
	base := bound[w.Name]
	if base == nil {
		return nil
	}
	switch w.Pattern {
	case ast.WildcardBare:
		return base
	case ast.WildcardConst:
		return base.WithConst()
	case ast.WildcardReference:
		return base.WithReference()
	case ast.WildcardUnsizedArray:
		return types.UnsizedArray(base)
	case ast.WildcardFixedArray:
		arr, err := types.FixedArray(base, w.Size)
		if err != nil {
			return nil
		}
		return arr
	case ast.WildcardVector:
		if !base.IsPrimitive() {
			return nil
		}
		vec, err := types.Vector(base.PrimitiveType(), w.Size)
		if err != nil {
			return nil
		}
		return vec
	}
	return nil
}

// cloneFunctionForSpecialisation builds a concrete, non-generic
// FunctionDecl from tmpl with every parameter/return wildcard reference
// replaced by its bound type, per the language definition's §4.6 step 7:
// "clones the AST of a generic function (parameter list, body,
// annotation)". The body is a genuine deep copy, not a shared pointer —
// tmpl's own Params stay wildcard-typed forever (they're never resolved to
// a concrete type), so a shared body's VariableRefs would still target
// tmpl's Params instead of this specialisation's concrete ones, and two
// specialisations of the same template would trample each other's local
// variable bookkeeping.
func cloneFunctionForSpecialisation(tmpl *ast.FunctionDecl, bound map[*ident.Identifier]*types.Type) *ast.FunctionDecl {
	spec := &ast.FunctionDecl{
		Context:       tmpl.Context,
		Name:          tmpl.Name,
		Role:          tmpl.Role,
		IntrinsicOf:   tmpl.IntrinsicOf,
		Annotations:   tmpl.Annotations,
		GenericOrigin: tmpl,
	}
	if w := returnWildcard(tmpl); w != nil {
		spec.ReturnType = wildcardType(w, bound)
	} else {
		spec.ReturnType = tmpl.ReturnType
	}
	params := make(map[*ast.Param]*ast.Param, len(tmpl.Params))
	for _, p := range tmpl.Params {
		pt := p.Type
		if w := paramWildcard(tmpl, p); w != nil {
			pt = wildcardType(w, bound)
		}
		np := &ast.Param{Context: p.Context, Name: p.Name, Type: pt}
		params[p] = np
		spec.Params = append(spec.Params, np)
	}
	if tmpl.Body != nil {
		spec.Body = cloneBlock(tmpl.Body, &specParamScope{fn: spec, parent: tmpl.Body.Parent.ScopeParent()}, params, map[*ast.VarDecl]*ast.VarDecl{})
	}
	return spec
}

// specParamScope gives a specialisation's cloned body the same
// "look myself up by name among my own Params" scope that
// internal/parser's bodyScopeOf gives a freshly-parsed function, so the
// clone's Body.Parent chain terminates at the specialisation's own Params
// rather than the template's.
type specParamScope struct {
	fn     *ast.FunctionDecl
	parent ast.Scope
}

func (s *specParamScope) Location() diag.Location { return s.fn.Context.Loc }
func (s *specParamScope) ScopeParent() ast.Scope   { return s.parent }

func (s *specParamScope) Lookup(name *ident.Identifier) []ast.Symbol {
	var out []ast.Symbol
	for _, prm := range s.fn.Params {
		if prm.Name == name {
			out = append(out, prm)
		}
	}
	return out
}

// cloneBlock deep-copies b for one specialisation: every local VarDecl
// gets its own clone (so two specialisations of the same template never
// share resolution bookkeeping) and every VariableRef naming one of
// tmpl's Params or one of this block's own locals is rebound to the
// corresponding clone.
func cloneBlock(b *ast.Block, parent ast.Scope, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) *ast.Block {
	if b == nil {
		return nil
	}
	clone := &ast.Block{}
	clone.Context = b.Context
	clone.Parent = parent
	for _, s := range b.Stmts {
		clone.Stmts = append(clone.Stmts, cloneStmt(s, clone, params, locals))
	}
	for _, v := range b.Locals {
		clone.Locals = append(clone.Locals, locals[v])
	}
	return clone
}

func cloneVarDecl(v *ast.VarDecl, parent ast.Scope, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) *ast.VarDecl {
	clone := &ast.VarDecl{
		Name:         v.Name,
		DeclaredType: v.DeclaredType,
		Type:         v.Type,
		IsConst:      v.IsConst,
		IsState:      v.IsState,
		IsExternal:   v.IsExternal,
		Annotations:  v.Annotations,
	}
	clone.Context = v.Context
	clone.Parent = parent
	locals[v] = clone
	clone.Init = cloneExpr(v.Init, params, locals)
	return clone
}

func cloneStmt(s ast.Stmt, blockParent ast.Scope, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) ast.Stmt {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c := &ast.ExprStmt{X: cloneExpr(n.X, params, locals)}
		c.Context = n.Context
		return c
	case *ast.VarDeclStmt:
		c := &ast.VarDeclStmt{Decl: cloneVarDecl(n.Decl, blockParent, params, locals)}
		c.Context = n.Context
		return c
	case *ast.IfStmt:
		c := &ast.IfStmt{Cond: cloneExpr(n.Cond, params, locals)}
		c.Context = n.Context
		c.Then = cloneBlock(n.Then, blockParent, params, locals)
		if n.Else != nil {
			c.Else = cloneBlock(n.Else, blockParent, params, locals)
		}
		return c
	case *ast.WhileStmt:
		c := &ast.WhileStmt{Cond: cloneExpr(n.Cond, params, locals)}
		c.Context = n.Context
		c.Body = cloneBlock(n.Body, blockParent, params, locals)
		return c
	case *ast.DoStmt:
		c := &ast.DoStmt{}
		c.Context = n.Context
		c.Body = cloneBlock(n.Body, blockParent, params, locals)
		c.Cond = cloneExpr(n.Cond, params, locals)
		return c
	case *ast.ForStmt:
		return cloneForStmt(n, blockParent, params, locals)
	case *ast.LoopStmt:
		c := &ast.LoopStmt{}
		c.Context = n.Context
		if n.Count != nil {
			c.Count = cloneExpr(n.Count, params, locals)
		}
		c.Body = cloneBlock(n.Body, blockParent, params, locals)
		return c
	case *ast.BreakStmt:
		c := &ast.BreakStmt{}
		c.Context = n.Context
		return c
	case *ast.ContinueStmt:
		c := &ast.ContinueStmt{}
		c.Context = n.Context
		return c
	case *ast.ReturnStmt:
		c := &ast.ReturnStmt{}
		c.Context = n.Context
		if n.Value != nil {
			c.Value = cloneExpr(n.Value, params, locals)
		}
		return c
	case *ast.Block:
		return cloneBlock(n, blockParent, params, locals)
	}
	return s
}

// cloneForStmt rebuilds a `for` loop's synthetic init scope (the one
// internal/parser's parseFor creates for the loop variable) the same way
// the parser does: a Block nested below the enclosing scope holding just
// the init declaration, with the loop body parented to it.
func cloneForStmt(n *ast.ForStmt, parent ast.Scope, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) *ast.ForStmt {
	c := &ast.ForStmt{}
	c.Context = n.Context

	forScope := &ast.Block{}
	forScope.Context = n.Context
	forScope.Parent = parent

	if n.Init != nil {
		c.Init = cloneStmt(n.Init, forScope, params, locals)
		if vd, ok := c.Init.(*ast.VarDeclStmt); ok {
			forScope.Locals = append(forScope.Locals, vd.Decl)
		}
	}
	if n.Cond != nil {
		c.Cond = cloneExpr(n.Cond, params, locals)
	}
	if n.Step != nil {
		c.Step = cloneExpr(n.Step, params, locals)
	}
	c.Body = cloneBlock(n.Body, forScope, params, locals)
	return c
}

// cloneExpr deep-copies e, rebinding any VariableRef that names one of
// tmpl's own Params or a local this clone has already copied
// (remapTarget); everything outside the function (state variables,
// outer-scope locals, endpoints, other functions) is shared unchanged,
// same as the rest of the resolved AST.
func cloneExpr(e ast.Expr, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.VariableRef:
		c := &ast.VariableRef{Target: remapTarget(n.Target, params, locals)}
		c.Context = n.Context
		return c
	case *ast.ProcessorRef:
		c := &ast.ProcessorRef{Target: n.Target}
		c.Context = n.Context
		return c
	case *ast.InputEndpointRef:
		c := &ast.InputEndpointRef{Target: n.Target}
		c.Context = n.Context
		return c
	case *ast.OutputEndpointRef:
		c := &ast.OutputEndpointRef{Target: n.Target}
		c.Context = n.Context
		return c
	case *ast.ProcessorPropertyRef:
		c := &ast.ProcessorPropertyRef{Instance: n.Instance, Property: n.Property, Endpoint: n.Endpoint}
		c.Context = n.Context
		return c
	case *ast.BuiltinConstant:
		c := &ast.BuiltinConstant{Name: n.Name}
		c.Context = n.Context
		return c
	case *ast.Constant:
		c := &ast.Constant{Value: n.Value}
		c.Context = n.Context
		c.SetType(n.ExprType())
		return c
	case *ast.ConcreteType:
		c := ast.NewConcreteType(n.ExprType())
		c.Context = n.Context
		return c
	case *ast.QualifiedIdentifier:
		c := &ast.QualifiedIdentifier{Parts: n.Parts}
		c.Context = n.Context
		return c
	case *ast.AdvanceCall:
		c := &ast.AdvanceCall{}
		c.Context = n.Context
		return c
	case *ast.StructMemberRef:
		c := &ast.StructMemberRef{Base: cloneExpr(n.Base, params, locals), Member: n.Member, MemberIdx: n.MemberIdx}
		c.Context = n.Context
		return c
	case *ast.ArrayElementRef:
		c := &ast.ArrayElementRef{Base: cloneExpr(n.Base, params, locals), Wrap: n.Wrap}
		c.Context = n.Context
		if n.Index != nil {
			c.Index = cloneExpr(n.Index, params, locals)
		}
		if n.Slice != nil {
			c.Slice = &ast.SliceRange{Low: cloneExpr(n.Slice.Low, params, locals), High: cloneExpr(n.Slice.High, params, locals)}
		}
		return c
	case *ast.CallOrCast:
		c := &ast.CallOrCast{Callee: cloneExpr(n.Callee, params, locals)}
		c.Context = n.Context
		for _, a := range n.Args {
			c.Args = append(c.Args, cloneExpr(a, params, locals))
		}
		return c
	case *ast.FunctionCall:
		c := &ast.FunctionCall{Target: n.Target}
		c.Context = n.Context
		for _, a := range n.Args {
			c.Args = append(c.Args, cloneExpr(a, params, locals))
		}
		return c
	case *ast.TypeCast:
		c := &ast.TypeCast{Target: cloneExpr(n.Target, params, locals), Arg: cloneExpr(n.Arg, params, locals)}
		c.Context = n.Context
		return c
	case *ast.BinaryOp:
		c := &ast.BinaryOp{
			Op: n.Op, Lhs: cloneExpr(n.Lhs, params, locals), Rhs: cloneExpr(n.Rhs, params, locals),
			InsertedCastOnLhs: n.InsertedCastOnLhs, InsertedCastOnRhs: n.InsertedCastOnRhs,
		}
		c.Context = n.Context
		return c
	case *ast.UnaryOp:
		c := &ast.UnaryOp{Op: n.Op, Arg: cloneExpr(n.Arg, params, locals)}
		c.Context = n.Context
		return c
	case *ast.Ternary:
		c := &ast.Ternary{
			Cond: cloneExpr(n.Cond, params, locals), True: cloneExpr(n.True, params, locals), False: cloneExpr(n.False, params, locals),
			InsertedCastOnTrue: n.InsertedCastOnTrue, InsertedCastOnFalse: n.InsertedCastOnFalse,
		}
		c.Context = n.Context
		return c
	case *ast.IncDec:
		c := &ast.IncDec{Op: n.Op, Target: cloneExpr(n.Target, params, locals), Pre: n.Pre}
		c.Context = n.Context
		return c
	case *ast.TypeMetaFunction:
		c := &ast.TypeMetaFunction{Kind: n.Kind, Arg: cloneExpr(n.Arg, params, locals)}
		c.Context = n.Context
		return c
	case *ast.InitialiserList:
		c := &ast.InitialiserList{}
		c.Context = n.Context
		for _, el := range n.Elements {
			c.Elements = append(c.Elements, cloneExpr(el, params, locals))
		}
		return c
	case *ast.WriteToEndpoint:
		c := &ast.WriteToEndpoint{Endpoint: cloneExpr(n.Endpoint, params, locals), Value: cloneExpr(n.Value, params, locals)}
		c.Context = n.Context
		return c
	case *ast.SubscriptWithBrackets:
		c := &ast.SubscriptWithBrackets{Base: cloneExpr(n.Base, params, locals)}
		c.Context = n.Context
		if n.Index != nil {
			c.Index = cloneExpr(n.Index, params, locals)
		}
		if n.Slice != nil {
			c.Slice = &ast.SliceRange{Low: cloneExpr(n.Slice.Low, params, locals), High: cloneExpr(n.Slice.High, params, locals)}
		}
		return c
	case *ast.SubscriptWithChevrons:
		c := &ast.SubscriptWithChevrons{Base: cloneExpr(n.Base, params, locals)}
		c.Context = n.Context
		for _, a := range n.Args {
			c.Args = append(c.Args, cloneExpr(a, params, locals))
		}
		return c
	case *ast.AssignExpr:
		c := &ast.AssignExpr{Op: n.Op, Target: cloneExpr(n.Target, params, locals), Value: cloneExpr(n.Value, params, locals)}
		c.Context = n.Context
		return c
	case *ast.CommaExpr:
		c := &ast.CommaExpr{}
		c.Context = n.Context
		for _, it := range n.Items {
			c.Items = append(c.Items, cloneExpr(it, params, locals))
		}
		return c
	case *ast.StaticAssert:
		c := &ast.StaticAssert{Cond: cloneExpr(n.Cond, params, locals), Msg: n.Msg}
		c.Context = n.Context
		return c
	}
	return e
}

func remapTarget(sym ast.Symbol, params map[*ast.Param]*ast.Param, locals map[*ast.VarDecl]*ast.VarDecl) ast.Symbol {
	switch t := sym.(type) {
	case *ast.Param:
		if p, ok := params[t]; ok {
			return p
		}
	case *ast.VarDecl:
		if v, ok := locals[t]; ok {
			return v
		}
	}
	return sym
}
