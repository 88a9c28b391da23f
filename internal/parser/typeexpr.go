package parser

import (
	"soul/internal/ast"
	"soul/internal/ident"
	"soul/internal/token"
	"soul/internal/types"
)

// parseTypeExpr parses a type-position expression : a
// primitive keyword, a vector/array/bounded-int shorthand, a qualified
// name (struct/using alias), or `wrap<N>`/`clamp<N>` — the latter two only
// act as type constructors when followed by `<`, per the language definition's "the
// built-in names `wrap` and `clamp` behave as type constructors when
// followed by `<N>`, otherwise as regular identifiers."
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	base := p.parseTypeExprAtom()
	for {
		switch {
		case p.at(token.LBracket):
			base = p.parseArraySuffix(base)
		case p.at(token.Lt):
			base = p.parseChevronSuffix(base)
		case p.at(token.Amp):
			// `&` is terminal, same as the reference parser's own
			// parseArrayTypeSuffixes: a reference marker never takes a
			// further array/vector suffix.
			return p.parseReferenceSuffix(base)
		case p.at(token.KwConst) && isTypeAtomStart(p.peekAt(1)):
			// `const` may also precede the type it qualifies; handled in
			// parseTypeExprAtom for the common case of a leading const,
			// this branch exists only so stray trailing const parses
			// without a dedicated error.
			return base
		default:
			return base
		}
	}
}

func isTypeAtomStart(t token.Token) bool {
	switch t.Kind {
	case token.Ident, token.KwVoid, token.KwInt, token.KwInt32, token.KwInt64,
		token.KwFloat, token.KwFloat32, token.KwFloat64, token.KwBool, token.KwString,
		token.KwFixed:
		return true
	}
	return false
}

func (p *Parser) parseTypeExprAtom() ast.TypeExpr {
	start := p.cur()
	isConst := false
	if p.at(token.KwConst) {
		p.advance()
		isConst = true
	}
	var t ast.TypeExpr
	switch p.peekKind() {
	case token.KwVoid:
		p.advance()
		t = ast.NewConcreteType(types.VoidT)
	case token.KwBool:
		p.advance()
		t = ast.NewConcreteType(types.BoolT)
	case token.KwInt, token.KwInt32:
		p.advance()
		t = ast.NewConcreteType(types.Int32T)
	case token.KwInt64:
		p.advance()
		t = ast.NewConcreteType(types.Int64T)
	case token.KwFloat, token.KwFloat32:
		p.advance()
		t = ast.NewConcreteType(types.Float32T)
	case token.KwFloat64:
		p.advance()
		t = ast.NewConcreteType(types.Float64T)
	case token.KwString:
		p.advance()
		t = ast.NewConcreteType(types.StringT)
	case token.KwFixed:
		// `fixed` is accepted as a bare keyword synonym for a 32-bit
		// fixed-point placeholder type, represented for this front end as
		// plain int32, with nothing recording that it was written `fixed`; the language definition
		// does not define its bit layout, only that the token is
		// reserved.
		p.advance()
		t = ast.NewConcreteType(types.Int32T)
	case token.Ident:
		name := p.parseIdent()
		qi := &ast.QualifiedIdentifier{Parts: []*ident.Identifier{name}}
		qi.Context = p.ctxAt(start)
		for p.at(token.DoubleColon) {
			p.advance()
			qi.Parts = append(qi.Parts, p.parseIdent())
		}
		t = qi
	default:
		p.errf("expected a type, found %s", p.describeCur())
		t = ast.NewConcreteType(types.VoidT)
	}
	if isConst {
		if ct, ok := t.(*ast.ConcreteType); ok && ct.ExprType() != nil {
			t = ast.NewConcreteType(ct.ExprType().WithConst())
		} else {
			tmf := &ast.TypeMetaFunction{Kind: ast.MetaMakeConst, Arg: t}
			tmf.Context = p.ctxAt(start)
			t = tmf
		}
	}
	return t
}

// parseArraySuffix parses `T[]` (unsized array) or `T[N]` (fixed array)
// into a `SubscriptWithBrackets` node, since in type position the parser
// cannot yet tell whether `base` is a type or a value — TypeResolver (the
// resolution pipeline) turns it into an array type or an ArrayElementRef
// once `base` is resolved. Value-position subscripts are parsed by
// parsePostfix straight into an ArrayElementRef.
func (p *Parser) parseArraySuffix(base ast.TypeExpr) ast.TypeExpr {
	start := p.cur()
	p.expect(token.LBracket)
	sub := &ast.SubscriptWithBrackets{Base: base}
	sub.Context = p.ctxAt(start)
	if !p.at(token.RBracket) {
		sub.Index = p.parseExpr()
	}
	p.expect(token.RBracket)
	return sub
}

// parseChevronSuffix parses `T<N>` — a vector size on a primitive, a
// bounded-int limit on `wrap`/`clamp`, or a generic instantiation.
func (p *Parser) parseChevronSuffix(base ast.TypeExpr) ast.TypeExpr {
	start := p.cur()
	p.pushChevron()
	defer p.popChevron()
	p.expect(token.Lt)
	sub := &ast.SubscriptWithChevrons{Base: base}
	sub.Context = p.ctxAt(start)
	for !p.at(token.Gt) && !p.at(token.EOF) {
		sub.Args = append(sub.Args, p.parseExpr())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.Gt)
	return sub
}

// parseReferenceSuffix parses a trailing `&` after a type expression — the
// reference-parameter marker (`T& x`, the generic unification pattern
// `T&` of the language definition's §4.6 step 7). Grounded on the
// original parser's parseArrayTypeSuffixes, which turns the same trailing
// `&` into a TypeMetaFunction(makeReference) node, the same shape a
// leading `const` produces via MetaMakeConst.
func (p *Parser) parseReferenceSuffix(base ast.TypeExpr) ast.TypeExpr {
	start := p.cur()
	p.expect(token.Amp)
	if ct, ok := base.(*ast.ConcreteType); ok && ct.ExprType() != nil {
		return ast.NewConcreteType(ct.ExprType().WithReference())
	}
	tmf := &ast.TypeMetaFunction{Kind: ast.MetaMakeReference, Arg: base}
	tmf.Context = p.ctxAt(start)
	return tmf
}

// parseTypeExprNode is an alias identical to parseTypeExpr; nothing in
// the package calls it.
func (p *Parser) parseTypeExprNode() ast.TypeExpr { return p.parseTypeExpr() }
