package parser

import (
	"soul/internal/ast"
	"soul/internal/ident"
	"soul/internal/token"
	"soul/internal/value"
)

// precedence table, low to high, per the language definition. Binary operators below
// unary/primary; assignment is handled separately (right-assoc, lowest).
var binaryPrec = map[token.Kind]int{
	token.OrOr:  1,
	token.AndAnd: 2,
	token.Pipe:  3,
	token.Caret: 4,
	token.Amp:   5,
	token.Eq:    6, token.Ne: 6,
	token.Lt: 7, token.Le: 7, token.Gt: 7, token.Ge: 7,
	token.Shl: 8, token.Shr: 8, token.UShr: 8,
	token.Plus: 9, token.Minus: 9,
	token.Star: 10, token.Slash: 10, token.Percent: 10,
}

var assignOps = map[token.Kind]bool{
	token.Assign: true, token.PlusAssign: true, token.MinusAssign: true,
	token.StarAssign: true, token.SlashAssign: true, token.PercentAssign: true,
	token.ShlAssign: true, token.ShrAssign: true, token.UShrAssign: true,
	token.XorAssign: true, token.AndAssign: true, token.OrAssign: true,
}

// parseExpr parses a full expression including assignment and the
// `<<` stream-write pseudo-operator, which the parser treats as an
// ordinary left-associative binary operator at `+`/`-` precedence's
// neighbour (Shl) — ConvertStreamOperations (the resolution pipeline) decides
// post-resolution whether it is really a shift or a stream write, since
// that depends on whether the LHS resolved to an output endpoint.
func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

func (p *Parser) parseAssign() ast.Expr {
	lhs := p.parseTernary()
	if assignOps[p.peekKind()] {
		start := p.cur()
		op := p.advance().Kind
		rhs := p.parseAssign() // right-associative
		n := &ast.AssignExpr{Op: op, Target: lhs, Value: rhs}
		n.Context = p.ctxAt(start)
		return n
	}
	return lhs
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseBinary(1)
	if p.at(token.Question) {
		start := p.cur()
		p.advance()
		t := p.parseAssign()
		p.expect(token.Colon)
		f := p.parseAssign()
		n := &ast.Ternary{Cond: cond, True: t, False: f}
		n.Context = p.ctxAt(start)
		return n
	}
	return cond
}

// parseBinary implements precedence climbing. `&&`/`||` are lowered to
// Ternary immediately, per the language definition: "`||` and `&&` are lowered
// immediately to ternaries with constant true/false branches (preserving
// short-circuit semantics in later lowering)."
func (p *Parser) parseBinary(minPrec int) ast.Expr {
	lhs := p.parseUnary()
	for {
		op := p.peekKind()
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			return lhs
		}
		start := p.cur()
		p.advance()
		rhs := p.parseBinary(prec + 1)
		switch op {
		case token.AndAnd:
			n := &ast.Ternary{Cond: lhs, True: rhs, False: p.boolLit(false, start)}
			n.Context = p.ctxAt(start)
			lhs = n
		case token.OrOr:
			n := &ast.Ternary{Cond: lhs, True: p.boolLit(true, start), False: rhs}
			n.Context = p.ctxAt(start)
			lhs = n
		default:
			n := &ast.BinaryOp{Op: op, Lhs: lhs, Rhs: rhs}
			n.Context = p.ctxAt(start)
			lhs = n
		}
	}
}

func (p *Parser) boolLit(b bool, t token.Token) ast.Expr {
	c := &ast.Constant{Value: value.Bool(b)}
	c.Context = p.ctxAt(t)
	return c
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.cur()
	switch p.peekKind() {
	case token.Minus, token.Not, token.Tilde:
		op := p.advance().Kind
		arg := p.parseUnary()
		n := &ast.UnaryOp{Op: op, Arg: arg}
		n.Context = p.ctxAt(start)
		return n
	case token.Inc, token.Dec:
		op := p.advance().Kind
		arg := p.parseUnary()
		n := &ast.IncDec{Op: op, Target: arg, Pre: true}
		n.Context = p.ctxAt(start)
		return n
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		start := p.cur()
		switch p.peekKind() {
		case token.Dot:
			p.advance()
			if meta, ok := p.tryParseTypeMeta(); ok {
				e = p.finishMeta(e, meta, start)
				continue
			}
			member := p.parseIdent()
			n := &ast.StructMemberRef{Base: e, Member: member, MemberIdx: -1}
			n.Context = p.ctxAt(start)
			e = n
		case token.LBracket:
			p.advance()
			n := &ast.ArrayElementRef{Base: e}
			n.Context = p.ctxAt(start)
			if p.at(token.Colon) {
				p.advance()
				high := p.parseExpr()
				n.Slice = &ast.SliceRange{High: high}
			} else {
				idx := p.parseExpr()
				if p.at(token.Colon) {
					p.advance()
					if p.at(token.RBracket) {
						n.Slice = &ast.SliceRange{Low: idx}
					} else {
						high := p.parseExpr()
						n.Slice = &ast.SliceRange{Low: idx, High: high}
					}
				} else {
					n.Index = idx
				}
			}
			p.expect(token.RBracket)
			e = n
		case token.LParen:
			p.advance()
			var args []ast.Expr
			for !p.at(token.RParen) && !p.at(token.EOF) {
				args = append(args, p.parseExpr())
				if p.at(token.Comma) {
					p.advance()
				}
			}
			p.expect(token.RParen)
			n := &ast.CallOrCast{Callee: e, Args: args}
			n.Context = p.ctxAt(start)
			e = n
		case token.Inc, token.Dec:
			op := p.advance().Kind
			n := &ast.IncDec{Op: op, Target: e, Pre: false}
			n.Context = p.ctxAt(start)
			e = n
		case token.Shl:
			// `<<` as a postfix binary op at this precedence level is
			// also reachable from parseBinary; when it directly follows
			// a postfix chain used as a statement (`out << v;`) we still
			// want the general binary-operator path, so we do not
			// special-case it here — fall through.
			return e
		default:
			return e
		}
	}
}

var metaNames = map[string]ast.TypeMetaFunctionKind{
	"type": ast.MetaType, "size": ast.MetaSize, "elementType": ast.MetaElementType,
	"isArray": ast.MetaIsArray, "isVector": ast.MetaIsVector, "isStruct": ast.MetaIsStruct,
	"isInt": ast.MetaIsInt, "isFloat": ast.MetaIsFloat, "isBool": ast.MetaIsBool,
	"isReference": ast.MetaIsReference, "isConst": ast.MetaIsConst,
	"makeConst": ast.MetaMakeConst, "makeReference": ast.MetaMakeReference,
	"primitiveType": ast.MetaPrimitiveType,
}

func (p *Parser) tryParseTypeMeta() (ast.TypeMetaFunctionKind, bool) {
	if !p.at(token.Ident) {
		return 0, false
	}
	if k, ok := metaNames[p.cur().Text]; ok {
		// only consume if this isn't actually a struct member with a
		// coincidentally meta-like name followed by something other than
		// end-of-postfix; SOUL reserves these names so we accept eagerly.
		p.advance()
		return k, true
	}
	return 0, false
}

func (p *Parser) finishMeta(base ast.Expr, kind ast.TypeMetaFunctionKind, start token.Token) ast.Expr {
	n := &ast.TypeMetaFunction{Kind: kind, Arg: base}
	n.Context = p.ctxAt(start)
	return n
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur()
	switch p.peekKind() {
	case token.LParen:
		p.advance()
		e := p.parseExpr()
		if p.at(token.Comma) {
			list := &ast.InitialiserList{Elements: []ast.Expr{e}}
			for p.at(token.Comma) {
				p.advance()
				list.Elements = append(list.Elements, p.parseExpr())
			}
			list.Context = p.ctxAt(start)
			p.expect(token.RParen)
			return list
		}
		p.expect(token.RParen)
		return e
	case token.LBrace:
		p.advance()
		list := &ast.InitialiserList{}
		list.Context = p.ctxAt(start)
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			list.Elements = append(list.Elements, p.parseExpr())
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.expect(token.RBrace)
		return list
	case token.KwTrue:
		p.advance()
		c := &ast.Constant{Value: value.Bool(true)}
		c.Context = p.ctxAt(start)
		return c
	case token.KwFalse:
		p.advance()
		c := &ast.Constant{Value: value.Bool(false)}
		c.Context = p.ctxAt(start)
		return c
	case token.IntLiteral:
		t := p.advance()
		c := &ast.Constant{Value: value.Int32(int32(t.IntVal))}
		c.Context = p.ctxAt(start)
		return c
	case token.LongLiteral:
		t := p.advance()
		c := &ast.Constant{Value: value.Int64(t.IntVal)}
		c.Context = p.ctxAt(start)
		return c
	case token.FloatLiteral:
		t := p.advance()
		c := &ast.Constant{Value: value.Float32(float32(t.FloatVal))}
		c.Context = p.ctxAt(start)
		return c
	case token.DoubleLiteral:
		t := p.advance()
		c := &ast.Constant{Value: value.Float64(t.FloatVal)}
		c.Context = p.ctxAt(start)
		return c
	case token.StringLiteral:
		t := p.advance()
		h := p.strs.Intern(t.Text)
		c := &ast.Constant{Value: value.StringLit(h)}
		c.Context = p.ctxAt(start)
		return c
	case token.KwVoid, token.KwInt, token.KwInt32, token.KwInt64, token.KwFloat,
		token.KwFloat32, token.KwFloat64, token.KwBool, token.KwString, token.KwFixed:
		return p.parseTypeExpr()
	case token.Ident:
		return p.parseIdentOrQualified(start)
	default:
		p.errf("unexpected token %s in expression", p.describeCur())
		p.advance()
		c := &ast.Constant{Value: value.Int32(0)}
		c.Context = p.ctxAt(start)
		return c
	}
}

// parseIdentOrQualified parses a bare or `::`-qualified identifier, and
// recognises the special calls `advance()` and `static_assert(...)`
// (the resolution pipeline) eagerly since they never participate in overload
// resolution.
func (p *Parser) parseIdentOrQualified(start token.Token) ast.Expr {
	name := p.parseIdent()
	if name.String() == "advance" && p.at(token.LParen) && p.peekAt(1).Kind == token.RParen {
		p.advance()
		p.advance()
		n := &ast.AdvanceCall{}
		n.Context = p.ctxAt(start)
		return n
	}
	if name.String() == "static_assert" && p.at(token.LParen) {
		p.advance()
		cond := p.parseExpr()
		msg := ""
		if p.at(token.Comma) {
			p.advance()
			if p.at(token.StringLiteral) {
				msg = p.cur().Text
				p.advance()
			}
		}
		p.expect(token.RParen)
		n := &ast.StaticAssert{Cond: cond, Msg: msg}
		n.Context = p.ctxAt(start)
		return n
	}
	qi := &ast.QualifiedIdentifier{Parts: []*ident.Identifier{name}}
	qi.Context = p.ctxAt(start)
	for p.at(token.DoubleColon) {
		p.advance()
		qi.Parts = append(qi.Parts, p.parseIdent())
	}
	return qi
}
