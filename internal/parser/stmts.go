package parser

import (
	"soul/internal/ast"
	"soul/internal/token"
)

// parseBlock parses `{ stmt* }` as a child scope of parent — every Block
// the parser builds is given its lexical parent immediately, rather than
// patched in afterwards, so internal/resolve's outward scope walk
// (ast.LookupOutward) can rely on Block.Parent being correct the moment
// parsing finishes.
func (p *Parser) parseBlock(parent ast.Scope) *ast.Block {
	start := p.cur()
	b := &ast.Block{}
	b.Context = p.ctxAt(start)
	b.Parent = parent
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		p.parseStatementInto(b)
	}
	p.expect(token.RBrace)
	return b
}

// parseStatementInto parses one statement into b, using b itself as the
// lexical parent for any nested block the statement introduces (an `if`
// inside this block sees this block's locals via the outward walk).
func (p *Parser) parseStatementInto(b *ast.Block) {
	s := p.parseStatement(b)
	if s == nil {
		return
	}
	if vd, ok := s.(*ast.VarDeclStmt); ok {
		vd.Decl.Parent = b
		b.Locals = append(b.Locals, vd.Decl)
	}
	b.Stmts = append(b.Stmts, s)
}

func (p *Parser) parseStatement(parent ast.Scope) ast.Stmt {
	start := p.cur()
	switch p.peekKind() {
	case token.Semicolon:
		p.advance()
		return nil
	case token.LBrace:
		return p.parseBlock(parent)
	case token.KwIf:
		return p.parseIf(parent)
	case token.KwWhile:
		return p.parseWhile(parent)
	case token.KwDo:
		return p.parseDo(parent)
	case token.KwFor:
		return p.parseFor(parent)
	case token.KwLoop:
		return p.parseLoop(parent)
	case token.KwBreak:
		p.advance()
		p.expect(token.Semicolon)
		n := &ast.BreakStmt{}
		n.Context = p.ctxAt(start)
		return n
	case token.KwContinue:
		p.advance()
		p.expect(token.Semicolon)
		n := &ast.ContinueStmt{}
		n.Context = p.ctxAt(start)
		return n
	case token.KwReturn:
		p.advance()
		n := &ast.ReturnStmt{}
		n.Context = p.ctxAt(start)
		if !p.at(token.Semicolon) {
			n.Value = p.parseExpr()
		}
		p.expect(token.Semicolon)
		return n
	case token.KwLet, token.KwVar, token.KwConst, token.KwExternal:
		return p.parseLocalVarDecl()
	default:
		if p.looksLikeLocalVarDecl() {
			return p.parseLocalVarDecl()
		}
		x := p.parseExpr()
		p.expect(token.Semicolon)
		n := &ast.ExprStmt{X: x}
		n.Context = p.ctxAt(start)
		return n
	}
}

// looksLikeLocalVarDecl disambiguates `Type name = init;` from a bare
// expression statement, per the language definition's type-vs-expression tentative
// parse subtlety.
func (p *Parser) looksLikeLocalVarDecl() bool {
	save := p.save()
	defer p.restore(save)
	p.parseTypeExprQuiet()
	return p.at(token.Ident) && (p.peekAt(1).Kind == token.Assign || p.peekAt(1).Kind == token.Semicolon)
}

func (p *Parser) parseLocalVarDecl() ast.Stmt {
	start := p.cur()
	isExternal := false
	if p.at(token.KwExternal) {
		p.advance()
		isExternal = true
	}
	isConst := false
	if p.atAny(token.KwConst, token.KwLet) {
		isConst = true
		p.advance()
	} else if p.at(token.KwVar) {
		p.advance()
	}
	t := p.parseTypeExpr()
	name := p.parseIdent()
	v := &ast.VarDecl{Name: name, DeclaredType: t, IsConst: isConst, IsExternal: isExternal}
	v.Context = p.ctxAt(start)
	if p.at(token.Assign) {
		p.advance()
		v.Init = p.parseExpr()
	}
	p.expect(token.Semicolon)
	n := &ast.VarDeclStmt{Decl: v}
	n.Context = p.ctxAt(start)
	return n
}

func (p *Parser) parseIf(parent ast.Scope) ast.Stmt {
	start := p.cur()
	p.expect(token.KwIf)
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	then := p.parseBlockOrStatement(parent)
	n := &ast.IfStmt{Cond: cond, Then: then}
	n.Context = p.ctxAt(start)
	if p.at(token.KwElse) {
		p.advance()
		n.Else = p.parseBlockOrStatement(parent)
	}
	return n
}

// parseBlockOrStatement wraps a bare (non-brace) statement in a synthetic
// Block so every control-flow construct uniformly owns a Block body, which
// simplifies both scoping and HEART lowering (the language definition always lowers
// to block graphs). The synthetic block's parent is the statement's own
// lexical parent, and it in turn is the parent offered to whatever it
// wraps (so a bare `if (x) if (y) z;` chains scopes correctly).
func (p *Parser) parseBlockOrStatement(parent ast.Scope) *ast.Block {
	if p.at(token.LBrace) {
		return p.parseBlock(parent)
	}
	start := p.cur()
	b := &ast.Block{}
	b.Context = p.ctxAt(start)
	b.Parent = parent
	p.parseStatementInto(b)
	return b
}

func (p *Parser) parseWhile(parent ast.Scope) ast.Stmt {
	start := p.cur()
	p.expect(token.KwWhile)
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	body := p.parseBlockOrStatement(parent)
	n := &ast.WhileStmt{Cond: cond, Body: body}
	n.Context = p.ctxAt(start)
	return n
}

func (p *Parser) parseDo(parent ast.Scope) ast.Stmt {
	start := p.cur()
	p.expect(token.KwDo)
	body := p.parseBlockOrStatement(parent)
	p.expect(token.KwWhile)
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	p.expect(token.Semicolon)
	n := &ast.DoStmt{Body: body, Cond: cond}
	n.Context = p.ctxAt(start)
	return n
}

// parseFor gives its own synthetic init/body scope, since a `for` loop's
// init clause declares a variable visible only to the condition, step and
// body — a block nested one level below the enclosing scope, mirroring
// what parseBlockOrStatement does for if/while/do bodies.
func (p *Parser) parseFor(parent ast.Scope) ast.Stmt {
	start := p.cur()
	p.expect(token.KwFor)
	p.expect(token.LParen)
	n := &ast.ForStmt{}
	n.Context = p.ctxAt(start)
	forScope := &ast.Block{}
	forScope.Context = p.ctxAt(start)
	forScope.Parent = parent
	if !p.at(token.Semicolon) {
		if p.looksLikeLocalVarDecl() {
			n.Init = p.parseLocalVarDecl()
			if vd, ok := n.Init.(*ast.VarDeclStmt); ok {
				vd.Decl.Parent = forScope
				forScope.Locals = append(forScope.Locals, vd.Decl)
			}
		} else {
			x := p.parseExpr()
			es := &ast.ExprStmt{X: x}
			es.Context = ast.Context{Loc: x.Location()}
			n.Init = es
			p.expect(token.Semicolon)
		}
	} else {
		p.advance()
	}
	if !p.at(token.Semicolon) {
		n.Cond = p.parseExpr()
	}
	p.expect(token.Semicolon)
	if !p.at(token.RParen) {
		n.Step = p.parseExpr()
	}
	p.expect(token.RParen)
	n.Body = p.parseBlockOrStatement(forScope)
	return n
}

func (p *Parser) parseLoop(parent ast.Scope) ast.Stmt {
	start := p.cur()
	p.expect(token.KwLoop)
	n := &ast.LoopStmt{}
	n.Context = p.ctxAt(start)
	if p.at(token.LParen) {
		p.advance()
		n.Count = p.parseExpr()
		p.expect(token.RParen)
	}
	n.Body = p.parseBlockOrStatement(parent)
	return n
}
