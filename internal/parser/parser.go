// Package parser implements the structural parser: it turns a pre-lexed
// token stream into a rough AST of namespaces, processors, graphs,
// functions and expressions, enforcing surface grammar only — name
// resolution, typing and constant folding are the resolution engine's
// job (internal/resolve).
//
// Grounded on the reference op-listing interpreter's parseNewOperation / parseFunction /
// processFunction: a hand-written, no-generated-table recursive descent
// over a pre-split token list, rewinding via a saved index when a
// tentative parse fails. SOUL's grammar needs real recursive descent
// rather than the original implementation's one-operator-per-line loop, but the "read tokens
// from a slice with an index, rewind on failure" idiom carries over
// directly (the original implementation's `old_index := set.index` / restore-on-failure
// pattern, mirrored from a reference type-system implementation's
// resolve_decl_value, is the same shape generalised to a full grammar).
package parser

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/lexer"
	"soul/internal/token"
)

type Parser struct {
	file   string
	lx     *lexer.Lexer
	buf    []token.Token // every token lexed so far, buf[pos] is current
	pos    int
	diags  *diag.List
	idents *ident.Pool
	strs   *ident.StringDictionary
}

// Parse parses a complete namespace from src, pulling tokens from the
// lexer one at a time so that pushChevron/popChevron (the language definition: "A
// per-parser counter suppresses `>` tokens inside such brackets") take
// effect exactly at the point in the token stream the parser is at —
// lexing the whole file up front, as the reference op-listing interpreter's run() does
// with bufio.ScanWords, would fix every `>` before the parser ever saw
// the surrounding `<...>` context.
func Parse(file, src string, idents *ident.Pool, strs *ident.StringDictionary, diags *diag.List) *ast.Namespace {
	p := &Parser{file: file, lx: lexer.New(file, src, diags), diags: diags, idents: idents, strs: strs}
	p.fill(1)
	return p.parseTopLevel()
}

// ParseExpr parses a single standalone expression, with no surrounding
// declaration syntax, rather than a whole program.
func ParseExpr(file, src string, idents *ident.Pool, strs *ident.StringDictionary, diags *diag.List) ast.Expr {
	p := &Parser{file: file, lx: lexer.New(file, src, diags), diags: diags, idents: idents, strs: strs}
	p.fill(1)
	return p.parseExpr()
}

// fill ensures at least n tokens are buffered ahead of (and including) the
// current one.
func (p *Parser) fill(n int) {
	for len(p.buf)-p.pos < n {
		t := p.lx.Next()
		p.buf = append(p.buf, t)
		if t.Kind == token.EOF {
			break
		}
	}
}

func (p *Parser) loc() diag.Location { return p.cur().Pos.Loc(p.file) }

func (p *Parser) cur() token.Token {
	p.fill(1)
	return p.buf[p.pos]
}

func (p *Parser) peekKind() token.Kind { return p.cur().Kind }

func (p *Parser) peekAt(n int) token.Token {
	p.fill(n + 1)
	if p.pos+n >= len(p.buf) {
		return p.buf[len(p.buf)-1]
	}
	return p.buf[p.pos+n]
}

func (p *Parser) at(k token.Kind) bool { return p.peekKind() == k }

func (p *Parser) atAny(ks ...token.Kind) bool {
	for _, k := range ks {
		if p.at(k) {
			return true
		}
	}
	return false
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) pushChevron() { p.lx.PushChevron() }
func (p *Parser) popChevron()  { p.lx.PopChevron() }

// save/restore support the tentative-parse rewind the language definition describes
// for type-vs-expression ambiguity. Every lexed token stays in buf, so a
// rewind moves pos back and restores the chevron depth the lexer had
// when the snapshot was taken — otherwise a failed tentative
// parse that pushed/popped chevrons would leave the lexer's suppression
// counter permanently wrong.
type savePoint struct {
	pos          int
	chevronDepth int
}

func (p *Parser) save() savePoint {
	return savePoint{pos: p.pos, chevronDepth: p.lx.ChevronDepth()}
}

func (p *Parser) restore(sp savePoint) {
	p.pos = sp.pos
	p.lx.SetChevronDepth(sp.chevronDepth)
}

func (p *Parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.errf("expected %s, found %s", k, p.describeCur())
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) describeCur() string {
	if p.at(token.Ident) || p.cur().Kind >= token.IntLiteral && p.cur().Kind <= token.StringLiteral {
		return p.cur().Text
	}
	return p.peekKind().String()
}

func (p *Parser) errf(format string, args ...interface{}) {
	p.diags.Addf(p.loc(), diag.ParseError, format, args...)
}

func (p *Parser) intern(name string) *ident.Identifier { return p.idents.Intern(name) }

func (p *Parser) parseIdent() *ident.Identifier {
	if !p.at(token.Ident) {
		p.errf("expected identifier, found %s", p.describeCur())
		return p.intern("<error>")
	}
	name := p.advance().Text
	return p.intern(name)
}

// ctx builds a Context at the given token's location with no parent set
// yet — callers fill Parent once the enclosing scope node exists.
func (p *Parser) ctxAt(t token.Token) ast.Context {
	return ast.Context{Loc: t.Pos.Loc(p.file)}
}
