package parser

import (
	"soul/internal/ast"
	"soul/internal/token"
)

// parseGraph implements the Graph grammar of the language definition: an
// input/output endpoint list, a `let` block declaring processor
// instances, and a `connection` block of wires.
func (p *Parser) parseGraph(ann ast.Annotations) *ast.Graph {
	start := p.cur()
	p.expect(token.KwGraph)
	name := p.parseIdent()
	g := &ast.Graph{Context: p.ctxAt(start), Name: name, Annotations: ann}
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		switch p.peekKind() {
		case token.KwInput, token.KwOutput:
			ep := p.parseEndpoint()
			ep.Parent = g
			g.Endpoints = append(g.Endpoints, ep)
		case token.KwLet:
			p.advance()
			p.expect(token.LBrace)
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				inst := p.parseProcessorInstance()
				inst.Parent = g
				g.Instances = append(g.Instances, inst)
			}
			p.expect(token.RBrace)
		case token.KwConnection:
			p.advance()
			p.expect(token.LBrace)
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				g.Connections = append(g.Connections, p.parseConnection())
			}
			p.expect(token.RBrace)
		default:
			p.errf("unexpected token %s in graph body", p.describeCur())
			p.advance()
		}
	}
	p.expect(token.RBrace)
	return g
}

// parseProcessorInstance parses `name = ProcessorName(args) [*ratio |
// /ratio];` .
func (p *Parser) parseProcessorInstance() *ast.ProcessorInstance {
	start := p.cur()
	name := p.parseIdent()
	p.expect(token.Assign)
	inst := &ast.ProcessorInstance{Context: p.ctxAt(start), Name: name}
	inst.ProcessorNameExpr = p.parseTypeExpr()
	if p.at(token.LParen) {
		p.advance()
		for !p.at(token.RParen) && !p.at(token.EOF) {
			inst.SpecArgs = append(inst.SpecArgs, p.parseExpr())
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.expect(token.RParen)
	}
	if p.at(token.Star) {
		p.advance()
		inst.ClockMultiply = p.parseNumericLiteral()
	} else if p.at(token.Slash) {
		p.advance()
		inst.ClockDivide = p.parseNumericLiteral()
	}
	p.expect(token.Semicolon)
	return inst
}

func (p *Parser) parseNumericLiteral() float64 {
	t := p.cur()
	switch t.Kind {
	case token.IntLiteral, token.LongLiteral:
		p.advance()
		return float64(t.IntVal)
	case token.FloatLiteral, token.DoubleLiteral:
		p.advance()
		return t.FloatVal
	default:
		p.errf("expected a numeric ratio, found %s", p.describeCur())
		return 1
	}
}

var interpNames = map[string]ast.ConnectionInterpolation{
	"linear": ast.InterpLinear, "sinc": ast.InterpSinc, "lagrange": ast.InterpLagrange,
}

// parseConnection parses `[interp] src -> [delay] -> dest;` with exactly
// one source path and one destination path; a comma-separated list of
// endpoints on either side is not accepted.
func (p *Parser) parseConnection() *ast.Connection {
	start := p.cur()
	conn := &ast.Connection{}
	conn.Context = p.ctxAt(start)
	if p.at(token.LBracket) && !isIntLiteralAt(p, 1) {
		p.advance()
		if p.at(token.Ident) {
			if kind, ok := interpNames[p.cur().Text]; ok {
				conn.Interp = kind
			}
			p.advance()
		}
		p.expect(token.RBracket)
	}
	conn.Source = p.parseConnectionEndpointPath()
	p.expect(token.Arrow)
	if p.at(token.LBracket) {
		p.advance()
		if p.at(token.IntLiteral) {
			conn.DelayLength = int(p.cur().IntVal)
			p.advance()
		}
		p.expect(token.RBracket)
		p.expect(token.Arrow)
	}
	conn.Dest = p.parseConnectionEndpointPath()
	p.expect(token.Semicolon)
	return conn
}

func isIntLiteralAt(p *Parser, n int) bool {
	return p.peekAt(n).Kind == token.IntLiteral
}

// parseConnectionEndpointPath parses `name`, `name.channel`, or the bare
// endpoint name of the enclosing graph.
func (p *Parser) parseConnectionEndpointPath() ast.Expr {
	start := p.cur()
	name := p.parseIdent()
	base := &ast.QualifiedIdentifier{}
	base.Context = p.ctxAt(start)
	base.Parts = append(base.Parts, name)
	for p.at(token.Dot) {
		p.advance()
		base.Parts = append(base.Parts, p.parseIdent())
	}
	return base
}
