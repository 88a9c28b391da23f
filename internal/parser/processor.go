package parser

import (
	"soul/internal/ast"
	"soul/internal/token"
)

// parseProcessor implements the Processor grammar of the language definition. It
// enforces none of the structural invariants here (at least one output,
// exactly one `run` function) — those are internal/sanity's job; this
// layer only builds the tree.
func (p *Parser) parseProcessor(ann ast.Annotations) *ast.Processor {
	start := p.cur()
	p.expect(token.KwProcessor)
	name := p.parseIdent()
	proc := &ast.Processor{Context: p.ctxAt(start), Name: name, Annotations: ann}
	if p.at(token.Lt) {
		proc.SpecialisationParams = p.parseSpecialisationParams()
	}
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		p.parseProcessorMember(proc)
	}
	p.expect(token.RBrace)
	return proc
}

func (p *Parser) parseSpecialisationParams() []*ast.Param {
	p.pushChevron()
	defer p.popChevron()
	p.expect(token.Lt)
	var out []*ast.Param
	for !p.at(token.Gt) && !p.at(token.EOF) {
		start := p.cur()
		t := p.parseTypeExpr()
		name := p.parseIdent()
		out = append(out, &ast.Param{Context: p.ctxAt(start), Name: name, DeclaredType: t})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.Gt)
	return out
}

func (p *Parser) parseProcessorMember(proc *ast.Processor) {
	switch p.peekKind() {
	case token.KwInput, token.KwOutput:
		ep := p.parseEndpoint()
		ep.Parent = proc
		proc.Endpoints = append(proc.Endpoints, ep)
	case token.KwStruct:
		s := p.parseStruct()
		s.Parent = proc
		proc.Structs = append(proc.Structs, s)
	case token.KwUsing:
		u := p.parseUsing()
		u.Parent = proc
		proc.Usings = append(proc.Usings, u)
	case token.KwExternal, token.KwLet, token.KwVar, token.KwConst:
		p.parseStateOrConstDecl(nil, proc)
	case token.KwEvent:
		p.advance()
		fn := p.parseFunction(proc, nil)
		proc.Functions = append(proc.Functions, fn)
	case token.DoubleLBracket:
		ann := p.parseAnnotations()
		if p.atAny(token.KwInput, token.KwOutput) {
			ep := p.parseEndpoint()
			ep.Annotations = append(ep.Annotations, ann...)
			ep.Parent = proc
			proc.Endpoints = append(proc.Endpoints, ep)
			return
		}
		fn := p.parseFunction(proc, ann)
		proc.Functions = append(proc.Functions, fn)
	default:
		fn := p.parseFunction(proc, nil)
		proc.Functions = append(proc.Functions, fn)
	}
}

// parseEndpoint parses `input|output stream|event Type[,Type...] name
// [[n]];` (the language definition: "sample-type set, optional array size, optional
// annotations").
func (p *Parser) parseEndpoint() *ast.Endpoint {
	start := p.cur()
	dir := ast.DirInput
	if p.at(token.KwOutput) {
		dir = ast.DirOutput
	}
	p.advance()
	kind := ast.EndpointStream
	if p.at(token.KwEvent) {
		kind = ast.EndpointEvent
		p.advance()
	} else if p.cur().Text == "stream" {
		p.advance()
	}
	ep := &ast.Endpoint{Context: p.ctxAt(start), Direction: dir, Kind: kind}
	ep.SampleTypeExprs = append(ep.SampleTypeExprs, p.parseTypeExpr())
	for p.at(token.Comma) && kind == ast.EndpointEvent {
		p.advance()
		ep.SampleTypeExprs = append(ep.SampleTypeExprs, p.parseTypeExpr())
	}
	ep.Name = p.parseIdent()
	if p.at(token.LBracket) {
		p.advance()
		if p.atAny(token.IntLiteral) {
			ep.ArraySize = int(p.cur().IntVal)
			p.advance()
		}
		p.expect(token.RBracket)
	}
	if p.at(token.DoubleLBracket) {
		ep.Annotations = append(ep.Annotations, p.parseAnnotations()...)
	}
	p.expect(token.Semicolon)
	return ep
}
