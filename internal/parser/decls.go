package parser

import (
	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/token"
	"soul/internal/types"
)

// parseTopLevel implements the language definition: "a namespace implicitly wraps
// imports followed by a sequence of processor | graph | namespace |
// struct | using | function | state-variable declarations."
func (p *Parser) parseTopLevel() *ast.Namespace {
	ns := &ast.Namespace{Context: p.ctxAt(p.cur()), Name: p.intern("<toplevel>")}
	for !p.at(token.EOF) {
		p.parseTopLevelItem(ns)
	}
	return ns
}

func (p *Parser) parseImport() string {
	p.expect(token.KwImport)
	// import paths are dotted identifier chains: import foo.bar.baz;
	var path string
	path = p.parseIdent().String()
	for p.at(token.Dot) {
		p.advance()
		path += "." + p.parseIdent().String()
	}
	p.expect(token.Semicolon)
	return path
}

func (p *Parser) parseTopLevelItem(ns *ast.Namespace) {
	switch p.peekKind() {
	case token.KwImport:
		ns.Imports = append(ns.Imports, p.parseImport())
	case token.KwNamespace:
		sub := p.parseNamespace()
		sub.Parent = ns
		ns.Subs = append(ns.Subs, sub)
	case token.KwProcessor:
		sub := p.parseProcessor(nil)
		sub.Parent = ns
		ns.Subs = append(ns.Subs, sub)
	case token.KwGraph:
		sub := p.parseGraph(nil)
		sub.Parent = ns
		ns.Subs = append(ns.Subs, sub)
	case token.KwStruct:
		s := p.parseStruct()
		s.Parent = ns
		ns.Structs = append(ns.Structs, s)
	case token.KwUsing:
		u := p.parseUsing()
		u.Parent = ns
		ns.Usings = append(ns.Usings, u)
	case token.DoubleLBracket:
		ann := p.parseAnnotations()
		p.parseAnnotatedTopLevelItem(ns, ann)
	case token.KwExternal, token.KwLet, token.KwVar, token.KwConst:
		p.parseStateOrConstDecl(ns, nil)
	default:
		if p.looksLikeFunctionStart() {
			fn := p.parseFunction(ns, nil)
			ns.Functions = append(ns.Functions, fn)
			return
		}
		p.errf("unexpected token %s at top level", p.describeCur())
		p.advance()
	}
}

func (p *Parser) parseAnnotatedTopLevelItem(ns *ast.Namespace, ann ast.Annotations) {
	switch p.peekKind() {
	case token.KwProcessor:
		sub := p.parseProcessor(ann)
		sub.Parent = ns
		ns.Subs = append(ns.Subs, sub)
	case token.KwGraph:
		sub := p.parseGraph(ann)
		sub.Parent = ns
		ns.Subs = append(ns.Subs, sub)
	default:
		fn := p.parseFunction(ns, ann)
		ns.Functions = append(ns.Functions, fn)
	}
}

// parseAnnotations parses `[[ key: value, key2, ... ]]` .
// Keys may be keywords, so we accept either an identifier or a keyword
// token's text as the key.
func (p *Parser) parseAnnotations() ast.Annotations {
	p.expect(token.DoubleLBracket)
	var out ast.Annotations
	for !p.at(token.DoubleRBracket) && !p.at(token.EOF) {
		key := p.cur().Text
		p.advance()
		var val ast.Expr
		if p.at(token.Colon) {
			p.advance()
			val = p.parseExpr()
		}
		out = append(out, ast.Annotation{Key: key, Value: val})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.DoubleRBracket)
	return out
}

func (p *Parser) parseNamespace() *ast.Namespace {
	start := p.cur()
	p.expect(token.KwNamespace)
	name := p.parseIdent()
	ns := &ast.Namespace{Context: p.ctxAt(start), Name: name}
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		p.parseTopLevelItem(ns)
	}
	p.expect(token.RBrace)
	return ns
}

func (p *Parser) parseStruct() *ast.StructDecl {
	start := p.cur()
	p.expect(token.KwStruct)
	name := p.parseIdent()
	info := &types.StructInfo{Name: name.String()}
	decl := &ast.StructDecl{Context: p.ctxAt(start), Name: name, Info: info}
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		memberType := p.parseTypeExpr()
		memberName := p.parseIdent()
		info.Members = append(info.Members, types.Field{Name: memberName.String()})
		decl.MemberExprs = append(decl.MemberExprs, memberType)
		p.expect(token.Semicolon)
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) parseUsing() *ast.UsingDecl {
	start := p.cur()
	p.expect(token.KwUsing)
	name := p.parseIdent()
	p.expect(token.Assign)
	target := p.parseTypeExpr()
	p.expect(token.Semicolon)
	return &ast.UsingDecl{Context: p.ctxAt(start), Name: name, TargetExpr: target}
}

func (p *Parser) looksLikeFunctionStart() bool {
	// a function begins with a return-type expression followed by a name
	// and '('. We tentatively scan: TypeExpr Ident '('.
	save := p.save()
	defer p.restore(save)
	p.parseTypeExprQuiet()
	if !p.at(token.Ident) {
		return false
	}
	p.advance()
	if p.at(token.Lt) {
		p.pushChevron()
		for !p.at(token.Gt) && !p.at(token.EOF) {
			p.advance()
		}
		p.popChevron()
		if !p.at(token.Gt) {
			return false
		}
		p.advance()
	}
	return p.at(token.LParen)
}

// parseTypeExprQuiet parses a type expression while discarding any
// diagnostics it raises — used only for the lookahead in
// looksLikeFunctionStart, which is allowed to fail silently and fall
// through to a better error from the real parse.
func (p *Parser) parseTypeExprQuiet() ast.TypeExpr {
	saved := p.diags
	p.diags = &diag.List{}
	defer func() { p.diags = saved }()
	return p.parseTypeExpr()
}

func (p *Parser) parseFunction(parent ast.Scope, ann ast.Annotations) *ast.FunctionDecl {
	start := p.cur()
	retType := p.parseTypeExpr()
	name := p.parseIdent()
	// A generic function names its wildcard(s) in a trailing `<T, U>` list
	// right after the name: `T max<T>(T a, T b)`. The chevron push/pop here
	// is the same ambiguity-suppression the type-expression parser uses for
	// `float<4>`, just triggered one token later.
	var wildcards []*ident.Identifier
	if p.at(token.Lt) {
		p.advance()
		p.pushChevron()
		for !p.at(token.Gt) && !p.at(token.EOF) {
			wildcards = append(wildcards, p.parseIdent())
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.popChevron()
		p.expect(token.Gt)
	}
	fn := &ast.FunctionDecl{Context: p.ctxAt(start), Name: name, ReturnExpr: retType, Annotations: ann, Wildcards: wildcards}
	fn.Parent = parent
	if ann.Has("run") {
		fn.Role = ast.RoleRun
	}
	if iv, ok := ann.Get("intrin"); ok {
		if id, isID := iv.(*ast.QualifiedIdentifier); isID && len(id.Parts) == 1 {
			fn.IntrinsicOf = id.Parts[0].String()
		} else {
			fn.IntrinsicOf = name.String()
		}
	}
	p.expect(token.LParen)
	for !p.at(token.RParen) && !p.at(token.EOF) {
		fn.Params = append(fn.Params, p.parseParam())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.RParen)
	clearBareWildcardTypes(fn)
	if p.at(token.DoubleLBracket) {
		fn.Annotations = append(fn.Annotations, p.parseAnnotations()...)
		if fn.Annotations.Has("run") {
			fn.Role = ast.RoleRun
		}
	}
	if p.at(token.Semicolon) {
		p.advance() // external/intrinsic declaration with no body
		return fn
	}
	fn.Body = p.parseBlock(bodyScopeOf(fn))
	return fn
}

// bodyScopeOf is a tiny Scope adapter so a function's Block can look
// params up via the normal outward-walk without FunctionDecl itself
// needing to be a full Scope (resolve's specParamScope plays the same
// role for a specialised clone's body).
func bodyScopeOf(f *ast.FunctionDecl) ast.Scope { return (*funcParamScope)(f) }

type funcParamScope ast.FunctionDecl

func (s *funcParamScope) Location() diag.Location { return (*ast.FunctionDecl)(s).Context.Loc }
func (s *funcParamScope) ScopeParent() ast.Scope   { return (*ast.FunctionDecl)(s).Parent }
func (s *funcParamScope) Lookup(name *ident.Identifier) []ast.Symbol {
	var out []ast.Symbol
	for _, prm := range (*ast.FunctionDecl)(s).Params {
		if prm.Name == name {
			out = append(out, prm)
		}
	}
	return out
}

// clearBareWildcardTypes applies the resolve package's "a wildcard-typed
// param/return has no real type expression to resolve" convention (see
// internal/resolve/intrinsics.go, internal/resolve/generics.go) to a
// user-written generic function: a param or return type that names one of
// the function's own wildcards — bare (`T`), or wrapped in one of the
// language definition's §4.6 step 7 unification patterns (`const T`, `T&`,
// `T[]`, `T[N]`, `T<N>`) — is recorded as an *ast.WildcardRef and the type
// expression itself is cleared, rather than left as a QualifiedIdentifier
// (or a TypeMetaFunction/Subscript wrapping one) that resolveQualifiedIdentifiers
// could never resolve, since no declaration exists for a bare wildcard name.
func clearBareWildcardTypes(fn *ast.FunctionDecl) {
	if len(fn.Wildcards) == 0 {
		return
	}
	if w := wildcardPatternOf(fn.ReturnExpr, fn.Wildcards); w != nil {
		fn.ReturnExpr = nil
		fn.ReturnWildcard = w
	}
	for _, prm := range fn.Params {
		if w := wildcardPatternOf(prm.DeclaredType, fn.Wildcards); w != nil {
			prm.DeclaredType = nil
			prm.Wildcard = w
		}
	}
}

// wildcardPatternOf reports which of §4.6 step 7's unification patterns t
// matches against wildcards, or nil if t doesn't name a wildcard at all
// (an ordinary concrete type, or a type built from more than one
// wildcard, which the language definition does not define unification
// for and this front end does not attempt).
func wildcardPatternOf(t ast.TypeExpr, wildcards []*ident.Identifier) *ast.WildcardRef {
	bareWildcard := func(e ast.TypeExpr) *ident.Identifier {
		qi, ok := e.(*ast.QualifiedIdentifier)
		if !ok || len(qi.Parts) != 1 {
			return nil
		}
		for _, w := range wildcards {
			if qi.Parts[0] == w {
				return w
			}
		}
		return nil
	}
	if w := bareWildcard(t); w != nil {
		return &ast.WildcardRef{Pattern: ast.WildcardBare, Name: w}
	}
	switch n := t.(type) {
	case *ast.TypeMetaFunction:
		w := bareWildcard(n.Arg)
		if w == nil {
			return nil
		}
		switch n.Kind {
		case ast.MetaMakeConst:
			return &ast.WildcardRef{Pattern: ast.WildcardConst, Name: w}
		case ast.MetaMakeReference:
			return &ast.WildcardRef{Pattern: ast.WildcardReference, Name: w}
		}
		return nil
	case *ast.SubscriptWithBrackets:
		w := bareWildcard(n.Base)
		if w == nil {
			return nil
		}
		if n.Index == nil {
			return &ast.WildcardRef{Pattern: ast.WildcardUnsizedArray, Name: w}
		}
		c, ok := n.Index.(*ast.Constant)
		if !ok {
			return nil
		}
		return &ast.WildcardRef{Pattern: ast.WildcardFixedArray, Name: w, Size: int(c.Value.AsInt())}
	case *ast.SubscriptWithChevrons:
		w := bareWildcard(n.Base)
		if w == nil || len(n.Args) != 1 {
			return nil
		}
		c, ok := n.Args[0].(*ast.Constant)
		if !ok {
			return nil
		}
		return &ast.WildcardRef{Pattern: ast.WildcardVector, Name: w, Size: int(c.Value.AsInt())}
	}
	return nil
}

func (p *Parser) parseParam() *ast.Param {
	start := p.cur()
	t := p.parseTypeExpr()
	name := p.parseIdent()
	return &ast.Param{Context: p.ctxAt(start), Name: name, DeclaredType: t}
}

// parseStateOrConstDecl parses `[external] [const|let|var] [Type] name [=
// init];` at namespace or processor scope. `let`/`var` may omit the type
// entirely (`let x = 2 + 3 * 4;`), inferring it from the initialiser
// during resolution (materializeVarDecl) — a bare name parses the same
// way a type name does, so the first token parsed as a type expression is
// reinterpreted as the variable's name whenever no second identifier
// follows it.
func (p *Parser) parseStateOrConstDecl(ns *ast.Namespace, proc *ast.Processor) {
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
	var declType ast.TypeExpr
	var name *ident.Identifier
	if p.at(token.Ident) {
		declType = t
		name = p.parseIdent()
	} else if qi, ok := t.(*ast.QualifiedIdentifier); ok && len(qi.Parts) == 1 {
		name = qi.Parts[0]
	} else {
		p.errf("expected a variable name, found %s", p.describeCur())
		name = p.intern("<error>")
	}
	v := &ast.VarDecl{Context: p.ctxAt(start), Name: name, DeclaredType: declType, IsConst: isConst, IsExternal: isExternal}
	if p.at(token.Assign) {
		p.advance()
		v.Init = p.parseExpr()
	}
	p.expect(token.Semicolon)
	if proc != nil {
		v.IsState = true
		proc.StateVars = append(proc.StateVars, v)
	} else {
		ns.Constants = append(ns.Constants, v)
	}
}
