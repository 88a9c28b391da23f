package heart

import (
	"strconv"
	"strings"

	"soul/internal/ast"
	"soul/internal/ident"
	"soul/internal/types"
)

// rawExpr wraps a verbatim captured token span from a HEART dump. Decoding
// never tries to reconstruct the precise resolved node (VariableRef vs.
// QualifiedIdentifier, FunctionCall vs. CallOrCast, ...) that produced the
// original text — the round-trip law only promises hash equality, and a
// rawExpr re-emits byte-for-byte what it was parsed from, which is enough
// for Dump(Parse(Dump(m))) == Dump(m) without reimplementing resolution.
type rawExpr struct {
	ast.Context
	text string
}

func (r *rawExpr) ExprNode()             {}
func (r *rawExpr) ExprType() *types.Type { return nil }

// cursor walks the whitespace-separated token stream a Dump produces.
// Every token in that stream — punctuation, tags, atoms — is separated by
// exactly one space, so splitting on whitespace is a complete tokeniser;
// no character-level lexer is needed for a format this repo controls both
// ends of.
type cursor struct {
	toks []string
	pos  int
}

func (c *cursor) peek() string {
	if c.pos >= len(c.toks) {
		return ""
	}
	return c.toks[c.pos]
}

func (c *cursor) next() string {
	t := c.peek()
	c.pos++
	return t
}

func (c *cursor) expect(tok string) {
	if c.next() != tok {
		// A malformed dump can't be recovered from structurally; the
		// caller only ever feeds this parser text Dump itself produced.
		c.pos--
	}
}

// span captures the exact token text of the next complete form — either a
// single atom, or a "(" ... ")" balanced group — advancing past it.
func (c *cursor) span() string {
	start := c.pos
	if c.peek() == "(" {
		depth := 0
		for {
			t := c.next()
			if t == "(" {
				depth++
			} else if t == ")" {
				depth--
				if depth == 0 {
					break
				}
			} else if t == "" {
				break
			}
		}
	} else {
		c.next()
	}
	return strings.Join(c.toks[start:c.pos], " ")
}

// skipForm discards the next complete form the same way span does,
// without retaining its text.
func (c *cursor) skipForm() { c.span() }

func parseExprOrNone(c *cursor) ast.Expr {
	if c.peek() == "NONE" {
		c.next()
		return nil
	}
	return &rawExpr{text: c.span()}
}

func parseExpr(c *cursor) ast.Expr {
	return &rawExpr{text: c.span()}
}

// parseType is dumpType's inverse, reconstructing a *types.Type purely
// from its public constructors. Struct types lose their original member
// layout — a decoded struct type is a same-named stand-in, not the
// original *types.StructInfo — which matters for nothing a hash-only
// round trip needs.
func parseType(tok string) *types.Type {
	if tok == "_" {
		return nil
	}
	isConst := false
	if strings.HasPrefix(tok, "C") {
		isConst = true
		tok = tok[1:]
	}
	isRef := false
	if strings.HasSuffix(tok, "&") {
		isRef = true
		tok = tok[:len(tok)-1]
	}
	t := parseTypeBody(tok)
	if t == nil {
		return nil
	}
	if isConst {
		t = t.WithConst()
	}
	if isRef {
		t = t.WithReference()
	}
	return t
}

func parseTypeBody(tok string) *types.Type {
	parts := strings.SplitN(tok, ":", 3)
	if len(parts) == 0 {
		return nil
	}
	switch parts[0] {
	case "P":
		return types.Prim(primitiveFromName(parts[1]))
	case "V":
		size, _ := strconv.Atoi(parts[2])
		t, err := types.Vector(primitiveFromName(parts[1]), size)
		if err != nil {
			return types.Prim(types.Void)
		}
		return t
	case "A":
		elem := parseType(parts[2])
		if parts[1] == "_" {
			return types.UnsizedArray(elem)
		}
		size, _ := strconv.Atoi(parts[1])
		t, err := types.FixedArray(elem, size)
		if err != nil {
			return types.Prim(types.Void)
		}
		return t
	case "B":
		limit, _ := strconv.Atoi(parts[2])
		t, err := types.BoundedInt(limit, parts[1] == "wrap")
		if err != nil {
			return types.Prim(types.Void)
		}
		return t
	case "S":
		return types.StructRef(&types.StructInfo{Name: parts[1]})
	default:
		return types.Prim(types.Void)
	}
}

func primitiveFromName(name string) types.Primitive {
	switch name {
	case "void":
		return types.Void
	case "bool":
		return types.Bool
	case "int32":
		return types.Int32
	case "int64":
		return types.Int64
	case "float32":
		return types.Float32
	case "float64":
		return types.Float64
	case "string":
		return types.StringLiteral
	default:
		return types.Void
	}
}

// syntheticSymbol returns a *ast.VarDecl standing in for whatever symbol a
// decoded VarDest/VariableRef named — Parse never has the original
// *ast.VarDecl/*ast.Param to point back at, only the name Dump printed.
func syntheticSymbol(idents *ident.Pool, name string) ast.Symbol {
	return &ast.VarDecl{Name: idents.Intern(name)}
}

func parseDest(c *cursor, idents *ident.Pool) Dest {
	c.expect("(")
	tag := c.next()
	switch tag {
	case "VAR":
		name := c.next()
		c.expect(")")
		return VarDest{Target: syntheticSymbol(idents, name)}
	case "ELEM":
		base := parseDest(c, idents)
		fixed, _ := strconv.Atoi(c.next())
		dyn := parseExprOrNone(c)
		wrap := c.next() == "true"
		member := c.next()
		if member == "_" {
			member = ""
		}
		c.expect(")")
		return SubElementDest{Base: base, FixedIndex: fixed, DynIndex: dyn, Wrap: wrap, Member: member}
	default:
		c.expect(")")
		return VarDest{Target: syntheticSymbol(idents, "<error>")}
	}
}

func parseStmt(c *cursor, idents *ident.Pool) Stmt {
	c.expect("(")
	tag := c.next()
	switch tag {
	case "ASSIGN":
		d := parseDest(c, idents)
		v := parseExpr(c)
		c.expect(")")
		return &Assign{Dest: d, Value: v}
	case "EVAL":
		e := parseExpr(c)
		c.expect(")")
		return &Eval{Expr: e}
	case "ADVANCE":
		c.expect(")")
		return &AdvanceClock{}
	default:
		c.expect(")")
		return &Eval{Expr: &rawExpr{text: "( UNKNOWN )"}}
	}
}

func parseTerm(c *cursor, blocks map[string]*Block) Terminator {
	c.expect("(")
	tag := c.next()
	switch tag {
	case "RETURN":
		v := parseExprOrNone(c)
		c.expect(")")
		return &Return{Value: v}
	case "BRANCH":
		label := c.next()
		c.expect(")")
		return &Branch{Target: blocks[label]}
	case "BRANCHIF":
		cond := parseExpr(c)
		t := c.next()
		f := c.next()
		c.expect(")")
		return &BranchIf{Cond: cond, True: blocks[t], False: blocks[f]}
	default:
		c.expect(")")
		return &Return{}
	}
}

func orEmpty(s string) string {
	if s == "_" {
		return ""
	}
	return s
}

func parseEndpoint(c *cursor) *Endpoint {
	c.expect("(")
	c.expect("EP")
	e := &Endpoint{Name: c.next()}
	switch c.next() {
	case "STREAM":
		e.Kind = ast.EndpointStream
	case "EVENT":
		e.Kind = ast.EndpointEvent
	}
	c.expect("(")
	c.expect("TYPES")
	for c.peek() != ")" {
		e.SampleTypes = append(e.SampleTypes, parseType(c.next()))
	}
	c.expect(")")
	size, _ := strconv.Atoi(c.next())
	e.ArraySize = size
	c.expect(")")
	return e
}

func parseFunction(c *cursor, idents *ident.Pool) *Function {
	c.expect("(")
	c.expect("FUNC")
	f := &Function{Name: c.next()}
	c.expect("(")
	c.expect("PARAMS")
	for c.peek() != ")" {
		c.expect("(")
		c.expect("P")
		name := c.next()
		typ := parseType(c.next())
		c.expect(")")
		f.Params = append(f.Params, &ast.Param{Name: idents.Intern(name), Type: typ})
	}
	c.expect(")")
	f.ReturnType = parseType(c.next())
	c.expect("(")
	c.expect("BLOCKS")

	// Pre-scan (on a throwaway cursor copy) to allocate every block by
	// label up front, so a BRANCH/BRANCHIF encountered while parsing an
	// earlier block can still resolve a target defined later in the list.
	blocks := map[string]*Block{}
	scan := *c
	for scan.peek() != ")" {
		scan.expect("(")
		scan.expect("BLOCK")
		label := scan.next()
		blocks[label] = &Block{Label: label}
		scan.skipForm() // STMTS list
		scan.skipForm() // terminator
		scan.expect(")")
	}

	for c.peek() != ")" {
		c.expect("(")
		c.expect("BLOCK")
		label := c.next()
		blk := blocks[label]
		c.expect("(")
		c.expect("STMTS")
		for c.peek() != ")" {
			blk.Stmts = append(blk.Stmts, parseStmt(c, idents))
		}
		c.expect(")")
		blk.Term = parseTerm(c, blocks)
		c.expect(")")
		f.Blocks = append(f.Blocks, blk)
	}
	c.expect(")") // close BLOCKS
	c.expect(")") // close FUNC
	return f
}

// ParseModuleAt decodes one "( MODULE ... )" form starting at toks[i],
// returning the Module and the index just past its closing paren.
func ParseModuleAt(toks []string, i int, idents *ident.Pool) (*Module, int) {
	c := &cursor{toks: toks, pos: i}
	c.expect("(")
	c.expect("MODULE")
	m := &Module{Name: c.next()}
	c.next() // PROC | GRAPH, implied by which slices end up populated

	c.expect("(")
	c.expect("INPUTS")
	for c.peek() != ")" {
		m.Inputs = append(m.Inputs, parseEndpoint(c))
	}
	c.expect(")")

	c.expect("(")
	c.expect("OUTPUTS")
	for c.peek() != ")" {
		m.Outputs = append(m.Outputs, parseEndpoint(c))
	}
	c.expect(")")

	c.expect("(")
	c.expect("STATEVARS")
	for c.peek() != ")" {
		c.expect("(")
		c.expect("SV")
		name := c.next()
		typ := parseType(c.next())
		init := parseExprOrNone(c)
		c.expect(")")
		m.StateVars = append(m.StateVars, &StateVar{Name: name, Type: typ, Init: init})
	}
	c.expect(")")

	c.expect("(")
	c.expect("FUNCTIONS")
	for c.peek() != ")" {
		m.Functions = append(m.Functions, parseFunction(c, idents))
	}
	c.expect(")")

	c.expect("(")
	c.expect("INSTANCES")
	for c.peek() != ")" {
		c.expect("(")
		c.expect("INST")
		inst := &Instance{Name: c.next(), ModuleName: c.next()}
		c.expect("(")
		c.expect("ARGS")
		for c.peek() != ")" {
			inst.SpecArgs = append(inst.SpecArgs, parseExpr(c))
		}
		c.expect(")")
		inst.ClockMultiply, _ = strconv.ParseFloat(c.next(), 64)
		inst.ClockDivide, _ = strconv.ParseFloat(c.next(), 64)
		c.expect(")")
		m.Instances = append(m.Instances, inst)
	}
	c.expect(")")

	c.expect("(")
	c.expect("CONNECTIONS")
	for c.peek() != ")" {
		c.expect("(")
		c.expect("CONN")
		conn := &Connection{
			SourceInstance: orEmpty(c.next()),
			SourceProperty: c.next(),
			DestInstance:   orEmpty(c.next()),
			DestProperty:   c.next(),
		}
		conn.DelayLength, _ = strconv.Atoi(c.next())
		conn.Interp = interpFromName(c.next())
		c.expect(")")
		m.Connections = append(m.Connections, conn)
	}
	c.expect(")")

	c.expect(")") // close MODULE
	return m, c.pos
}

func interpFromName(name string) ast.ConnectionInterpolation {
	switch name {
	case "linear":
		return ast.InterpLinear
	case "sinc":
		return ast.InterpSinc
	case "lagrange":
		return ast.InterpLagrange
	default:
		return ast.InterpNone
	}
}

// Parse decodes a single module's full dump text, as produced by Dump.
func Parse(text string, idents *ident.Pool) *Module {
	m, _ := ParseModuleAt(strings.Fields(text), 0, idents)
	return m
}
