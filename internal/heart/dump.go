package heart

import (
	"fmt"
	"strings"

	"soul/internal/ast"
	"soul/internal/types"
	"soul/internal/value"
)

// Dump renders m as the textual HEART form the language definition's
// toHEART()/createFromHEART() round trip promises: a token-spaced,
// fully-parenthesised S-expression rather than a line-oriented listing,
// chosen because types.Type and value.Value deliberately expose no public
// fields (only constructor and accessor methods, to hold their
// immutable-after-construction invariant) — any format has to be built on
// those accessors and a matching hand-written reader rather than
// encoding/json or encoding/gob reflecting over either type.
//
// Parse is Dump's inverse. Round-tripping does not promise pointer
// identity with the Module that produced the text — a decoded VarDest's
// Target is a freshly allocated *ast.VarDecl matched by name, not the
// original symbol — only that Dump(Parse(Dump(m))) reproduces the same
// text byte for byte, which is what Program.Hash needs.
func Dump(m *Module) string {
	var b strings.Builder
	b.WriteString("( MODULE ")
	writeAtom(&b, m.Name)
	b.WriteString(" ")
	if len(m.Functions) > 0 || len(m.StateVars) > 0 {
		b.WriteString("PROC")
	} else {
		b.WriteString("GRAPH")
	}
	b.WriteString(" ( INPUTS")
	for _, e := range m.Inputs {
		dumpEndpoint(&b, e)
	}
	b.WriteString(" ) ( OUTPUTS")
	for _, e := range m.Outputs {
		dumpEndpoint(&b, e)
	}
	b.WriteString(" ) ( STATEVARS")
	for _, sv := range m.StateVars {
		b.WriteString(" ( SV ")
		writeAtom(&b, sv.Name)
		b.WriteString(" ")
		writeAtom(&b, dumpType(sv.Type))
		b.WriteString(" ")
		dumpExprOrNone(&b, sv.Init)
		b.WriteString(" )")
	}
	b.WriteString(" ) ( FUNCTIONS")
	for _, f := range m.Functions {
		dumpFunction(&b, f)
	}
	b.WriteString(" ) ( INSTANCES")
	for _, inst := range m.Instances {
		b.WriteString(" ( INST ")
		writeAtom(&b, inst.Name)
		b.WriteString(" ")
		writeAtom(&b, inst.ModuleName)
		b.WriteString(" ( ARGS")
		for _, a := range inst.SpecArgs {
			b.WriteString(" ")
			dumpExpr(&b, a)
		}
		b.WriteString(" ) ")
		fmt.Fprintf(&b, "%g %g", inst.ClockMultiply, inst.ClockDivide)
		b.WriteString(" )")
	}
	b.WriteString(" ) ( CONNECTIONS")
	for _, c := range m.Connections {
		b.WriteString(" ( CONN ")
		writeAtom(&b, orUnderscore(c.SourceInstance))
		b.WriteString(" ")
		writeAtom(&b, c.SourceProperty)
		b.WriteString(" ")
		writeAtom(&b, orUnderscore(c.DestInstance))
		b.WriteString(" ")
		writeAtom(&b, c.DestProperty)
		fmt.Fprintf(&b, " %d ", c.DelayLength)
		writeAtom(&b, interpName(c.Interp))
		b.WriteString(" )")
	}
	b.WriteString(" ) )")
	return b.String()
}

func orUnderscore(s string) string {
	if s == "" {
		return "_"
	}
	return s
}

func dumpEndpoint(b *strings.Builder, e *Endpoint) {
	b.WriteString(" ( EP ")
	writeAtom(b, e.Name)
	b.WriteString(" ")
	if e.Kind == ast.EndpointStream {
		b.WriteString("STREAM")
	} else {
		b.WriteString("EVENT")
	}
	b.WriteString(" ( TYPES")
	for _, t := range e.SampleTypes {
		b.WriteString(" ")
		writeAtom(b, dumpType(t))
	}
	fmt.Fprintf(b, " ) %d )", e.ArraySize)
}

func dumpFunction(b *strings.Builder, f *Function) {
	b.WriteString(" ( FUNC ")
	writeAtom(b, f.Name)
	b.WriteString(" ( PARAMS")
	for _, p := range f.Params {
		b.WriteString(" ( P ")
		writeAtom(b, p.Name.String())
		b.WriteString(" ")
		writeAtom(b, dumpType(p.Type))
		b.WriteString(" )")
	}
	b.WriteString(" ) ")
	writeAtom(b, dumpType(f.ReturnType))
	b.WriteString(" ( BLOCKS")
	for _, blk := range f.Blocks {
		b.WriteString(" ( BLOCK ")
		writeAtom(b, blk.Label)
		b.WriteString(" ( STMTS")
		for _, s := range blk.Stmts {
			b.WriteString(" ")
			dumpStmt(b, s)
		}
		b.WriteString(" ) ")
		dumpTerm(b, blk.Term)
		b.WriteString(" )")
	}
	b.WriteString(" ) )")
}

func dumpStmt(b *strings.Builder, s Stmt) {
	switch st := s.(type) {
	case *Assign:
		b.WriteString("( ASSIGN ")
		dumpDest(b, st.Dest)
		b.WriteString(" ")
		dumpExpr(b, st.Value)
		b.WriteString(" )")
	case *Eval:
		b.WriteString("( EVAL ")
		dumpExpr(b, st.Expr)
		b.WriteString(" )")
	case *AdvanceClock:
		b.WriteString("( ADVANCE )")
	default:
		b.WriteString("( UNKNOWNSTMT )")
	}
}

func dumpTerm(b *strings.Builder, t Terminator) {
	switch tt := t.(type) {
	case *Return:
		b.WriteString("( RETURN ")
		dumpExprOrNone(b, tt.Value)
		b.WriteString(" )")
	case *Branch:
		b.WriteString("( BRANCH ")
		writeAtom(b, tt.Target.Label)
		b.WriteString(" )")
	case *BranchIf:
		b.WriteString("( BRANCHIF ")
		dumpExpr(b, tt.Cond)
		b.WriteString(" ")
		writeAtom(b, tt.True.Label)
		b.WriteString(" ")
		writeAtom(b, tt.False.Label)
		b.WriteString(" )")
	default:
		b.WriteString("( UNKNOWNTERM )")
	}
}

func dumpDest(b *strings.Builder, d Dest) {
	switch dd := d.(type) {
	case VarDest:
		b.WriteString("( VAR ")
		writeAtom(b, dd.Target.SymbolName().String())
		b.WriteString(" )")
	case SubElementDest:
		b.WriteString("( ELEM ")
		dumpDest(b, dd.Base)
		fmt.Fprintf(b, " %d ", dd.FixedIndex)
		dumpExprOrNone(b, dd.DynIndex)
		fmt.Fprintf(b, " %v ", dd.Wrap)
		writeAtom(b, orUnderscore(dd.Member))
		b.WriteString(" )")
	default:
		b.WriteString("( UNKNOWNDEST )")
	}
}

func dumpExprOrNone(b *strings.Builder, e ast.Expr) {
	if e == nil {
		b.WriteString("NONE")
		return
	}
	dumpExpr(b, e)
}

// dumpExpr prints a fully tagged, fully parenthesised rendering of e.
// Every compound form starts with "(" and a tag keyword and ends with
// ")", so the reader never needs to know operator precedence or
// associativity — it just matches parens.
func dumpExpr(b *strings.Builder, e ast.Expr) {
	switch ex := e.(type) {
	case *rawExpr:
		b.WriteString(ex.text)
	case *ast.Constant:
		writeAtom(b, dumpValue(ex.Value))
	case *ast.BuiltinConstant:
		b.WriteString("( BUILTIN ")
		writeAtom(b, ex.Name)
		b.WriteString(" )")
	case *ast.VariableRef:
		b.WriteString("( VAR ")
		writeAtom(b, ex.Target.SymbolName().String())
		b.WriteString(" )")
	case *ast.QualifiedIdentifier:
		parts := make([]string, len(ex.Parts))
		for i, p := range ex.Parts {
			parts[i] = p.String()
		}
		b.WriteString("( VAR ")
		writeAtom(b, strings.Join(parts, "::"))
		b.WriteString(" )")
	case *ast.InputEndpointRef:
		b.WriteString("( IN ")
		writeAtom(b, ex.Target.Name.String())
		b.WriteString(" )")
	case *ast.OutputEndpointRef:
		b.WriteString("( OUT ")
		writeAtom(b, ex.Target.Name.String())
		b.WriteString(" )")
	case *ast.ProcessorPropertyRef:
		b.WriteString("( PROP ")
		writeAtom(b, ex.Instance.Name.String())
		b.WriteString(" ")
		writeAtom(b, ex.Property.String())
		b.WriteString(" )")
	case *ast.StructMemberRef:
		b.WriteString("( MEMBER ")
		dumpExpr(b, ex.Base)
		b.WriteString(" ")
		writeAtom(b, ex.Member.String())
		b.WriteString(" )")
	case *ast.ArrayElementRef:
		if ex.Slice != nil {
			b.WriteString("( SLICE ")
			dumpExpr(b, ex.Base)
			b.WriteString(" ")
			dumpExprOrNone(b, ex.Slice.Low)
			b.WriteString(" ")
			dumpExprOrNone(b, ex.Slice.High)
			b.WriteString(" )")
			return
		}
		if ex.Wrap {
			b.WriteString("( WRAPIDX ")
		} else {
			b.WriteString("( IDX ")
		}
		dumpExpr(b, ex.Base)
		b.WriteString(" ")
		dumpExpr(b, ex.Index)
		b.WriteString(" )")
	case *ast.FunctionCall:
		b.WriteString("( CALL ")
		writeAtom(b, ex.Target.Name.String())
		for _, a := range ex.Args {
			b.WriteString(" ")
			dumpExpr(b, a)
		}
		b.WriteString(" )")
	case *ast.CallOrCast:
		b.WriteString("( CALL ")
		dumpExpr(b, ex.Callee)
		for _, a := range ex.Args {
			b.WriteString(" ")
			dumpExpr(b, a)
		}
		b.WriteString(" )")
	case *ast.TypeCast:
		b.WriteString("( CAST ")
		writeAtom(b, dumpType(ex.Target.ExprType()))
		b.WriteString(" ")
		dumpExpr(b, ex.Arg)
		b.WriteString(" )")
	case *ast.BinaryOp:
		b.WriteString("( BIN ")
		writeAtom(b, ex.Op.String())
		b.WriteString(" ")
		dumpExpr(b, ex.Lhs)
		b.WriteString(" ")
		dumpExpr(b, ex.Rhs)
		b.WriteString(" )")
	case *ast.UnaryOp:
		b.WriteString("( UN ")
		writeAtom(b, ex.Op.String())
		b.WriteString(" ")
		dumpExpr(b, ex.Arg)
		b.WriteString(" )")
	case *ast.Ternary:
		b.WriteString("( TERN ")
		dumpExpr(b, ex.Cond)
		b.WriteString(" ")
		dumpExpr(b, ex.True)
		b.WriteString(" ")
		dumpExpr(b, ex.False)
		b.WriteString(" )")
	case *ast.IncDec:
		b.WriteString("( INCDEC ")
		writeAtom(b, ex.Op.String())
		fmt.Fprintf(b, " %v ", ex.Pre)
		dumpExpr(b, ex.Target)
		b.WriteString(" )")
	case *ast.AssignExpr:
		b.WriteString("( ASSIGNEXPR ")
		writeAtom(b, ex.Op.String())
		b.WriteString(" ")
		dumpExpr(b, ex.Target)
		b.WriteString(" ")
		dumpExpr(b, ex.Value)
		b.WriteString(" )")
	case *ast.InitialiserList:
		b.WriteString("( INIT")
		for _, el := range ex.Elements {
			b.WriteString(" ")
			dumpExpr(b, el)
		}
		b.WriteString(" )")
	case *ast.WriteToEndpoint:
		b.WriteString("( WRITE ")
		dumpExpr(b, ex.Endpoint)
		b.WriteString(" ")
		dumpExpr(b, ex.Value)
		b.WriteString(" )")
	case *ast.AdvanceCall:
		b.WriteString("( ADV )")
	default:
		b.WriteString("( UNKNOWNEXPR )")
	}
}

// writeAtom appends a single whitespace-free token. Every identifier the
// front end hands out (processor names, variable names, field names) is a
// valid SOUL identifier already, so none of them can contain whitespace —
// the one value that could (a string literal's contents) is never printed
// verbatim, only by its interned handle, so this never needs escaping.
func writeAtom(b *strings.Builder, s string) {
	if s == "" {
		s = "_"
	}
	b.WriteString(s)
}

func interpName(i ast.ConnectionInterpolation) string {
	switch i {
	case ast.InterpNone:
		return "none"
	case ast.InterpLinear:
		return "linear"
	case ast.InterpSinc:
		return "sinc"
	case ast.InterpLagrange:
		return "lagrange"
	default:
		return "none"
	}
}

// dumpType renders t as one whitespace-free token built entirely from
// t's public accessors, never its private fields.
func dumpType(t *types.Type) string {
	if t == nil {
		return "_"
	}
	var body string
	switch t.Tag() {
	case types.TagPrimitive:
		body = "P:" + t.PrimitiveType().String()
	case types.TagVector:
		body = fmt.Sprintf("V:%s:%d", t.VectorElement(), t.VectorSize())
	case types.TagArray:
		// Size comes before the (possibly itself colon-bearing) element
		// type so the decoder's SplitN(tok, ":", 3) always leaves the
		// nested element token intact as the final part, however many
		// colons it contains.
		if t.IsUnsizedArray() {
			body = fmt.Sprintf("A:_:%s", dumpType(t.ElementType()))
		} else {
			body = fmt.Sprintf("A:%d:%s", t.ArraySize(), dumpType(t.ElementType()))
		}
	case types.TagBoundedInt:
		kind := "clamp"
		if t.BoundedIntWraps() {
			kind = "wrap"
		}
		body = fmt.Sprintf("B:%s:%d", kind, t.BoundedIntLimit())
	case types.TagStruct:
		name := "<anon>"
		if si := t.StructRef(); si != nil {
			name = si.Name
		}
		body = "S:" + name
	default:
		body = "P:void"
	}
	if t.IsConst() {
		body = "C" + body
	}
	if t.IsReference() {
		body += "&"
	}
	return body
}

// dumpValue renders v as one whitespace-free token, covering the scalar
// kinds HEART constants overwhelmingly are after constant folding.
// Aggregate and large (struct-table-backed) constants fall back to a
// placeholder tag carrying only the type, not the element values.
func dumpValue(v value.Value) string {
	t := v.Type()
	if t == nil {
		return "NONE"
	}
	if h, ok := v.AsString(); ok {
		return fmt.Sprintf("STR:%d", h)
	}
	if len(v.Elements()) > 0 {
		return fmt.Sprintf("AGG:%s", dumpType(t))
	}
	if _, ok := v.ConstantHandle(); ok {
		return fmt.Sprintf("LARGE:%s", dumpType(t))
	}
	switch {
	case t.IsPrimitive() && t.PrimitiveType() == types.Bool:
		return fmt.Sprintf("BOOL:%v", v.AsBool())
	case t.IsPrimitiveFloat():
		if t.PrimitiveType() == types.Float64 {
			return fmt.Sprintf("F64:%g", v.AsFloat())
		}
		return fmt.Sprintf("F32:%g", v.AsFloat())
	case t.PrimitiveType() == types.Int64:
		return fmt.Sprintf("I64:%d", v.AsInt())
	default:
		return fmt.Sprintf("I32:%d", v.AsInt())
	}
}
