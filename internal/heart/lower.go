package heart

import (
	"fmt"
	"sort"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

// LowerProcessor builds a processor's HEART module: its endpoints, its
// state variables, a synthesised init function that assigns each state
// variable its declared (or zero) initial value, and one Function per
// user-written function with a body.
func LowerProcessor(p *ast.Processor, diags *diag.List) *Module {
	m := &Module{Name: p.Name.String()}
	for _, e := range p.Endpoints {
		he := lowerEndpoint(e)
		if e.Direction == ast.DirInput {
			m.Inputs = append(m.Inputs, he)
		} else {
			m.Outputs = append(m.Outputs, he)
		}
	}
	for _, v := range p.StateVars {
		m.StateVars = append(m.StateVars, &StateVar{Name: v.Name.String(), Type: v.Type, Init: v.Init})
	}
	m.Functions = append(m.Functions, lowerInitFunction(p.StateVars))
	for _, f := range p.Functions {
		lowerFunctionOrSpecialisations(f, m, diags)
	}
	return m
}

// lowerFunctionOrSpecialisations lowers f, unless f is a generic
// template — a template itself is never the target of a FunctionCall
// (resolveFunctions always points a call at one of its specialisations),
// so HEART only needs each concrete specialisation, lowered in sorted
// order of their argument-type keys. Each keeps the template's name, so
// several specialisations appear under the same function name.
func lowerFunctionOrSpecialisations(f *ast.FunctionDecl, m *Module, diags *diag.List) {
	if f.IsIntrinsic() || f.Body == nil {
		return
	}
	if f.IsGeneric() {
		keys := make([]string, 0, len(f.Specialisations))
		for k := range f.Specialisations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			spec := f.Specialisations[k]
			hf := lowerFunction(spec)
			checkReturns(spec, hf, diags)
			m.Functions = append(m.Functions, hf)
		}
		return
	}
	hf := lowerFunction(f)
	checkReturns(f, hf, diags)
	m.Functions = append(m.Functions, hf)
}

// LowerGraph builds a graph's HEART module: its own endpoints, its
// instantiated processors, and its connections translated into source
// and destination (instance, property) pairs.
func LowerGraph(g *ast.Graph) *Module {
	m := &Module{Name: g.Name.String()}
	for _, e := range g.Endpoints {
		he := lowerEndpoint(e)
		if e.Direction == ast.DirInput {
			m.Inputs = append(m.Inputs, he)
		} else {
			m.Outputs = append(m.Outputs, he)
		}
	}
	for _, inst := range g.Instances {
		hi := &Instance{
			Name:          inst.Name.String(),
			SpecArgs:      inst.SpecArgs,
			ClockMultiply: inst.ClockMultiply,
			ClockDivide:   inst.ClockDivide,
		}
		if inst.ResolvedModule != nil {
			hi.ModuleName = inst.ResolvedModule.ModuleName().String()
		}
		m.Instances = append(m.Instances, hi)
	}
	for _, c := range g.Connections {
		hc := &Connection{DelayLength: c.DelayLength, Interp: c.Interp}
		hc.SourceInstance, hc.SourceProperty = endpointPath(c.Source)
		hc.DestInstance, hc.DestProperty = endpointPath(c.Dest)
		m.Connections = append(m.Connections, hc)
	}
	return m
}

func lowerEndpoint(e *ast.Endpoint) *Endpoint {
	return &Endpoint{
		Name:        e.Name.String(),
		Direction:   e.Direction,
		Kind:        e.Kind,
		SampleTypes: e.SampleTypes,
		ArraySize:   e.ArraySize,
		Annotations: e.Annotations,
	}
}

// endpointPath reads a resolved connection endpoint expression down to
// the (instance name, property name) pair HEART records — an empty
// instance name means the graph's own endpoint rather than one of its
// instances'.
func endpointPath(e ast.Expr) (instance, property string) {
	switch n := e.(type) {
	case *ast.ProcessorPropertyRef:
		if n.Instance != nil {
			instance = n.Instance.Name.String()
		}
		if n.Property != nil {
			property = n.Property.String()
		}
	case *ast.OutputEndpointRef:
		property = n.Target.Name.String()
	case *ast.InputEndpointRef:
		property = n.Target.Name.String()
	case *ast.ArrayElementRef:
		return endpointPath(n.Base)
	}
	return
}

// lowerInitFunction synthesises the built-in `init` function the
// language definition's state model implies every processor has: one
// assignment per state variable, to its declared initialiser or a
// zero value.
func lowerInitFunction(vars []*ast.VarDecl) *Function {
	fn := &Function{Name: "init", ReturnType: types.VoidT}
	b := &Block{Label: "entry"}
	for _, v := range vars {
		val := v.Init
		if val == nil {
			c := &ast.Constant{Value: value.ZeroInitialiser(v.Type)}
			c.Loc = v.Location()
			val = c
		}
		b.Stmts = append(b.Stmts, &Assign{Dest: VarDest{Target: v}, Value: val})
	}
	b.Term = &Return{}
	fn.Blocks = []*Block{b}
	return fn
}

// lowerCtx carries the per-function state a control-flow lowering pass
// needs: the block list built so far, the block currently being
// appended to, a label counter, and the break/continue targets of
// whatever loops currently enclose the statement being lowered.
type lowerCtx struct {
	blocks        []*Block
	cur           *Block
	counter       int
	breakStack    []*Block
	continueStack []*Block
}

func (lc *lowerCtx) next() int {
	lc.counter++
	return lc.counter
}

func (lc *lowerCtx) newBlock(label string) *Block {
	b := &Block{Label: label}
	lc.blocks = append(lc.blocks, b)
	return b
}

func (lc *lowerCtx) pushLoop(continueTarget, breakTarget *Block) {
	lc.continueStack = append(lc.continueStack, continueTarget)
	lc.breakStack = append(lc.breakStack, breakTarget)
}

func (lc *lowerCtx) popLoop() {
	lc.continueStack = lc.continueStack[:len(lc.continueStack)-1]
	lc.breakStack = lc.breakStack[:len(lc.breakStack)-1]
}

// lowerFunction builds one user function's basic blocks.
func lowerFunction(f *ast.FunctionDecl) *Function {
	hf := &Function{Name: f.Name.String(), Params: f.Params, ReturnType: f.ReturnType}
	lc := &lowerCtx{}
	lc.cur = lc.newBlock("entry")
	if f.Body != nil {
		lc.lowerBlockBody(f.Body)
	}
	if lc.cur.Term == nil {
		lc.cur.Term = &Return{}
	}
	hf.Blocks = lc.blocks
	return hf
}

func (lc *lowerCtx) lowerBlockBody(b *ast.Block) {
	for _, s := range b.Stmts {
		lc.lowerStmt(s)
	}
}

func (lc *lowerCtx) lowerStmt(s ast.Stmt) {
	if lc.cur.Term != nil {
		// lc.cur already has a terminator, so nothing more can be
		// appended to it; the statement is dropped.
		return
	}
	switch n := s.(type) {
	case *ast.ExprStmt:
		lc.lowerExprStmt(n.X)
	case *ast.VarDeclStmt:
		if n.Decl.Init != nil {
			lc.cur.Stmts = append(lc.cur.Stmts, &Assign{Dest: VarDest{Target: n.Decl}, Value: n.Decl.Init})
		}
	case *ast.IfStmt:
		lc.lowerIf(n)
	case *ast.WhileStmt:
		lc.lowerWhile(n)
	case *ast.DoStmt:
		lc.lowerDo(n)
	case *ast.ForStmt:
		lc.lowerFor(n)
	case *ast.LoopStmt:
		lc.lowerLoop(n)
	case *ast.BreakStmt:
		lc.lowerBreak(n)
	case *ast.ContinueStmt:
		lc.lowerContinue(n)
	case *ast.ReturnStmt:
		lc.cur.Term = &Return{Value: n.Value}
		lc.cur = lc.newBlock(lc.freshLabel("unreachable"))
	case *ast.Block:
		lc.lowerBlockBody(n)
	}
}

func (lc *lowerCtx) freshLabel(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, lc.next())
}

func (lc *lowerCtx) lowerExprStmt(x ast.Expr) {
	switch n := x.(type) {
	case *ast.AssignExpr:
		lc.lowerAssign(n)
	case *ast.IncDec:
		lc.lowerIncDecStmt(n)
	case *ast.AdvanceCall:
		lc.cur.Stmts = append(lc.cur.Stmts, &AdvanceClock{})
	default:
		lc.cur.Stmts = append(lc.cur.Stmts, &Eval{Expr: x})
	}
}

func (lc *lowerCtx) lowerAssign(a *ast.AssignExpr) {
	dest, ok := toDest(a.Target)
	if !ok {
		return
	}
	val := a.Value
	if a.Op != token.Assign {
		bin := &ast.BinaryOp{Op: compoundBaseOp(a.Op), Lhs: a.Target, Rhs: a.Value}
		bin.Loc = a.Location()
		val = bin
	}
	lc.cur.Stmts = append(lc.cur.Stmts, &Assign{Dest: dest, Value: val})
}

// compoundBaseOp maps a compound-assignment operator to the binary
// operator it implies, e.g. PlusAssign -> Plus.
func compoundBaseOp(op token.Kind) token.Kind {
	switch op {
	case token.PlusAssign:
		return token.Plus
	case token.MinusAssign:
		return token.Minus
	case token.StarAssign:
		return token.Star
	case token.SlashAssign:
		return token.Slash
	case token.PercentAssign:
		return token.Percent
	case token.ShlAssign:
		return token.Shl
	case token.ShrAssign:
		return token.Shr
	case token.UShrAssign:
		return token.UShr
	case token.XorAssign:
		return token.Caret
	case token.AndAssign:
		return token.Amp
	case token.OrAssign:
		return token.Pipe
	}
	return op
}

// lowerIncDecStmt lowers a standalone `x++`/`--x` statement to a
// read-modify-write assignment — the pre/post distinction only matters
// when the value is consumed, which a bare statement never does.
func (lc *lowerCtx) lowerIncDecStmt(n *ast.IncDec) {
	dest, ok := toDest(n.Target)
	if !ok {
		return
	}
	delta := int32(1)
	if n.Op == token.Dec {
		delta = -1
	}
	one := &ast.Constant{Value: value.Int32(delta)}
	one.Loc = n.Location()
	bin := &ast.BinaryOp{Op: token.Plus, Lhs: n.Target, Rhs: one}
	bin.Loc = n.Location()
	lc.cur.Stmts = append(lc.cur.Stmts, &Assign{Dest: dest, Value: bin})
}

// toDest reads an l-value expression down to the Dest chain HEART
// assigns through.
func toDest(e ast.Expr) (Dest, bool) {
	switch n := e.(type) {
	case *ast.VariableRef:
		return VarDest{Target: n.Target}, true
	case *ast.ArrayElementRef:
		base, ok := toDest(n.Base)
		if !ok {
			return nil, false
		}
		if c, ok := n.Index.(*ast.Constant); ok && !n.Wrap {
			return SubElementDest{Base: base, FixedIndex: int(c.Value.AsInt())}, true
		}
		return SubElementDest{Base: base, FixedIndex: -1, DynIndex: n.Index, Wrap: n.Wrap}, true
	case *ast.StructMemberRef:
		base, ok := toDest(n.Base)
		if !ok {
			return nil, false
		}
		return SubElementDest{Base: base, FixedIndex: -1, Member: n.Member.String()}, true
	}
	return nil, false
}

// lowerIf implements the language definition's if-lowering: two blocks
// `if_N`/`ifnot_N`, joined by `ifend_N` only when a false branch exists
// — when it doesn't, `ifnot_N` itself serves as the join.
func (lc *lowerCtx) lowerIf(n *ast.IfStmt) {
	id := lc.next()
	ifBlk := lc.newBlock(fmt.Sprintf("if_%d", id))
	ifnotBlk := lc.newBlock(fmt.Sprintf("ifnot_%d", id))
	var joinBlk *Block
	if n.Else != nil {
		joinBlk = lc.newBlock(fmt.Sprintf("ifend_%d", id))
	}

	lc.cur.Term = &BranchIf{Cond: n.Cond, True: ifBlk, False: ifnotBlk}

	lc.cur = ifBlk
	lc.lowerBlockBody(n.Then)
	if lc.cur.Term == nil {
		if joinBlk != nil {
			lc.cur.Term = &Branch{Target: joinBlk}
		} else {
			lc.cur.Term = &Branch{Target: ifnotBlk}
		}
	}

	lc.cur = ifnotBlk
	if n.Else != nil {
		lc.lowerBlockBody(n.Else)
		if lc.cur.Term == nil {
			lc.cur.Term = &Branch{Target: joinBlk}
		}
		lc.cur = joinBlk
	}
}

// lowerWhile implements `while` as a header block (branch-if to body or
// the block after the loop) with the header itself doubling as the
// continue target, since re-checking the condition is all a `continue`
// needs to do here.
func (lc *lowerCtx) lowerWhile(n *ast.WhileStmt) {
	id := lc.next()
	header := lc.newBlock(fmt.Sprintf("while_%d", id))
	body := lc.newBlock(fmt.Sprintf("while_body_%d", id))
	after := lc.newBlock(fmt.Sprintf("while_end_%d", id))

	lc.cur.Term = &Branch{Target: header}
	header.Term = &BranchIf{Cond: n.Cond, True: body, False: after}

	lc.pushLoop(header, after)
	lc.cur = body
	lc.lowerBlockBody(n.Body)
	if lc.cur.Term == nil {
		lc.cur.Term = &Branch{Target: header}
	}
	lc.popLoop()

	lc.cur = after
}

// lowerDo implements `do body while (cond)`: the body runs unconditionally
// once, then falls into a dedicated check block holding the branch-if
// back to the body or out — continue targets the check block, not the
// body's start, so it re-evaluates the condition rather than re-running
// the body unconditionally.
func (lc *lowerCtx) lowerDo(n *ast.DoStmt) {
	id := lc.next()
	body := lc.newBlock(fmt.Sprintf("do_%d", id))
	check := lc.newBlock(fmt.Sprintf("do_check_%d", id))
	after := lc.newBlock(fmt.Sprintf("do_end_%d", id))

	lc.cur.Term = &Branch{Target: body}

	lc.pushLoop(check, after)
	lc.cur = body
	lc.lowerBlockBody(n.Body)
	if lc.cur.Term == nil {
		lc.cur.Term = &Branch{Target: check}
	}
	lc.popLoop()

	check.Term = &BranchIf{Cond: n.Cond, True: body, False: after}
	lc.cur = after
}

// lowerFor implements `for (init; cond; step) body`: a header block
// (branch-if to body or out), a body, and a step block that runs the
// iterator before branching back to the header — continue targets the
// step block so it advances the iterator before re-checking, matching
// the language definition's "continue block holds the iterator".
func (lc *lowerCtx) lowerFor(n *ast.ForStmt) {
	if n.Init != nil {
		lc.lowerStmt(n.Init)
	}
	id := lc.next()
	header := lc.newBlock(fmt.Sprintf("for_%d", id))
	body := lc.newBlock(fmt.Sprintf("for_body_%d", id))
	step := lc.newBlock(fmt.Sprintf("for_step_%d", id))
	after := lc.newBlock(fmt.Sprintf("for_end_%d", id))

	if lc.cur.Term == nil {
		lc.cur.Term = &Branch{Target: header}
	}

	if n.Cond != nil {
		header.Term = &BranchIf{Cond: n.Cond, True: body, False: after}
	} else {
		header.Term = &Branch{Target: body}
	}

	lc.pushLoop(step, after)
	lc.cur = body
	lc.lowerBlockBody(n.Body)
	if lc.cur.Term == nil {
		lc.cur.Term = &Branch{Target: step}
	}
	lc.popLoop()

	lc.cur = step
	if n.Step != nil {
		lc.lowerExprStmt(n.Step)
	}
	step.Term = &Branch{Target: header}

	lc.cur = after
}

// lowerLoop implements `loop body` (infinite) and `loop (n) body`: the
// counted form gets a synthesised mutable counter assigned Count,
// decremented once per iteration in a dedicated block, with the loop
// exiting once the counter reaches zero.
func (lc *lowerCtx) lowerLoop(n *ast.LoopStmt) {
	initBlk := lc.cur

	id := lc.next()
	header := lc.newBlock(fmt.Sprintf("loop_%d", id))
	body := lc.newBlock(fmt.Sprintf("loop_body_%d", id))
	var decBlk *Block
	if n.Count != nil {
		decBlk = lc.newBlock(fmt.Sprintf("loop_dec_%d", id))
	}
	after := lc.newBlock(fmt.Sprintf("loop_end_%d", id))

	initBlk.Term = &Branch{Target: header}

	if n.Count == nil {
		header.Term = &Branch{Target: body}
		lc.pushLoop(header, after)
		lc.cur = body
		lc.lowerBlockBody(n.Body)
		if lc.cur.Term == nil {
			lc.cur.Term = &Branch{Target: header}
		}
		lc.popLoop()
		lc.cur = after
		return
	}

	counterType := narrowestCounterType(n.Count)
	counter := &ast.VarDecl{Name: nil, Type: counterType}
	counter.Loc = n.Location()
	initBlk.Stmts = append(initBlk.Stmts, &Assign{Dest: VarDest{Target: counter}, Value: n.Count})

	header.Term = &BranchIf{Cond: counterPositive(counter), True: body, False: after}

	lc.pushLoop(decBlk, after)
	lc.cur = body
	lc.lowerBlockBody(n.Body)
	if lc.cur.Term == nil {
		lc.cur.Term = &Branch{Target: decBlk}
	}
	lc.popLoop()

	minusOne := &ast.Constant{Value: zeroOfMatchingWidth(counterType, -1)}
	minusOne.Loc = n.Location()
	counterRead := &ast.VariableRef{Target: counter}
	counterRead.Loc = n.Location()
	decExpr := &ast.BinaryOp{Op: token.Plus, Lhs: counterRead, Rhs: minusOne}
	decExpr.Loc = n.Location()
	decBlk.Stmts = append(decBlk.Stmts, &Assign{Dest: VarDest{Target: counter}, Value: decExpr})
	decBlk.Term = &Branch{Target: header}

	lc.cur = after
}

// narrowestCounterType picks int32 when the loop count is a constant
// that fits in one, and int64 otherwise — including for every
// non-constant count, whatever its runtime value turns out to be.
func narrowestCounterType(count ast.Expr) *types.Type {
	if c, ok := count.(*ast.Constant); ok {
		n := c.Value.AsInt()
		if n >= -(1<<31) && n < (1<<31) {
			return types.Int32T
		}
	}
	return types.Int64T
}

func zeroOfMatchingWidth(t *types.Type, n int64) value.Value {
	if t == types.Int64T {
		return value.Int64(n)
	}
	return value.Int32(int32(n))
}

func counterPositive(counter *ast.VarDecl) ast.Expr {
	ref := &ast.VariableRef{Target: counter}
	ref.Loc = counter.Location()
	zero := &ast.Constant{Value: zeroOfMatchingWidth(counter.Type, 0)}
	zero.Loc = counter.Location()
	cmp := &ast.BinaryOp{Op: token.Gt, Lhs: ref, Rhs: zero}
	cmp.Loc = counter.Location()
	return cmp
}

// lowerBreak/lowerContinue implement the language definition's "branch
// to the enclosing loop's break/continue block, then start a fresh
// unreachable block" — any statements textually following one in the
// same block are lowered into that fresh block, which nothing branches
// to.
func (lc *lowerCtx) lowerBreak(n *ast.BreakStmt) {
	if len(lc.breakStack) == 0 {
		return
	}
	lc.cur.Term = &Branch{Target: lc.breakStack[len(lc.breakStack)-1]}
	lc.cur = lc.newBlock(lc.freshLabel("unreachable"))
}

func (lc *lowerCtx) lowerContinue(n *ast.ContinueStmt) {
	if len(lc.continueStack) == 0 {
		return
	}
	lc.cur.Term = &Branch{Target: lc.continueStack[len(lc.continueStack)-1]}
	lc.cur = lc.newBlock(lc.freshLabel("unreachable"))
}

// checkReturns verifies that a non-void function returns a value on
// every path from its entry block — the one piece of HEART-level
// validation that belongs here rather than in the resolution engine,
// since it can only be checked once control flow is flattened into
// blocks and terminators.
func checkReturns(f *ast.FunctionDecl, hf *Function, diags *diag.List) {
	if f.ReturnType == nil || f.ReturnType.IsVoid() {
		return
	}
	visited := map[*Block]bool{}
	var allPathsReturn func(b *Block) bool
	allPathsReturn = func(b *Block) bool {
		if b == nil || visited[b] {
			return true
		}
		visited[b] = true
		switch t := b.Term.(type) {
		case *Return:
			return t.Value != nil
		case *Branch:
			return allPathsReturn(t.Target)
		case *BranchIf:
			return allPathsReturn(t.True) && allPathsReturn(t.False)
		}
		return false
	}
	if len(hf.Blocks) > 0 && !allPathsReturn(hf.Blocks[0]) {
		diags.Addf(f.Location(), diag.TypeError, "not every path through %q returns a value", f.Name.String())
	}
}
