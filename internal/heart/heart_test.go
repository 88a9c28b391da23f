package heart

import (
	"testing"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/parser"
	"soul/internal/resolve"
)

func parseAndResolve(t *testing.T, src string) (*ast.Namespace, *diag.List) {
	t.Helper()
	idents := ident.NewPool()
	strs := ident.NewStringDictionary()
	diags := &diag.List{}
	ns := parser.Parse("test.soul", src, idents, strs, diags)
	ctx := &resolve.Context{Diags: diags, Idents: idents, Strs: strs}
	resolve.Resolve(ns, ctx)
	return ns, diags
}

func findProcessor(ns *ast.Namespace, name string) *ast.Processor {
	for _, m := range ns.SubModules() {
		if p, ok := m.(*ast.Processor); ok && p.ModuleName().String() == name {
			return p
		}
	}
	return nil
}

func findGraph(ns *ast.Namespace, name string) *ast.Graph {
	for _, m := range ns.SubModules() {
		if g, ok := m.(*ast.Graph); ok && g.ModuleName().String() == name {
			return g
		}
	}
	return nil
}

func findFunction(m *Module, name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// TestLowerTrivialPassThrough covers the simplest end-to-end shape: a
// single output, one run function with no control flow, lowering to one
// block ending in a void return.
func TestLowerTrivialPassThrough(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor P
{
	output stream float32 out;
	void run()
	{
		out << 1.0f;
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	p := findProcessor(ns, "P")
	if p == nil {
		t.Fatalf("expected to find processor P")
	}
	m := LowerProcessor(p, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected lowering errors: %s", diags.String())
	}
	if len(m.Outputs) != 1 || m.Outputs[0].Name != "out" {
		t.Fatalf("expected one output named out, got %+v", m.Outputs)
	}
	run := findFunction(m, "run")
	if run == nil {
		t.Fatalf("expected a lowered run function")
	}
	if len(run.Blocks) != 1 {
		t.Fatalf("expected one block for a straight-line function, got %d", len(run.Blocks))
	}
	b := run.Blocks[0]
	if len(b.Stmts) != 1 {
		t.Fatalf("expected one statement, got %d", len(b.Stmts))
	}
	if _, ok := b.Stmts[0].(*Eval); !ok {
		t.Fatalf("expected the write-to-endpoint to lower to an Eval, got %T", b.Stmts[0])
	}
	if _, ok := b.Term.(*Return); !ok {
		t.Fatalf("expected the block to terminate in a void Return, got %T", b.Term)
	}
}

// TestLowerIfElse checks the if/ifnot/ifend block shape and wiring for a
// condition that can't be constant-folded away.
func TestLowerIfElse(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor P
{
	output stream float32 out;
	var float32 counter = 0.0f;

	void run()
	{
		if (counter > 0.0f)
		{
			out << 1.0f;
		}
		else
		{
			out << 2.0f;
		}
		counter = counter + 1.0f;
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	p := findProcessor(ns, "P")
	m := LowerProcessor(p, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected lowering errors: %s", diags.String())
	}
	run := findFunction(m, "run")
	if run == nil {
		t.Fatalf("expected a lowered run function")
	}
	// entry, if_1, ifnot_1, ifend_1.
	if len(run.Blocks) != 4 {
		t.Fatalf("expected 4 blocks (entry, if, ifnot, ifend), got %d: %v", len(run.Blocks), blockLabels(run))
	}
	entry := run.Blocks[0]
	bi, ok := entry.Term.(*BranchIf)
	if !ok {
		t.Fatalf("expected entry to end in a BranchIf, got %T", entry.Term)
	}
	if bi.True.Label != "if_1" || bi.False.Label != "ifnot_1" {
		t.Fatalf("unexpected branch targets: true=%s false=%s", bi.True.Label, bi.False.Label)
	}
	ifBlk := run.Blocks[1]
	if br, ok := ifBlk.Term.(*Branch); !ok || br.Target.Label != "ifend_1" {
		t.Fatalf("expected the if-block to branch to the join block, got %#v", ifBlk.Term)
	}
	ifnotBlk := run.Blocks[2]
	if br, ok := ifnotBlk.Term.(*Branch); !ok || br.Target.Label != "ifend_1" {
		t.Fatalf("expected the ifnot-block to branch to the join block, got %#v", ifnotBlk.Term)
	}
	joinBlk := run.Blocks[3]
	if len(joinBlk.Stmts) != 1 {
		t.Fatalf("expected the counter increment to lower into the join block, got %d statements", len(joinBlk.Stmts))
	}
	if _, ok := joinBlk.Term.(*Return); !ok {
		t.Fatalf("expected the join block to end in a void Return, got %T", joinBlk.Term)
	}
}

// TestLowerConstantIfOmitsBranching confirms the dead-branch elimination
// pass already ran before HEART lowering starts: a constant-true `if`
// leaves behind only its taken branch, a Block, which lowerStmt inlines
// directly with no BranchIf at all.
func TestLowerConstantIfOmitsBranching(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor P
{
	output stream float32 out;
	void run()
	{
		if (1 > 0)
		{
			out << 1.0f;
		}
		else
		{
			out << 2.0f;
		}
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	p := findProcessor(ns, "P")
	m := LowerProcessor(p, diags)
	run := findFunction(m, "run")
	if len(run.Blocks) != 1 {
		t.Fatalf("expected the folded if to leave one block, got %d: %v", len(run.Blocks), blockLabels(run))
	}
	if len(run.Blocks[0].Stmts) != 1 {
		t.Fatalf("expected exactly the taken branch's write, got %d statements", len(run.Blocks[0].Stmts))
	}
}

// TestLowerLoopCount checks the counted loop(n) shape: an init of the
// synthesised counter, a header branch-if, a body, and a decrement block
// looping back.
func TestLowerLoopCount(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor P
{
	output stream float32 out;
	void run()
	{
		loop (4)
		{
			out << 1.0f;
		}
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	p := findProcessor(ns, "P")
	m := LowerProcessor(p, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected lowering errors: %s", diags.String())
	}
	run := findFunction(m, "run")
	// entry (holds the counter init), loop_1, loop_body_1, loop_dec_1, loop_end_1.
	if len(run.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d: %v", len(run.Blocks), blockLabels(run))
	}
	entry := run.Blocks[0]
	if len(entry.Stmts) != 1 {
		t.Fatalf("expected the counter's initial assignment in entry, got %d statements", len(entry.Stmts))
	}
	header := run.Blocks[1]
	if _, ok := header.Term.(*BranchIf); !ok {
		t.Fatalf("expected the loop header to end in a BranchIf, got %T", header.Term)
	}
	dec := run.Blocks[3]
	if len(dec.Stmts) != 1 {
		t.Fatalf("expected one decrement statement in the dec block, got %d", len(dec.Stmts))
	}
	if br, ok := dec.Term.(*Branch); !ok || br.Target != header {
		t.Fatalf("expected the dec block to branch back to the header")
	}
}

// TestLowerBreakContinue checks that a break/continue inside a while loop
// branch to the loop's break/continue targets and that lowering starts a
// fresh unreachable block afterwards rather than appending more
// statements to the terminated one.
func TestLowerBreakContinue(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor P
{
	output stream float32 out;
	var float32 counter = 0.0f;
	void run()
	{
		while (counter < 10.0f)
		{
			if (counter > 5.0f)
			{
				break;
			}
			counter = counter + 1.0f;
			continue;
			out << 1.0f;
		}
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	p := findProcessor(ns, "P")
	m := LowerProcessor(p, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected lowering errors: %s", diags.String())
	}
	run := findFunction(m, "run")
	var whileEnd, whileHeader *Block
	for _, b := range run.Blocks {
		if b.Label == "while_end_1" {
			whileEnd = b
		}
		if b.Label == "while_1" {
			whileHeader = b
		}
	}
	if whileEnd == nil || whileHeader == nil {
		t.Fatalf("expected while_1 and while_end_1 blocks, got %v", blockLabels(run))
	}
	// labels share one counter: the while loop took 1, so the nested if is 2.
	var ifBlk *Block
	for _, b := range run.Blocks {
		if b.Label == "if_2" {
			ifBlk = b
		}
	}
	if ifBlk == nil {
		t.Fatalf("expected an if_2 block for the break's guard")
	}
	if br, ok := ifBlk.Term.(*Branch); !ok || br.Target != whileEnd {
		t.Fatalf("expected the break to branch to while_end_1, got %#v", ifBlk.Term)
	}
	// the statement after `continue;` (the endpoint write) must not land in
	// the block holding the increment+continue: that block ends right there.
	var ifnotBlk *Block
	for _, b := range run.Blocks {
		if b.Label == "ifnot_2" {
			ifnotBlk = b
		}
	}
	if ifnotBlk == nil {
		t.Fatalf("expected an ifnot_2 block")
	}
	if len(ifnotBlk.Stmts) != 1 {
		t.Fatalf("expected only the counter increment before the continue, got %d statements", len(ifnotBlk.Stmts))
	}
	if br, ok := ifnotBlk.Term.(*Branch); !ok || br.Target != whileHeader {
		t.Fatalf("expected the continue to branch back to while_1, got %#v", ifnotBlk.Term)
	}
}

func blockLabels(f *Function) []string {
	var out []string
	for _, b := range f.Blocks {
		out = append(out, b.Label)
	}
	return out
}

// TestLowerGraphConnections checks that a graph's connections translate
// into (instance, property) source/dest pairs.
func TestLowerGraphConnections(t *testing.T) {
	ns, diags := parseAndResolve(t, `
processor Gain
{
	input stream float32 in;
	output stream float32 out;
	void run() { loop { advance(); } }
}

graph G
{
	input stream float32 in;
	output stream float32 out;

	let
	{
		g1 = Gain;
	}

	connection
	{
		in -> g1.in;
		g1.out -> [128] -> out;
	}
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	g := findGraph(ns, "G")
	if g == nil {
		t.Fatalf("expected to find graph G")
	}
	m := LowerGraph(g)
	if len(m.Instances) != 1 || m.Instances[0].Name != "g1" || m.Instances[0].ModuleName != "Gain" {
		t.Fatalf("unexpected instances: %+v", m.Instances)
	}
	if len(m.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(m.Connections))
	}
	c0, c1 := m.Connections[0], m.Connections[1]
	if c0.SourceInstance != "" || c0.SourceProperty != "in" || c0.DestInstance != "g1" || c0.DestProperty != "in" {
		t.Fatalf("unexpected first connection: %+v", c0)
	}
	if c1.SourceInstance != "g1" || c1.SourceProperty != "out" || c1.DestInstance != "" || c1.DestProperty != "out" || c1.DelayLength != 128 {
		t.Fatalf("unexpected second connection: %+v", c1)
	}
}
