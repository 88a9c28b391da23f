package sanity

import (
	"testing"

	"soul/internal/ast"
	"soul/internal/diag"
	"soul/internal/ident"
	"soul/internal/parser"
)

func parse(t *testing.T, src string) (*ast.Namespace, *diag.List) {
	t.Helper()
	idents := ident.NewPool()
	strs := ident.NewStringDictionary()
	diags := &diag.List{}
	ns := parser.Parse("test.soul", src, idents, strs, diags)
	return ns, diags
}

func TestCheckPreMissingOutput(t *testing.T) {
	ns, diags := parse(t, `
processor Gain
{
	input stream float in;

	[[run]]
	void run()
	{
		loop { advance(); }
	}
}
`)
	CheckPre(ns, diags)
	if !diags.HasErrors() {
		t.Fatalf("expected an error for a processor with no output")
	}
}

func TestCheckPreMissingRun(t *testing.T) {
	ns, diags := parse(t, `
processor Gain
{
	input stream float in;
	output stream float out;
}
`)
	CheckPre(ns, diags)
	if diags.ErrorCount() == 0 {
		t.Fatalf("expected an error for a processor with no run function")
	}
}

func TestCheckPreDuplicateRun(t *testing.T) {
	ns, diags := parse(t, `
processor Gain
{
	output stream float out;

	[[run]]
	void run() { loop { advance(); } }

	[[run]]
	void runAgain() { loop { advance(); } }
}
`)
	CheckPre(ns, diags)
	if diags.ErrorCount() == 0 {
		t.Fatalf("expected an error for two run functions")
	}
}

func TestCheckPreValidProcessor(t *testing.T) {
	ns, diags := parse(t, `
processor Gain
{
	input stream float in;
	output stream float out;

	[[run]]
	void run()
	{
		loop { advance(); }
	}
}
`)
	CheckPre(ns, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
}

func TestCheckPostDuplicateEndpointName(t *testing.T) {
	ns, diags := parse(t, `
processor Bad
{
	input stream float in;
	output stream float in;

	[[run]]
	void run() { loop { advance(); } }
}
`)
	CheckPost(ns, diags)
	if diags.ErrorCount() == 0 {
		t.Fatalf("expected a duplicate-name error for two endpoints named in")
	}
}

func TestCheckPostDelayOutOfRange(t *testing.T) {
	ns, diags := parse(t, `
graph G
{
	input stream float in;
	output stream float out;

	let
	{
		g = Gain;
	}

	connection
	{
		in -> [100000] -> g.in;
		g.out -> out;
	}
}
`)
	CheckPost(ns, diags)
	if diags.ErrorCount() == 0 {
		t.Fatalf("expected a delay-out-of-range error")
	}
}

func TestCheckPostUndelayedCycle(t *testing.T) {
	ns, diags := parse(t, `
graph G
{
	let
	{
		a = A;
		b = B;
	}

	connection
	{
		a.out -> b.in;
		b.out -> a.in;
	}
}
`)
	CheckPost(ns, diags)
	if diags.ErrorCount() == 0 {
		t.Fatalf("expected an undelayed-cycle error")
	}
}

func TestCheckPostDelayedCycleAllowed(t *testing.T) {
	ns, diags := parse(t, `
graph G
{
	let
	{
		a = A;
		b = B;
	}

	connection
	{
		a.out -> b.in;
		b.out -> [4] -> a.in;
	}
}
`)
	CheckPost(ns, diags)
	if diags.HasErrors() {
		t.Fatalf("a cycle broken by a delay must not be rejected: %s", diags.String())
	}
}
