package compiler

import (
	"testing"

	"soul/internal/diag"
)

const gainSrc = `
processor Gain
{
	input stream float32 in;
	output stream float32 out;
	void run()
	{
		loop
		{
			out << in;
			advance();
		}
	}
}
`

func TestBuildLowersEntryProcessor(t *testing.T) {
	c := New()
	diags := &diag.List{}
	prog := c.Build(diags, "gain.soul", gainSrc, LinkOptions{MainProcessor: "Gain"})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	if prog == nil {
		t.Fatalf("expected a program")
	}
	if prog.MainModule() == nil {
		t.Fatalf("expected Gain to be the main module")
	}
	if len(prog.Modules) != 1 {
		t.Fatalf("expected one lowered module, got %d", len(prog.Modules))
	}
}

func TestLinkWithoutStagedUnitsFails(t *testing.T) {
	c := New()
	diags := &diag.List{}
	if prog := c.Link(diags, LinkOptions{}); prog != nil {
		t.Fatalf("expected Link with nothing staged to fail")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic")
	}
}

func TestMainProcessorNotFoundReportsError(t *testing.T) {
	c := New()
	diags := &diag.List{}
	prog := c.Build(diags, "gain.soul", gainSrc, LinkOptions{MainProcessor: "NoSuchThing"})
	if prog == nil {
		t.Fatalf("expected a program even when the main processor name misses")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error about the missing main processor")
	}
}

func TestMultipleUnitsAreMergedBeforeResolution(t *testing.T) {
	c := New()
	diags := &diag.List{}
	if !c.AddCode(diags, "gain.soul", gainSrc) {
		t.Fatalf("unexpected parse/sanity error: %s", diags.String())
	}
	if !c.AddCode(diags, "main.soul", `
graph Main
{
	input stream float32 in;
	output stream float32 out;
	let { g = Gain; }
	connection
	{
		in -> g.in;
		g.out -> out;
	}
}
`) {
		t.Fatalf("unexpected parse/sanity error: %s", diags.String())
	}
	prog := c.Link(diags, LinkOptions{MainProcessor: "Main"})
	if diags.HasErrors() {
		t.Fatalf("unexpected link errors: %s", diags.String())
	}
	if prog.Module("Gain") == nil || prog.Module("Main") == nil {
		t.Fatalf("expected both units' modules to be present after merging, got %v", prog.ModuleNames())
	}
}

func TestHeartRoundTripPreservesHash(t *testing.T) {
	c := New()
	diags := &diag.List{}
	prog := c.Build(diags, "gain.soul", gainSrc, LinkOptions{MainProcessor: "Gain"})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	text := prog.ToHEART()

	decoded, err := CreateFromHEART(text)
	if err != nil {
		t.Fatalf("CreateFromHEART failed: %v", err)
	}
	if decoded.Hash() != prog.Hash() {
		t.Fatalf("round-tripped program hash differs:\noriginal: %s\ndecoded:  %s", prog.Hash(), decoded.Hash())
	}
	if decoded.ToHEART() != text {
		t.Fatalf("round-tripped dump text differs from the original")
	}
}
