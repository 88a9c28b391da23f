package runtime

import (
	"testing"

	"soul/internal/compiler"
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
			out << in * 2.0f;
			advance();
		}
	}
}
`

const accumulatorSrc = `
processor Accumulator
{
	input stream float32 in;
	output stream float32 out;
	float total;
	void run()
	{
		loop
		{
			total += in;
			out << total;
			advance();
		}
	}
}
`

func buildProgram(t *testing.T, src, mainModule string) *compiler.Program {
	t.Helper()
	c := compiler.New()
	diags := &diag.List{}
	prog := c.Build(diags, "test.soul", src, compiler.LinkOptions{MainProcessor: mainModule})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	return prog
}

func TestMachineStepAppliesOneSamplePerCall(t *testing.T) {
	prog := buildProgram(t, gainSrc, "Gain")
	mc, err := NewMachine(prog.Module("Gain"))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	out := mc.Step(map[string]float64{"in": 0.5})
	if out["out"] != 1 {
		t.Fatalf("expected out=1, got %v", out["out"])
	}
	out = mc.Step(map[string]float64{"in": -0.25})
	if out["out"] != -0.5 {
		t.Fatalf("expected out=-0.5, got %v", out["out"])
	}
}

func TestMachineStatePersistsAcrossSteps(t *testing.T) {
	prog := buildProgram(t, accumulatorSrc, "Accumulator")
	mc, err := NewMachine(prog.Module("Accumulator"))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	var last float64
	for i := 0; i < 4; i++ {
		out := mc.Step(map[string]float64{"in": 1})
		last = out["out"]
	}
	if last != 4 {
		t.Fatalf("expected accumulated total of 4 after 4 steps, got %v", last)
	}
}

func TestNewMachineRequiresARunFunction(t *testing.T) {
	prog := buildProgram(t, `
processor Empty
{
	input stream float32 in;
	output stream float32 out;
}
`, "Empty")
	if _, err := NewMachine(prog.Module("Empty")); err == nil {
		t.Fatalf("expected an error for a processor with no run()")
	}
}

func TestProcessorNamesListsEveryLoweredModule(t *testing.T) {
	prog := buildProgram(t, gainSrc, "Gain")
	names := ProcessorNames(prog)
	if len(names) != 1 || names[0] != "Gain" {
		t.Fatalf("unexpected processor names: %v", names)
	}
}
