package display

import "testing"

func TestAccumulateAppliesLinearCurveByDefault(t *testing.T) {
	c := New()
	c.accumulate(10, -10, true, false, false)

	in := c.Inputs()
	if in["mouseX"] != 2 || in["mouseY"] != -2 {
		t.Fatalf("expected linear curve 10/5=2, -10/5=-2, got x=%v y=%v", in["mouseX"], in["mouseY"])
	}
	if in["mouseLeft"] != 1 || in["mouseRight"] != 0 || in["mouseMiddle"] != 0 {
		t.Fatalf("unexpected button state: %+v", in)
	}
}

func TestAccumulateAppliesExponentialCurveWhenSelected(t *testing.T) {
	c := New()
	c.SetExponential(true)
	c.accumulate(10, 0, false, false, false)

	in := c.Inputs()
	if in["mouseX"] != 10 { // 10^(10/10) == 10
		t.Fatalf("expected exponential curve to give 10, got %v", in["mouseX"])
	}
}

func TestAccumulateIsCumulative(t *testing.T) {
	c := New()
	c.accumulate(5, 0, false, false, false)
	c.accumulate(5, 0, false, false, false)

	if in := c.Inputs(); in["mouseX"] != 2 {
		t.Fatalf("expected two +5 motions to accumulate to 10/5=2, got %v", in["mouseX"])
	}
}
