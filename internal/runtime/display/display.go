// Package display is the other external collaborator the language
// definition's §6 leaves outside the core: mouse-driven visual control
// feeding named processor inputs.
//
// Grounded on the reference implementation's package-level mouse/display
// globals (synte.go's `var mouse = struct{...}`, `var display =
// disp{...}`): the same X/Y/button shape and exponential-vs-linear
// curve, reworked from global mutable state into a Controller a
// runtime.Player owns, since this repo's Machine has no global state of
// its own for mouse input to land in.
package display

import (
	"math"
	"sync"
)

// Controller tracks the mouse's accumulated position and button state,
// updated by whichever platform-specific reader Open started, and read
// by a runtime.Player once per sample (or once per buffer) to feed a
// running graph's mouse-driven inputs.
type Controller struct {
	mu sync.Mutex

	rawX, rawY          float64 // pre-curve accumulator
	x, y                float64 // curve applied
	left, right, middle bool
	// exponential selects the reference implementation's `mc` (mouse
	// curve) mode: positions map through math.Pow(10, acc/10) instead
	// of the default linear acc/5.
	exponential bool

	stop chan struct{}
}

// New returns a Controller with linear mouse-curve mapping; call
// SetExponential to switch to the exponential curve.
func New() *Controller {
	return &Controller{stop: make(chan struct{})}
}

func (c *Controller) SetExponential(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exponential = on
}

// accumulate folds one relative motion sample into the controller's
// running position and re-applies the selected curve — the
// accumulate-then-map step the reference implementation's mouseRead
// loops perform inline every iteration.
func (c *Controller) accumulate(dx, dy float64, left, right, middle bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left, c.right, c.middle = left, right, middle
	c.rawX += dx
	c.rawY += dy
	if c.exponential {
		c.x = math.Pow(10, c.rawX/10)
		c.y = math.Pow(10, c.rawY/10)
	} else {
		c.x = c.rawX / 5
		c.y = c.rawY / 5
	}
}

// Inputs reports the controller's current state as the named stream
// values a graph's mouse-driven endpoints read from — "mouseX",
// "mouseY", "mouseLeft", "mouseRight", "mouseMiddle" (0/1) — matching
// the reference implementation's naming (display.MouseX/MouseY,
// mouse.Left/Right/Middle).
func (c *Controller) Inputs() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]float64{
		"mouseX":      c.x,
		"mouseY":      c.y,
		"mouseLeft":   boolToFloat(c.left),
		"mouseRight":  boolToFloat(c.right),
		"mouseMiddle": boolToFloat(c.middle),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Stop ends whichever platform reader Open started.
func (c *Controller) Stop() { close(c.stop) }
