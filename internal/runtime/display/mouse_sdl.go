//go:build !(freebsd || linux) && !android

package display

import (
	"fmt"
	"math"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// Open starts polling SDL's relative mouse state, the reference
// implementation's own fallback backend (mouse.go) for platforms
// without a raw mouse device node to read.
func Open(c *Controller) error {
	if err := sdl.Init(sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("unable to initialise sdl: %w", err)
	}

	go func() {
		defer sdl.Quit()
		for {
			select {
			case <-c.stop:
				return
			default:
			}
			sdl.PumpEvents()
			x, y, mflag := sdl.GetRelativeMouseState()
			left := mflag&1 == 1
			middle := mflag>>1&1 == 1
			right := mflag>>2&1 == 1
			c.accumulate(float64(x)/math.MaxInt32, float64(y)/math.MaxInt32, left, right, middle)
			time.Sleep(416 * time.Microsecond)
		}
	}()
	return nil
}
