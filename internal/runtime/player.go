package runtime

import (
	"soul/internal/compiler"
	"soul/internal/runtime/display"
)

// Player drives a GraphRunner against a live Device, one sample at a
// time, until Stop is called — the real-time equivalent of the
// reference implementation's `go SoundEngine(sc, twavs)` goroutine
// feeding `go sc.output()`'s buffered writes.
type Player struct {
	runner *GraphRunner
	device Device
	mouse  *display.Controller
	stop   chan struct{}
}

// NewPlayer opens a Device at the rate the named main processor wants
// to run at and wires a GraphRunner to it.
func NewPlayer(p *compiler.Program, mainModule string, sampleRate float64) (*Player, error) {
	runner, err := NewGraphRunner(p, mainModule)
	if err != nil {
		return nil, err
	}
	dev, err := OpenDevice(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Player{runner: runner, device: dev, stop: make(chan struct{})}, nil
}

// Info reports the backend in use, for the CLI to print before playback
// starts.
func (pl *Player) Info() string { return pl.device.Info() }

// AttachMouse starts a platform mouse reader and wires its position and
// buttons into the graph's "mouseX"/"mouseY"/"mouseLeft"/"mouseRight"/
// "mouseMiddle" inputs on every subsequent Step — optional, since a
// patch with no mouse-driven endpoints has nothing to feed.
func (pl *Player) AttachMouse() error {
	c := display.New()
	if err := display.Open(c); err != nil {
		return err
	}
	pl.mouse = c
	return nil
}

// Run blocks, pulling one sample at a time from the graph and writing
// it to the device, until Stop is called or the device reports a
// write error.
func (pl *Player) Run() error {
	for {
		select {
		case <-pl.stop:
			return pl.device.Close()
		default:
		}
		var inputs map[string]float64
		if pl.mouse != nil {
			inputs = pl.mouse.Inputs()
		}
		out := pl.runner.Step(inputs)
		if err := pl.device.Write(out["out"], out["out2"]); err != nil {
			pl.device.Close()
			return err
		}
	}
}

// Stop ends a running Player's Run loop at the next sample boundary,
// and stops its mouse reader if one was attached.
func (pl *Player) Stop() {
	if pl.mouse != nil {
		pl.mouse.Stop()
	}
	close(pl.stop)
}
