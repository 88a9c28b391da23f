//go:build (freebsd || linux) && !android

package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
)

// Open starts reading raw PS/2-protocol mouse bytes directly off the
// device node, the reference implementation's own BSD/Linux backend
// (mouse-bsd-linux.go) — no SDL needed on platforms where the kernel
// already exposes the mouse as a file.
func Open(c *Controller) error {
	var file string
	switch runtime.GOOS {
	case "freebsd":
		file = "/dev/bpsm0"
	case "linux":
		file = "/dev/input/mice"
	}
	mf, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("mouse unavailable: %w", err)
	}

	go func() {
		defer mf.Close()
		r := bufio.NewReader(mf)
		buf := make([]byte, 3)
		for {
			select {
			case <-c.stop:
				return
			default:
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return
			}
			left := buf[0]&1 == 1
			right := buf[0]>>1&1 == 1
			middle := buf[0]>>2&1 == 1

			var dx, dy float64
			if buf[1] != 0 {
				if buf[0]>>4&1 == 1 {
					dx = float64(int8(buf[1]-255)) / 255
				} else {
					dx = float64(int8(buf[1])) / 255
				}
			}
			if buf[2] != 0 {
				if buf[0]>>5&1 == 1 {
					dy = float64(int8(buf[2]-255)) / 255
				} else {
					dy = float64(int8(buf[2])) / 255
				}
			}
			c.accumulate(dx, dy, left, right, middle)
		}
	}()
	return nil
}
