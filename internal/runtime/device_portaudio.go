//go:build !freebsd

package runtime

import (
	"fmt"

	pa "github.com/gordonklaus/portaudio"
)

// OpenDevice opens the system's default output stream via portaudio —
// the reference implementation's own choice of backend everywhere
// except FreeBSD, where it talks to /dev/dsp directly (device_oss.go).
//
// Grounded on _examples/SynteLang-SynteLang/portaudio.go's setupPortaudio: same
// Initialize/DefaultOutputDevice/OpenDefaultStream sequence, retargeted
// from that file's global samples channel onto a plain per-frame Write
// call a GraphRunner-driven player can call at its own pace.
func OpenDevice(sampleRate float64) (Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, ErrNoDevice{err}
	}
	d, err := pa.DefaultOutputDevice()
	if err != nil {
		pa.Terminate()
		return nil, ErrNoDevice{err}
	}

	bufL := make([]float32, writeBufferLen)
	bufR := make([]float32, writeBufferLen)
	out := [][]float32{bufL, bufR}
	stream, err := pa.OpenDefaultStream(0, 2, sampleRate, writeBufferLen, &out)
	if err != nil {
		pa.Terminate()
		return nil, ErrNoDevice{err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, ErrNoDevice{err}
	}

	return &portaudioDevice{
		stream:     stream,
		sampleRate: stream.Info().SampleRate,
		deviceName: d.Name,
		bufL:       bufL,
		bufR:       bufR,
	}, nil
}

type portaudioDevice struct {
	stream     *pa.Stream
	sampleRate float64
	deviceName string
	bufL, bufR []float32
	idx        int
}

func (d *portaudioDevice) SampleRate() float64 { return d.sampleRate }

func (d *portaudioDevice) Info() string {
	return fmt.Sprintf("portaudio backend\naudio output: %s\nsample rate: %.f", d.deviceName, d.sampleRate)
}

func (d *portaudioDevice) Write(left, right float64) error {
	d.bufL[d.idx] = float32(clip(left))
	d.bufR[d.idx] = float32(clip(right))
	d.idx++
	if d.idx < writeBufferLen {
		return nil
	}
	d.idx = 0
	return d.stream.Write()
}

func (d *portaudioDevice) Close() error {
	d.stream.Stop()
	d.stream.Close()
	return pa.Terminate()
}
