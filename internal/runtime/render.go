package runtime

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"soul/internal/compiler"
)

// Render runs a graph offline, reading one 16-bit PCM stereo WAV as its
// "in"/"in2" inputs and writing its "out"/"out2" outputs to another —
// the non-realtime twin of Player, for rendering a patch without a
// soundcard. Grounded on the reference implementation's own byte-level
// sample packing (bsd-linux.go's binary.Write/binary.Read usage and
// oss.go's convert helpers), here applied to a standard WAV container
// instead of a raw device stream.
func Render(p *compiler.Program, mainModule, inPath, outPath string) error {
	in, sampleRate, err := readWav(inPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", inPath, err)
	}

	runner, err := NewGraphRunner(p, mainModule)
	if err != nil {
		return err
	}

	out := make([][2]float64, len(in))
	for i, frame := range in {
		o := runner.Step(map[string]float64{"in": frame[0], "in2": frame[1]})
		out[i] = [2]float64{o["out"], o["out2"]}
	}

	if err := writeWav(outPath, out, sampleRate); err != nil {
		return fmt.Errorf("writing %q: %w", outPath, err)
	}
	return nil
}

// wavHeader mirrors the canonical 44-byte PCM WAV header — no reader in
// the pack ever implemented a WAV codec, so this follows the format
// itself (RIFF/WAVE/fmt /data chunks) rather than any example's code.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func readWav(path string) ([][2]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var h wavHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("decoding wav header: %w", err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	if h.AudioFormat != 1 || h.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("only 16-bit PCM wav is supported, got format %d/%d-bit", h.AudioFormat, h.BitsPerSample)
	}

	numFrames := int(h.Subchunk2Size) / int(h.BlockAlign)
	frames := make([][2]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var l, r16 int16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			if err == io.EOF {
				return frames[:i], float64(h.SampleRate), nil
			}
			return nil, 0, err
		}
		if h.NumChannels == 1 {
			r16 = l
		} else if err := binary.Read(r, binary.LittleEndian, &r16); err != nil {
			return nil, 0, err
		}
		frames[i] = [2]float64{float64(l) / 32768, float64(r16) / 32768}
	}
	return frames, float64(h.SampleRate), nil
}

func writeWav(path string, frames [][2]float64, sampleRate float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	const bitsPerSample = 16
	const numChannels = 2
	blockAlign := uint16(numChannels * bitsPerSample / 8)
	dataSize := uint32(len(frames)) * uint32(blockAlign)

	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	for _, fr := range frames {
		l := int16(clip(fr[0]) * 32767)
		r := int16(clip(fr[1]) * 32767)
		if err := binary.Write(w, binary.LittleEndian, l); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, r); err != nil {
			return err
		}
	}
	return w.Flush()
}
