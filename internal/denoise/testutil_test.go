package denoise

import (
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeToneWAV writes a 16-bit sine tone to path. Every channel carries
// the same signal.
func writeToneWAV(t *testing.T, path string, freq float64, sampleRate, channels int, seconds, amplitude float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer func() { _ = f.Close() }()

	frames := int(seconds * float64(sampleRate))
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
}

// readWAV decodes a fixture back into memory.
func readWAV(t *testing.T, path string) *goaudio.IntBuffer {
	t.Helper()

	buf, _, err := readPCM(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return buf
}

// rms returns the RMS of data, skipping the first skip samples.
func rms(data []int, skip int) float64 {
	if skip >= len(data) {
		return 0
	}
	var sum float64
	for _, v := range data[skip:] {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(data)-skip))
}
