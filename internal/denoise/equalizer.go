package denoise

import "math"

// Fixed equalizer topology for background noise reduction.
const (
	// BandCount is the number of equalizer bands.
	BandCount = 10
	// BaseFrequency is the center of band 0 in Hz. Band i is centered at
	// BaseFrequency * 2^i.
	BaseFrequency = 20.0
	// BandGainDB is the gain applied by every band.
	BandGainDB = -10.0
	// BandwidthOctaves is the bandwidth of every band.
	BandwidthOctaves = 1.0
)

// Band is a single parametric equalizer band.
type Band struct {
	// Frequency is the center frequency in Hz.
	Frequency float64
	// Bandwidth is the band width in octaves.
	Bandwidth float64
	// GainDB is the boost or cut at the center frequency.
	GainDB float64
	// Bypass disables the band.
	Bypass bool
}

// CenterFrequency returns the center frequency of band i.
func CenterFrequency(i int) float64 {
	return BaseFrequency * math.Pow(2, float64(i))
}

// NoiseReductionBands returns the fixed 10-band attenuation chain.
func NoiseReductionBands() []Band {
	bands := make([]Band, BandCount)
	for i := range bands {
		bands[i] = Band{
			Frequency: CenterFrequency(i),
			Bandwidth: BandwidthOctaves,
			GainDB:    BandGainDB,
		}
	}
	return bands
}

// biquad is a direct form I peaking filter.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// newPeaking builds a peaking EQ biquad for one band at sampleRate, using
// the RBJ audio EQ cookbook coefficients with bandwidth in octaves.
func newPeaking(b Band, sampleRate float64) *biquad {
	a := math.Pow(10, b.GainDB/40)
	w0 := 2 * math.Pi * b.Frequency / sampleRate
	sinW0, cosW0 := math.Sin(w0), math.Cos(w0)
	alpha := sinW0 * math.Sinh(math.Ln2/2*b.Bandwidth*w0/sinW0)

	a0 := 1 + alpha/a
	return &biquad{
		b0: (1 + alpha*a) / a0,
		b1: (-2 * cosW0) / a0,
		b2: (1 - alpha*a) / a0,
		a1: (-2 * cosW0) / a0,
		a2: (1 - alpha/a) / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Equalizer applies a chain of bands independently to each channel of
// interleaved samples.
type Equalizer struct {
	channels int
	// filters[ch] is the band chain for channel ch.
	filters [][]*biquad
}

// NewEqualizer builds an equalizer for the given format. Bypassed bands and
// bands at or above Nyquist are left out of the chain.
func NewEqualizer(bands []Band, sampleRate, channels int) *Equalizer {
	nyquist := float64(sampleRate) / 2
	eq := &Equalizer{
		channels: channels,
		filters:  make([][]*biquad, channels),
	}
	for ch := 0; ch < channels; ch++ {
		for _, b := range bands {
			if b.Bypass || b.Frequency <= 0 || b.Frequency >= nyquist {
				continue
			}
			eq.filters[ch] = append(eq.filters[ch], newPeaking(b, float64(sampleRate)))
		}
	}
	return eq
}

// Active returns the number of bands applied per channel.
func (e *Equalizer) Active() int {
	if len(e.filters) == 0 {
		return 0
	}
	return len(e.filters[0])
}

// Process filters interleaved samples in place.
func (e *Equalizer) Process(samples []float64) {
	for i := range samples {
		ch := i % e.channels
		x := samples[i]
		for _, f := range e.filters[ch] {
			x = f.process(x)
		}
		samples[i] = x
	}
}
