package capture

import "math"

// SilenceFloorDB is the level reported for digital silence.
const SilenceFloorDB = -160.0

// AveragePowerS16 returns the RMS level of little endian signed 16-bit PCM
// in dBFS, clamped at SilenceFloorDB. ok is false when pcm holds no sample.
func AveragePowerS16(pcm []byte) (db float64, ok bool) {
	n := len(pcm) / 2
	if n == 0 {
		return 0, false
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(n)) / 32768
	if rms == 0 {
		return SilenceFloorDB, true
	}
	return math.Max(20*math.Log10(rms), SilenceFloorDB), true
}

// DecodeS16 appends the samples of little endian signed 16-bit PCM to dst.
func DecodeS16(pcm []byte, dst []int) []int {
	for i := 0; i+1 < len(pcm); i += 2 {
		dst = append(dst, int(int16(uint16(pcm[i])|uint16(pcm[i+1])<<8)))
	}
	return dst
}

// EncodeS16 appends samples as little endian signed 16-bit PCM to dst.
// Samples are clipped to the int16 range.
func EncodeS16(samples []int, dst []byte) []byte {
	for _, s := range samples {
		if s > math.MaxInt16 {
			s = math.MaxInt16
		} else if s < math.MinInt16 {
			s = math.MinInt16
		}
		v := uint16(int16(s))
		dst = append(dst, byte(v), byte(v>>8))
	}
	return dst
}
