package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16 converts little-endian 16-bit PCM bytes into samples.
// A trailing odd byte is dropped.
func DecodePCM16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// EncodePCM16 converts samples back to little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square level of a PCM chunk, normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ApplyGainDb returns a copy of samples amplified by the given decibel gain,
// clamped to the int16 range. Call audio arrives at a very low native
// amplitude, so silence analysis runs on the gained copy while the raw
// samples are kept for transcription.
func ApplyGainDb(samples []int16, db float64) []int16 {
	if db == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}
	factor := math.Pow(10, db/20)
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * factor
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}
