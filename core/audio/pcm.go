package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// PeakAmplitude returns the largest absolute sample value in samples.
func PeakAmplitude(samples []float32) float32 {
	var peak float32
	for _, sample := range samples {
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// IsNearSilent reports whether every sample stays below threshold.
func IsNearSilent(samples []float32, threshold float32) bool {
	return PeakAmplitude(samples) < threshold
}

// FloatToPCM16 converts normalized float samples into little-endian signed
// 16-bit PCM. Samples outside [-1, 1] are clipped.
func FloatToPCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		s := max(-1, min(1, sample))
		var value int16
		if s < 0 {
			value = int16(s * 0x8000)
		} else {
			value = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(value))
	}
	return pcm
}

// PCM16ToFloat is the inverse of [FloatToPCM16], up to quantization.
func PCM16ToFloat(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		value := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if value < 0 {
			samples[i] = float32(value) / 0x8000
		} else {
			samples[i] = float32(value) / 0x7fff
		}
	}
	return samples
}

// Float32FromBytes decodes little-endian IEEE-754 samples as delivered by
// float capture devices.
func Float32FromBytes(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples
}

// PutFloat32 encodes samples as little-endian IEEE-754 into dst and returns
// the number of bytes written.
func PutFloat32(dst []byte, samples []float32) int {
	n := min(len(samples), len(dst)/4)
	for i := range n {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(samples[i]))
	}
	return n * 4
}

// EncodeFrame wraps a binary frame in the base64 text envelope used by JSON
// transports.
func EncodeFrame(frame []byte) string {
	return base64.StdEncoding.EncodeToString(frame)
}

func DecodeFrame(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
