package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Sample rates used on the wire.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	BytesPerSample   = 2
)

// BytesForDuration returns the byte length of durationMs of PCM16 mono audio.
func BytesForDuration(sampleRate, durationMs int) int {
	return sampleRate * durationMs / 1000 * BytesPerSample
}

// Duration returns the playback length of a PCM16 mono buffer.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// BytesToInt16 decodes little-endian PCM16. A trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Int16ToBytes encodes samples as little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// ToFloat32 decodes PCM16LE into samples normalized to [-1, 1).
func ToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/BytesPerSample)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return out
}

// RMS returns the root-mean-square level of normalized samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PCMRMS is RMS over a PCM16LE buffer.
func PCMRMS(data []byte) float64 {
	return RMS(ToFloat32(data))
}

// Silence returns n zeroed samples of PCM16.
func Silence(samples int) []byte {
	if samples < 0 {
		samples = 0
	}
	return make([]byte, samples*BytesPerSample)
}
