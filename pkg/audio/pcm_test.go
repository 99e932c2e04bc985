package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	assert.Equal(t, samples, BytesToInt16(Int16ToBytes(samples)))
}

func TestBytesToInt16_OddLength(t *testing.T) {
	data := append(Int16ToBytes([]int16{7, -7}), 0xff)
	assert.Equal(t, []int16{7, -7}, BytesToInt16(data))
}

func TestToFloat32(t *testing.T) {
	out := ToFloat32(Int16ToBytes([]int16{0, 16384, -32768}))
	require.Len(t, out, 3)
	assert.Equal(t, float32(0), out[0])
	assert.InDelta(t, 0.5, out[1], 1e-6)
	assert.Equal(t, float32(-1), out[2])
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
	assert.Equal(t, 0.0, PCMRMS(Silence(160)))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, Duration(make([]byte, 32000), InputSampleRate))
	assert.Equal(t, 500*time.Millisecond, Duration(make([]byte, 24000), OutputSampleRate))
	assert.Equal(t, time.Duration(0), Duration(make([]byte, 10), 0))
}

func TestBytesForDuration(t *testing.T) {
	assert.Equal(t, 16000, BytesForDuration(InputSampleRate, 500))
	assert.Equal(t, 4800, BytesForDuration(OutputSampleRate, 100))
}

func TestEncodeWAV(t *testing.T) {
	pcm := Silence(16000)
	wav := EncodeWAV(pcm, 16000)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}
