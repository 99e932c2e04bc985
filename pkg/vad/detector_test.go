//go:build vad

package vad

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getModelPath(t *testing.T) string {
	paths := []string{
		os.Getenv("SILERO_MODEL_PATH"),
		"../../models/silero_vad.onnx",
		"/tmp/silero_vad.onnx",
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		absPath, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath
		}
	}
	t.Skip("silero_vad.onnx model not found, skipping test")
	return ""
}

func TestDetectorConfigIsValid(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DetectorConfig
		wantErr bool
	}{
		{"valid 16kHz", DetectorConfig{ModelPath: "/m.onnx", SampleRate: 16000}, false},
		{"valid 8kHz", DetectorConfig{ModelPath: "/m.onnx", SampleRate: 8000}, false},
		{"empty model path", DetectorConfig{SampleRate: 16000}, true},
		{"invalid sample rate", DetectorConfig{ModelPath: "/m.onnx", SampleRate: 44100}, true},
		{"negative window", DetectorConfig{ModelPath: "/m.onnx", SampleRate: 16000, WindowSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.IsValid()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetectorConfigWindowSize(t *testing.T) {
	assert.Equal(t, 512, DetectorConfig{SampleRate: 16000}.windowSize())
	assert.Equal(t, 256, DetectorConfig{SampleRate: 8000}.windowSize())
	assert.Equal(t, 400, DetectorConfig{SampleRate: 16000, WindowSize: 400}.windowSize())
}

func TestDetectorInfer(t *testing.T) {
	detector, err := NewDetector(DetectorConfig{ModelPath: getModelPath(t), SampleRate: 16000})
	require.NoError(t, err)
	defer detector.Destroy()

	prob, err := detector.Infer(make([]float32, 512))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, prob, float32(0))
	assert.LessOrEqual(t, prob, float32(1))

	_, err = detector.Infer(make([]float32, 100))
	assert.Error(t, err)

	require.NoError(t, detector.Reset())
}

func TestDetectorNilSafety(t *testing.T) {
	var detector *Detector

	assert.Error(t, detector.Reset())
	assert.NoError(t, detector.Destroy())

	_, err := detector.Infer(make([]float32, 512))
	assert.Error(t, err)
}
