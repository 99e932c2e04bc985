//go:build vad

package vad

import (
	"fmt"

	"go.uber.org/zap"
)

// NewFactory returns a factory producing Silero detectors when modelPath is
// set, falling back to the energy detector otherwise.
func NewFactory(modelPath string, sampleRate int, logger *zap.Logger) (Factory, error) {
	if modelPath == "" {
		return func() (DetectorInterface, error) {
			return NewEnergyDetector(), nil
		}, nil
	}

	cfg := DetectorConfig{ModelPath: modelPath, SampleRate: sampleRate}
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	if err := InitRuntime(""); err != nil {
		return nil, fmt.Errorf("silero: %w", err)
	}
	if logger != nil {
		logger.Info("silero vad enabled", zap.String("model_path", modelPath))
	}
	return func() (DetectorInterface, error) {
		return NewDetector(cfg)
	}, nil
}
