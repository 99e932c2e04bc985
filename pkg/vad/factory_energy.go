//go:build !vad

package vad

import "go.uber.org/zap"

// NewFactory returns the classifier factory for this build. Without the vad
// build tag only the energy detector is available and modelPath is ignored.
func NewFactory(modelPath string, sampleRate int, logger *zap.Logger) (Factory, error) {
	if modelPath != "" && logger != nil {
		logger.Warn("silero model configured but binary built without vad tag, using energy detector",
			zap.String("model_path", modelPath))
	}
	return func() (DetectorInterface, error) {
		return NewEnergyDetector(), nil
	}, nil
}
