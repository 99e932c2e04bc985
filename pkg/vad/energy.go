package vad

import (
	"fmt"

	"github.com/realtime-ai/interpreter/pkg/audio"
)

// EnergyDetector scores a window by its RMS level. It carries no model and
// no recurrent state and is the default classifier when the binary is built
// without the onnx runtime.
//
// The probability ramps linearly from 0 at Floor to 1 at Ceiling, so with the
// default 0.5 threshold a window counts as speech once its RMS passes the
// midpoint.
type EnergyDetector struct {
	Floor   float64
	Ceiling float64
}

// NewEnergyDetector returns a detector with thresholds tuned for close-talk
// microphones.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{Floor: 0.005, Ceiling: 0.035}
}

// Infer implements DetectorInterface.
func (d *EnergyDetector) Infer(samples []float32) (float32, error) {
	if d.Ceiling <= d.Floor {
		return 0, fmt.Errorf("invalid energy range: floor %v, ceiling %v", d.Floor, d.Ceiling)
	}
	rms := audio.RMS(samples)
	switch {
	case rms <= d.Floor:
		return 0, nil
	case rms >= d.Ceiling:
		return 1, nil
	}
	return float32((rms - d.Floor) / (d.Ceiling - d.Floor)), nil
}

// Reset implements DetectorInterface.
func (d *EnergyDetector) Reset() error { return nil }

// Destroy implements DetectorInterface.
func (d *EnergyDetector) Destroy() error { return nil }

var _ DetectorInterface = (*EnergyDetector)(nil)
