package vad

// DetectorInterface is the per-window speech classifier consumed by the
// Segmenter. Implementations may hold recurrent state, so one instance
// belongs to exactly one session.
type DetectorInterface interface {
	// Infer runs inference on one window of normalized float32 samples in
	// [-1, 1] and returns the speech probability in [0, 1].
	Infer(samples []float32) (float32, error)

	// Reset clears recurrent state at the start of a new stream.
	Reset() error

	// Destroy releases all resources held by the detector.
	Destroy() error
}

// Factory builds a fresh detector for a new session.
type Factory func() (DetectorInterface, error)
