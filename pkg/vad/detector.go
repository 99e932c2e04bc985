//go:build vad

package vad

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	stateLen   = 2 * 1 * 128
	contextLen = 64
)

var (
	runtimeInitialized bool
	runtimeMu          sync.Mutex
)

// InitRuntime initializes the ONNX runtime environment once per process.
// An empty libraryPath searches ONNXRUNTIME_LIB and the usual system paths.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if libraryPath == "" {
		libraryPath = findONNXRuntimeLibrary()
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	runtimeInitialized = true
	return nil
}

// DestroyRuntime tears the ONNX runtime down at shutdown.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}
	runtimeInitialized = false
	return nil
}

func findONNXRuntimeLibrary() string {
	paths := []string{
		os.Getenv("ONNXRUNTIME_LIB"),
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}
	for _, dir := range filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")) {
		paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DetectorConfig holds configuration for a Silero detector.
type DetectorConfig struct {
	ModelPath string
	// SampleRate must be 8000 or 16000.
	SampleRate int
	// WindowSize is the number of samples per Infer call; 0 picks the model's
	// native size (512 at 16 kHz, 256 at 8 kHz).
	WindowSize int
}

// IsValid validates the detector configuration.
func (c DetectorConfig) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("invalid SampleRate: valid values are 8000 and 16000")
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("invalid WindowSize: %d", c.WindowSize)
	}
	return nil
}

func (c DetectorConfig) windowSize() int {
	if c.WindowSize > 0 {
		return c.WindowSize
	}
	if c.SampleRate == 8000 {
		return 256
	}
	return 512
}

// Detector runs the Silero VAD model through onnxruntime. Tensors are
// allocated once and reused for every window.
type Detector struct {
	session *ort.DynamicAdvancedSession
	window  int

	input  *ort.Tensor[float32]
	state  *ort.Tensor[float32]
	sr     *ort.Tensor[int64]
	output *ort.Tensor[float32]
	stateN *ort.Tensor[float32]
}

// NewDetector loads the model. The runtime is initialized on first use.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := InitRuntime(""); err != nil {
		return nil, err
	}

	d := &Detector{window: cfg.windowSize()}
	if err := d.allocate(int64(cfg.SampleRate)); err != nil {
		d.Destroy()
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("failed to set graph optimization level: %w", err)
	}
	if err := options.SetIntraOpNumThreads(1); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	d.session = session
	return d, nil
}

func (d *Detector) allocate(sampleRate int64) error {
	var err error
	if d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(contextLen+d.window))); err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	if d.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("failed to create state tensor: %w", err)
	}
	if d.sr, err = ort.NewTensor(ort.NewShape(1), []int64{sampleRate}); err != nil {
		return fmt.Errorf("failed to create sr tensor: %w", err)
	}
	if d.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	if d.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("failed to create stateN tensor: %w", err)
	}
	return nil
}

// Infer implements DetectorInterface. The last 64 samples of the previous
// window are carried as left context, as the model expects.
func (d *Detector) Infer(samples []float32) (float32, error) {
	if d == nil || d.session == nil {
		return 0, fmt.Errorf("detector is not initialized")
	}
	if len(samples) != d.window {
		return 0, fmt.Errorf("window must be %d samples, got %d", d.window, len(samples))
	}

	in := d.input.GetData()
	copy(in[contextLen:], samples)

	if err := d.session.Run(
		[]ort.Value{d.input, d.state, d.sr},
		[]ort.Value{d.output, d.stateN},
	); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}

	copy(d.state.GetData(), d.stateN.GetData())
	copy(in[:contextLen], samples[len(samples)-contextLen:])

	out := d.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("empty output from inference")
	}
	return out[0], nil
}

// Reset implements DetectorInterface.
func (d *Detector) Reset() error {
	if d == nil || d.input == nil {
		return fmt.Errorf("detector is not initialized")
	}
	clear(d.state.GetData())
	clear(d.input.GetData())
	return nil
}

// Destroy implements DetectorInterface.
func (d *Detector) Destroy() error {
	if d == nil {
		return nil
	}
	var firstErr error
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			firstErr = fmt.Errorf("failed to destroy session: %w", err)
		}
		d.session = nil
	}
	for _, v := range []interface{ Destroy() error }{d.input, d.state, d.sr, d.output, d.stateN} {
		if v != nil {
			v.Destroy()
		}
	}
	d.input, d.state, d.sr, d.output, d.stateN = nil, nil, nil, nil, nil
	return firstErr
}

var _ DetectorInterface = (*Detector)(nil)
