package asr

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/audio"
	"github.com/realtime-ai/interpreter/pkg/trace"
)

// WhisperConfig configures the OpenAI transcription backend.
type WhisperConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	// Model defaults to whisper-1; gpt-4o-transcribe also works.
	Model       string  `yaml:"model"`
	Prompt      string  `yaml:"prompt"`
	Temperature float32 `yaml:"temperature"`
	SampleRate  int     `yaml:"-"`
}

// WhisperRecognizer transcribes utterances with the OpenAI audio API.
type WhisperRecognizer struct {
	client *openai.Client
	cfg    WhisperConfig
	logger *zap.Logger
}

// NewWhisperRecognizer creates a recognizer. The API key is required.
func NewWhisperRecognizer(cfg WhisperConfig, logger *zap.Logger) (*WhisperRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.InputSampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
		logger.Info("whisper using custom base url", zap.String("base_url", cfg.BaseURL))
	}

	return &WhisperRecognizer{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger.Named("whisper"),
	}, nil
}

// Name returns the provider name.
func (w *WhisperRecognizer) Name() string {
	return "openai-whisper"
}

// Load is a no-op; the HTTP client is ready once constructed.
func (w *WhisperRecognizer) Load(ctx context.Context) error {
	return nil
}

// Transcribe uploads the utterance as WAV and returns the transcription.
func (w *WhisperRecognizer) Transcribe(ctx context.Context, pcm []byte, sourceLang string) (*RecognitionResult, error) {
	if len(pcm) == 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "audio data is empty",
		}
	}

	ctx, span := trace.StartSpan(ctx, "whisper.transcribe")
	defer span.End()

	req := openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio.EncodeWAV(pcm, w.cfg.SampleRate)),
		Prompt:   w.cfg.Prompt,
		Language: sourceLang,
	}
	if w.cfg.Temperature > 0 {
		req.Temperature = w.cfg.Temperature
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		trace.RecordError(span, err)
		return nil, classifyOpenAIError(err)
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("transcribed",
		zap.String("lang", sourceLang),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(text)))

	return &RecognitionResult{
		Text:          text,
		Language:      sourceLang,
		AudioDuration: audio.Duration(pcm, w.cfg.SampleRate),
		Model:         w.cfg.Model,
	}, nil
}

func classifyOpenAIError(err error) *Error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: ErrCodeNetworkError, Message: "transcription request aborted", Err: err}
	}

	code := ErrCodeProviderError
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = ErrCodeAuthenticationFailed
	case http.StatusTooManyRequests:
		code = ErrCodeQuotaExceeded
	case 0:
		code = ErrCodeNetworkError
	}
	return &Error{Code: code, Message: "Whisper API request failed", Err: err}
}

var _ Recognizer = (*WhisperRecognizer)(nil)
