package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	openAITTSEndpoint  = "https://api.openai.com/v1/audio/speech"
	openAIDefaultModel = "tts-1"
	openAIDefaultVoice = "alloy"
)

// openAIVoices maps catalog voice types onto OpenAI's fixed voices.
var openAIVoices = map[string]string{
	VoiceAdultMale:   "onyx",
	VoiceAdultFemale: "nova",
	VoiceChildMale:   "echo",
	VoiceChildFemale: "shimmer",
}

// OpenAIConfig configures the OpenAI speech endpoint.
type OpenAIConfig struct {
	APIKey   string  `yaml:"-"`
	Endpoint string  `yaml:"endpoint"`
	Model    string  `yaml:"model"` // tts-1 or tts-1-hd
	Speed    float64 `yaml:"speed"` // 0.25 to 4.0
}

// OpenAIProvider synthesizes with the OpenAI audio/speech API, asking for
// raw 24 kHz PCM so no decoding is needed.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// NewOpenAIProvider creates the provider. The API key is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = openAITTSEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Load(ctx context.Context) error {
	if p.cfg.Speed < 0.25 || p.cfg.Speed > 4 {
		return fmt.Errorf("openai tts: speed %v out of range [0.25, 4]", p.cfg.Speed)
	}
	return nil
}

// Synthesize implements Synthesizer. OpenAI voices are multilingual, so lang
// only matters through the input text.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	v, ok := openAIVoices[voice]
	if !ok {
		v = openAIDefaultVoice
	}

	payload, err := json.Marshal(openAISpeechRequest{
		Model:          p.cfg.Model,
		Input:          text,
		Voice:          v,
		ResponseFormat: "pcm",
		Speed:          p.cfg.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	return doAudioRequest(p.httpClient, req)
}

var _ Synthesizer = (*OpenAIProvider)(nil)
