package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	elevenLabsEndpoint     = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsDefaultModel = "eleven_multilingual_v2"
	elevenLabsOutputFormat = "pcm_24000"
)

// ElevenLabsConfig configures the ElevenLabs text-to-speech API.
type ElevenLabsConfig struct {
	APIKey   string `yaml:"-"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	// VoiceID is used for voice types missing from Voices.
	VoiceID string `yaml:"voice_id"`
	// Voices maps catalog voice types to ElevenLabs voice ids.
	Voices              map[string]string `yaml:"voices"`
	Stability           float64           `yaml:"stability"`
	SimilarityBoost     float64           `yaml:"similarity_boost"`
	LatencyOptimization int               `yaml:"latency_optimization"`
}

// ElevenLabsProvider synthesizes with the ElevenLabs REST API.
type ElevenLabsProvider struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	LanguageCode  string                   `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

// NewElevenLabsProvider creates the provider. APIKey and VoiceID are
// required.
func NewElevenLabsProvider(cfg ElevenLabsConfig) (*ElevenLabsProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ElevenLabs API key is required")
	}
	if cfg.VoiceID == "" {
		return nil, errors.New("ElevenLabs voice id is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = elevenLabsEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsDefaultModel
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}
	if cfg.LatencyOptimization == 0 {
		cfg.LatencyOptimization = 3
	}
	return &ElevenLabsProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Load(ctx context.Context) error {
	if p.cfg.LatencyOptimization < 0 || p.cfg.LatencyOptimization > 4 {
		return fmt.Errorf("elevenlabs: latency_optimization must be 0-4, got %d", p.cfg.LatencyOptimization)
	}
	return nil
}

func (p *ElevenLabsProvider) voiceID(voice string) string {
	if id, ok := p.cfg.Voices[voice]; ok && id != "" {
		return id
	}
	return p.cfg.VoiceID
}

// Synthesize implements Synthesizer.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	params := url.Values{}
	params.Set("output_format", elevenLabsOutputFormat)
	params.Set("optimize_streaming_latency", strconv.Itoa(p.cfg.LatencyOptimization))
	requestURL := fmt.Sprintf("%s/%s?%s", p.cfg.Endpoint, url.PathEscape(p.voiceID(voice)), params.Encode())

	payload, err := json.Marshal(elevenLabsRequest{
		Text:         text,
		ModelID:      p.cfg.Model,
		LanguageCode: lang,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       p.cfg.Stability,
			SimilarityBoost: p.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	return doAudioRequest(p.httpClient, req)
}

var _ Synthesizer = (*ElevenLabsProvider)(nil)
