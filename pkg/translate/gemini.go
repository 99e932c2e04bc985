package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini translator.
type GeminiConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

// GeminiTranslator translates with the Gemini GenerateContent API. The
// client is created by Load.
type GeminiTranslator struct {
	cfg GeminiConfig

	mu     sync.RWMutex
	client *genai.Client
}

// NewGeminiTranslator creates the translator. The API key is required.
func NewGeminiTranslator(cfg GeminiConfig) (*GeminiTranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini translator: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiTranslator{cfg: cfg}, nil
}

func (t *GeminiTranslator) Name() string { return "gemini" }

func (t *GeminiTranslator) Load(ctx context.Context) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  t.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

func (t *GeminiTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return "", errors.New("gemini translate: not loaded")
	}

	resp, err := client.Models.GenerateContent(ctx, t.cfg.Model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: buildPrompt(sourceLang, targetLang)}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("gemini translate: %w", err)
	}

	out := collectGeminiText(resp)
	if out == "" {
		return "", errors.New("gemini translate: no response")
	}
	return out, nil
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

var _ Translator = (*GeminiTranslator)(nil)
