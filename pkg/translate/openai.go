package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures the chat-completion translator. BaseURL allows any
// OpenAI-compatible endpoint such as OpenRouter.
type OpenAIConfig struct {
	APIKey     string `yaml:"-"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

// OpenAITranslator translates with a chat model.
type OpenAITranslator struct {
	client openai.Client
	model  string
}

// NewOpenAITranslator creates the translator. The API key is required.
func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai translator: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &OpenAITranslator{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (t *OpenAITranslator) Name() string { return "openai" }

func (t *OpenAITranslator) Load(ctx context.Context) error { return nil }

func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	completion, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildPrompt(sourceLang, targetLang)),
			openai.UserMessage(text),
		},
		Model:       shared.ChatModel(t.model),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai translate: no choices in response")
	}
	return completion.Choices[0].Message.Content, nil
}

var _ Translator = (*OpenAITranslator)(nil)
