package textfilter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultCleanupPrompt = "You correct speech-to-text output. " +
	"Fix misheard or misspelled words, remove text the recognizer invented " +
	"(such as video sign-off phrases) and remove needless repetition. " +
	"Reply with the corrected text only, in the original language. " +
	"Never translate, never explain, never add content that is not in the input."

// LLMConfig configures the chat-model clean-up filter.
type LLMConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Prompt  string `yaml:"prompt"`
	// MaxRetries overrides the client's retry count when non-negative.
	MaxRetries int `yaml:"max_retries"`
}

// LLMFilter asks a chat model to clean a transcript.
type LLMFilter struct {
	client openai.Client
	model  string
	prompt string
}

// NewLLMFilter creates the filter. The API key is required.
func NewLLMFilter(cfg LLMConfig) (*LLMFilter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm filter: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultCleanupPrompt
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &LLMFilter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		prompt: cfg.Prompt,
	}, nil
}

func (f *LLMFilter) Name() string { return "llm:" + f.model }

func (f *LLMFilter) Process(ctx context.Context, text string) (string, error) {
	completion, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(f.prompt),
			openai.UserMessage(text),
		},
		Model:       shared.ChatModel(f.model),
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return "", fmt.Errorf("llm filter: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("llm filter: no choices in response")
	}
	return completion.Choices[0].Message.Content, nil
}
