// Package config loads the service configuration: defaults, then an
// optional YAML file, then .env and the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/realtime-ai/interpreter/pkg/asr"
	"github.com/realtime-ai/interpreter/pkg/server"
	"github.com/realtime-ai/interpreter/pkg/textfilter"
	"github.com/realtime-ai/interpreter/pkg/trace"
	"github.com/realtime-ai/interpreter/pkg/translate"
	"github.com/realtime-ai/interpreter/pkg/tts"
	"github.com/realtime-ai/interpreter/pkg/vad"
)

// Provider names.
const (
	ProviderWhisper    = "whisper"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
	ProviderAzure      = "azure"
	ProviderSilence    = "silence"
	ProviderNone       = "none"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    server.Config   `yaml:"server"`
	VAD       VADConfig       `yaml:"vad"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	ASR       ASRConfig       `yaml:"asr"`
	Translate TranslateConfig `yaml:"translate"`
	TTS       TTSConfig       `yaml:"tts"`
	Filter    FilterConfig    `yaml:"filter"`
	Trace     trace.Config    `yaml:"trace"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// VADConfig selects the speech classifier. An empty ModelPath uses the
// energy detector.
type VADConfig struct {
	ModelPath string              `yaml:"model_path"`
	Segmenter vad.SegmenterConfig `yaml:"segmenter"`
}

type PipelineConfig struct {
	// PoolSize bounds concurrent pipeline units across all sessions. Zero
	// means twice the CPU count.
	PoolSize int `yaml:"pool_size"`
	// Denoise enables the noise gate for sessions that ask for it.
	Denoise bool `yaml:"denoise"`
	// RealtimeFilter runs the text filter on realtime utterances too.
	RealtimeFilter bool `yaml:"realtime_filter"`
}

type ASRConfig struct {
	Provider string            `yaml:"provider"`
	Whisper  asr.WhisperConfig `yaml:"whisper"`
	Gate     asr.GateConfig    `yaml:"gate"`
}

type TranslateConfig struct {
	Provider string                 `yaml:"provider"`
	OpenAI   translate.OpenAIConfig `yaml:"openai"`
	Gemini   translate.GeminiConfig `yaml:"gemini"`
	Cache    CacheConfig            `yaml:"cache"`
}

// CacheConfig enables the Redis translation cache when Addr is set.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

func (c CacheConfig) Enabled() bool { return c.Addr != "" }

type TTSConfig struct {
	Provider string `yaml:"provider"`
	// MaxChunkChars splits longer translations into several requests.
	// Zero disables chunking.
	MaxChunkChars int                  `yaml:"max_chunk_chars"`
	OpenAI        tts.OpenAIConfig     `yaml:"openai"`
	ElevenLabs    tts.ElevenLabsConfig `yaml:"elevenlabs"`
	Azure         tts.AzureConfig      `yaml:"azure"`
}

type FilterConfig struct {
	Repetition bool                 `yaml:"repetition"`
	LLM        bool                 `yaml:"llm"`
	LLMConfig  textfilter.LLMConfig `yaml:"llm_config"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Server: server.DefaultConfig(),
		VAD:    VADConfig{Segmenter: vad.DefaultSegmenterConfig()},
		Pipeline: PipelineConfig{
			Denoise: true,
		},
		ASR: ASRConfig{
			Provider: ProviderWhisper,
			Gate:     asr.DefaultGateConfig(),
		},
		Translate: TranslateConfig{
			Provider: ProviderOpenAI,
			Cache:    CacheConfig{TTL: 24 * time.Hour, Prefix: "interp:tr"},
		},
		TTS:    TTSConfig{Provider: ProviderOpenAI, MaxChunkChars: tts.DefaultChunkChars},
		Filter: FilterConfig{Repetition: true},
		Trace:  trace.DefaultConfig(),
	}
}

// Load builds the configuration. path may be empty. A missing .env file is
// not an error; a missing config file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str("INTERP_ADDR", &c.Server.Addr)
	str("INTERP_LOG_LEVEL", &c.Log.Level)
	str("INTERP_LOG_FORMAT", &c.Log.Format)
	str("INTERP_VAD_MODEL", &c.VAD.ModelPath)
	str("INTERP_ASR_PROVIDER", &c.ASR.Provider)
	str("INTERP_TRANSLATE_PROVIDER", &c.Translate.Provider)
	str("INTERP_TTS_PROVIDER", &c.TTS.Provider)
	str("INTERP_TRACE_EXPORTER", &c.Trace.ExporterType)
	str("INTERP_OTLP_ENDPOINT", &c.Trace.OTLPEndpoint)
	str("INTERP_REDIS_ADDR", &c.Translate.Cache.Addr)
	str("INTERP_REDIS_PASSWORD", &c.Translate.Cache.Password)

	if v, ok := os.LookupEnv("INTERP_POOL_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INTERP_POOL_SIZE: %w", err)
		}
		c.Pipeline.PoolSize = n
	}

	// Provider keys are only read from the environment.
	openaiKey := os.Getenv("OPENAI_API_KEY")
	c.ASR.Whisper.APIKey = openaiKey
	c.Translate.OpenAI.APIKey = openaiKey
	c.TTS.OpenAI.APIKey = openaiKey
	c.Filter.LLMConfig.APIKey = openaiKey
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		c.ASR.Whisper.BaseURL = base
		c.Translate.OpenAI.BaseURL = base
		c.Filter.LLMConfig.BaseURL = base
	}

	c.Translate.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	c.TTS.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.TTS.Azure.SubscriptionKey = os.Getenv("AZURE_SPEECH_KEY")
	str("AZURE_SPEECH_REGION", &c.TTS.Azure.Region)
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.VAD.Segmenter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad.segmenter: %w", err))
	}
	if err := c.Trace.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("trace: %w", err))
	}
	if c.Pipeline.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.pool_size must not be negative, got %d", c.Pipeline.PoolSize))
	}

	errs = append(errs,
		oneOf("asr.provider", c.ASR.Provider, ProviderWhisper, ProviderNone),
		oneOf("translate.provider", c.Translate.Provider, ProviderOpenAI, ProviderGemini, ProviderNone),
		oneOf("tts.provider", c.TTS.Provider, ProviderOpenAI, ProviderElevenLabs, ProviderAzure, ProviderSilence),
	)
	if c.Translate.Cache.Enabled() && c.Translate.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("translate.cache.ttl must be positive, got %s", c.Translate.Cache.TTL))
	}

	return errors.Join(errs...)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported %q (want one of %v)", field, value, allowed)
}
