package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Translate.Cache.Enabled())
	assert.Equal(t, ProviderWhisper, cfg.ASR.Provider)
	assert.Equal(t, 16000, cfg.Server.RealtimeBatchBytes)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: console
server:
  addr: ":9000"
  write_timeout: 3s
vad:
  segmenter:
    silence_windows: 24
    pre_roll_ms: 200
asr:
  gate:
    min_duration: 500ms
translate:
  provider: gemini
  cache:
    addr: localhost:6379
    ttl: 1h
tts:
  provider: azure
  azure:
    region: eastus
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "/ws", cfg.Server.Path, "unset fields keep defaults")
	assert.Equal(t, 24, cfg.VAD.Segmenter.SilenceWindows)
	assert.Equal(t, 512, cfg.VAD.Segmenter.WindowSize)
	assert.Equal(t, 500*time.Millisecond, cfg.ASR.Gate.MinDuration)
	assert.NotEmpty(t, cfg.ASR.Gate.Denylist)
	assert.Equal(t, ProviderGemini, cfg.Translate.Provider)
	assert.True(t, cfg.Translate.Cache.Enabled())
	assert.Equal(t, time.Hour, cfg.Translate.Cache.TTL)
	assert.Equal(t, "eastus", cfg.TTS.Azure.Region)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(writeFile(t, "server:\n  port: 80\n"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, `
asr:
  provider: vosk
tts:
  provider: espeak
vad:
  segmenter:
    threshold: 2
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "asr.provider")
		assert.Contains(t, err.Error(), "tts.provider")
		assert.Contains(t, err.Error(), "threshold")
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTERP_ADDR", ":7000")
	t.Setenv("INTERP_LOG_LEVEL", "warn")
	t.Setenv("INTERP_TRANSLATE_PROVIDER", "none")
	t.Setenv("INTERP_POOL_SIZE", "3")
	t.Setenv("INTERP_REDIS_ADDR", "redis:6379")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://proxy/v1")
	t.Setenv("GOOGLE_API_KEY", "g-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
	t.Setenv("AZURE_SPEECH_KEY", "az-test")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")

	cfg, err := Load(writeFile(t, "server:\n  addr: \":9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr, "environment wins over file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ProviderNone, cfg.Translate.Provider)
	assert.Equal(t, 3, cfg.Pipeline.PoolSize)
	assert.Equal(t, "redis:6379", cfg.Translate.Cache.Addr)

	assert.Equal(t, "sk-test", cfg.ASR.Whisper.APIKey)
	assert.Equal(t, "sk-test", cfg.Translate.OpenAI.APIKey)
	assert.Equal(t, "sk-test", cfg.TTS.OpenAI.APIKey)
	assert.Equal(t, "sk-test", cfg.Filter.LLMConfig.APIKey)
	assert.Equal(t, "http://proxy/v1", cfg.ASR.Whisper.BaseURL)
	assert.Equal(t, "g-test", cfg.Translate.Gemini.APIKey)
	assert.Equal(t, "el-test", cfg.TTS.ElevenLabs.APIKey)
	assert.Equal(t, "az-test", cfg.TTS.Azure.SubscriptionKey)
	assert.Equal(t, "westeurope", cfg.TTS.Azure.Region)
}

func TestEnvPoolSizeInvalid(t *testing.T) {
	t.Setenv("INTERP_POOL_SIZE", "many")
	_, err := Load("")
	assert.Error(t, err)
}
