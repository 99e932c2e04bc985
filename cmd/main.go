package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/asr"
	"github.com/realtime-ai/interpreter/pkg/audio"
	"github.com/realtime-ai/interpreter/pkg/config"
	"github.com/realtime-ai/interpreter/pkg/logger"
	"github.com/realtime-ai/interpreter/pkg/metrics"
	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/sequencer"
	"github.com/realtime-ai/interpreter/pkg/server"
	"github.com/realtime-ai/interpreter/pkg/textfilter"
	"github.com/realtime-ai/interpreter/pkg/trace"
	"github.com/realtime-ai/interpreter/pkg/translate"
	"github.com/realtime-ai/interpreter/pkg/tts"
	"github.com/realtime-ai/interpreter/pkg/vad"
)

const loadTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("INTERP_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, cfg.Trace, log); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Warn("trace shutdown", zap.Error(err))
		}
	}()

	m := metrics.New()
	catalog := tts.DefaultCatalog()

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	caps, closeCaps := buildCapabilities(loadCtx, cfg, catalog, log)
	cancel()
	defer closeCaps()

	orch, err := pipeline.NewOrchestrator(caps,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithRealtimeFilter(cfg.Pipeline.RealtimeFilter))
	if err != nil {
		return err
	}

	factory, err := vad.NewFactory(cfg.VAD.ModelPath, cfg.VAD.Segmenter.SampleRate, log)
	if err != nil {
		return fmt.Errorf("vad: %w", err)
	}
	newSegmenter := func() (*vad.Segmenter, error) {
		det, err := factory()
		if err != nil {
			return nil, err
		}
		seg, err := vad.NewSegmenter(cfg.VAD.Segmenter, det, vad.WithLogger(log))
		if err != nil {
			det.Destroy()
			return nil, err
		}
		return seg, nil
	}

	pool := sequencer.NewPool(int64(cfg.Pipeline.PoolSize))
	srv, err := server.New(cfg.Server, orch, pool, newSegmenter,
		server.WithLogger(log),
		server.WithMetrics(m),
		server.WithCatalog(catalog))
	if err != nil {
		return err
	}

	d := orch.Describe()
	log.Info("pipeline ready",
		zap.String("recognizer", d.Recognizer),
		zap.String("translator", d.Translator),
		zap.String("synthesizer", d.Synthesizer),
		zap.String("filter", d.Filter),
		zap.String("denoiser", d.Denoiser),
		zap.Int64("pool_size", pool.Size()))

	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Stop(shutdownCtx)
}

// buildCapabilities creates and loads each stage. A stage that fails to
// load degrades instead of stopping the process.
func buildCapabilities(ctx context.Context, cfg *config.Config, catalog *tts.Catalog, log *zap.Logger) (pipeline.Capabilities, func()) {
	var caps pipeline.Capabilities
	closers := []func(){}

	if cfg.Pipeline.Denoise {
		caps.Denoiser = pipeline.NewNoiseGate()
	}

	rec := buildRecognizer(ctx, cfg.ASR, log)
	gateCfg := cfg.ASR.Gate
	gateCfg.SampleRate = audio.InputSampleRate
	caps.Recognizer = asr.NewGate(rec, gateCfg, log)

	tr := buildTranslator(ctx, cfg.Translate, log)
	if cfg.Translate.Cache.Enabled() && cfg.Translate.Provider != config.ProviderNone {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Translate.Cache.Addr,
			Password: cfg.Translate.Cache.Password,
			DB:       cfg.Translate.Cache.DB,
		})
		closers = append(closers, func() { client.Close() })
		cache := translate.NewCache(tr, client,
			translate.WithCacheTTL(cfg.Translate.Cache.TTL),
			translate.WithCachePrefix(cfg.Translate.Cache.Prefix),
			translate.WithCacheLogger(log))
		if err := cache.Load(ctx); err != nil {
			log.Warn("translation cache disabled", zap.Error(err))
		} else {
			tr = cache
		}
	}
	caps.Translator = tr

	caps.Synthesizer = buildSynthesizer(ctx, cfg.TTS, catalog, log)
	caps.Filter = buildFilter(ctx, cfg.Filter, log)

	return caps, func() {
		for _, c := range closers {
			c()
		}
	}
}

func buildRecognizer(ctx context.Context, cfg config.ASRConfig, log *zap.Logger) asr.Recognizer {
	if cfg.Provider == config.ProviderNone {
		return &asr.Unavailable{Backend: "none", Cause: errors.New("no recognizer configured")}
	}

	wcfg := cfg.Whisper
	wcfg.SampleRate = audio.InputSampleRate
	rec, err := asr.NewWhisperRecognizer(wcfg, log)
	if err == nil {
		err = rec.Load(ctx)
	}
	if err != nil {
		log.Error("recognizer unavailable, utterances will fail", zap.String("provider", cfg.Provider), zap.Error(err))
		return &asr.Unavailable{Backend: cfg.Provider, Cause: err}
	}
	return rec
}

func buildTranslator(ctx context.Context, cfg config.TranslateConfig, log *zap.Logger) translate.Translator {
	var (
		tr  translate.Translator
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		tr, err = translate.NewOpenAITranslator(cfg.OpenAI)
	case config.ProviderGemini:
		tr, err = translate.NewGeminiTranslator(cfg.Gemini)
	default:
		return translate.Passthrough{}
	}
	if err == nil {
		err = tr.Load(ctx)
	}
	if err != nil {
		log.Warn("translator unavailable, passing text through", zap.String("provider", cfg.Provider), zap.Error(err))
		return translate.Passthrough{}
	}
	return tr
}

func buildSynthesizer(ctx context.Context, cfg config.TTSConfig, catalog *tts.Catalog, log *zap.Logger) tts.Synthesizer {
	var (
		s   tts.Synthesizer
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		s, err = tts.NewOpenAIProvider(cfg.OpenAI)
	case config.ProviderElevenLabs:
		s, err = tts.NewElevenLabsProvider(cfg.ElevenLabs)
	case config.ProviderAzure:
		s, err = tts.NewAzureProvider(cfg.Azure, catalog)
	default:
		return &tts.SilenceSynthesizer{SampleRate: audio.OutputSampleRate}
	}
	if err == nil {
		err = s.Load(ctx)
	}
	if err != nil {
		log.Warn("synthesizer unavailable, sending silence", zap.String("provider", cfg.Provider), zap.Error(err))
		return &tts.SilenceSynthesizer{SampleRate: audio.OutputSampleRate}
	}
	return tts.WithChunking(s, cfg.MaxChunkChars)
}

func buildFilter(ctx context.Context, cfg config.FilterConfig, log *zap.Logger) textfilter.Filter {
	var chain textfilter.Chain
	if cfg.Repetition {
		chain = append(chain, &textfilter.RepetitionFilter{Policy: textfilter.TranscriptRepetition})
	}
	if cfg.LLM {
		f, err := textfilter.NewLLMFilter(cfg.LLMConfig)
		if err != nil {
			log.Warn("llm filter disabled", zap.Error(err))
		} else {
			chain = append(chain, f)
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}
