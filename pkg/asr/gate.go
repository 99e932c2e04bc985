package asr

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/audio"
	"github.com/realtime-ai/interpreter/pkg/textfilter"
)

// GateConfig holds the plausibility limits applied around a recognizer.
type GateConfig struct {
	SampleRate  int           `yaml:"-"`
	MinDuration time.Duration `yaml:"min_duration"`
	MinRMS      float64       `yaml:"min_rms"`
	// MaxCharsPerSecond rejects transcripts longer than the audio could
	// plausibly contain. Zero disables the check.
	MaxCharsPerSecond float64 `yaml:"max_chars_per_second"`
	// Denylist holds phrases recognizers emit on silence or noise. A
	// transcript equal to one of them, ignoring case and punctuation, is
	// dropped.
	Denylist []string `yaml:"denylist"`
}

// DefaultGateConfig returns limits that suit 16 kHz close-talk input.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SampleRate:        audio.InputSampleRate,
		MinDuration:       300 * time.Millisecond,
		MinRMS:            0.01,
		MaxCharsPerSecond: 80,
		Denylist: []string{
			"thank you for watching",
			"thanks for watching",
			"please subscribe",
			"subtitles by the amara.org community",
			"ขอบคุณที่รับชม",
			"字幕由amara.org社区提供",
			"ご視聴ありがとうございました",
		},
	}
}

// Gate wraps a Recognizer with the soft-failure rules: audio that is too
// short or too quiet never reaches the backend, and implausible output is
// discarded. Backend errors pass through unchanged.
type Gate struct {
	next     Recognizer
	cfg      GateConfig
	denylist map[string]struct{}
	logger   *zap.Logger
}

// NewGate wraps next.
func NewGate(next Recognizer, cfg GateConfig, logger *zap.Logger) *Gate {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.InputSampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	deny := make(map[string]struct{}, len(cfg.Denylist))
	for _, p := range cfg.Denylist {
		deny[normalizePhrase(p)] = struct{}{}
	}
	return &Gate{next: next, cfg: cfg, denylist: deny, logger: logger.Named("asr-gate")}
}

func (g *Gate) Name() string { return g.next.Name() }

func (g *Gate) Load(ctx context.Context) error { return g.next.Load(ctx) }

// Transcribe implements Recognizer.
func (g *Gate) Transcribe(ctx context.Context, pcm []byte, sourceLang string) (*RecognitionResult, error) {
	dur := audio.Duration(pcm, g.cfg.SampleRate)
	skipped := func(reason SkipReason) *RecognitionResult {
		return &RecognitionResult{Language: sourceLang, AudioDuration: dur, Skipped: reason}
	}

	if dur < g.cfg.MinDuration {
		g.logger.Debug("audio too short, skipping", zap.Duration("duration", dur))
		return skipped(SkipTooShort), nil
	}
	if rms := audio.PCMRMS(pcm); rms < g.cfg.MinRMS {
		g.logger.Debug("audio too quiet, skipping", zap.Float64("rms", rms))
		return skipped(SkipTooQuiet), nil
	}

	res, err := g.next.Transcribe(ctx, pcm, sourceLang)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return skipped(SkipNone), nil
	}
	res.AudioDuration = dur

	text := strings.TrimSpace(res.Text)
	if truncated, changed := textfilter.TranscriptRepetition.Truncate(text); changed {
		g.logger.Warn("repetition in transcript, truncating", zap.String("text", text))
		text = truncated
	}

	if g.cfg.MaxCharsPerSecond > 0 && float64(utf8.RuneCountInString(text)) > dur.Seconds()*g.cfg.MaxCharsPerSecond {
		g.logger.Warn("transcript too long for audio, dropping",
			zap.Duration("duration", dur), zap.Int("chars", utf8.RuneCountInString(text)))
		return skipped(SkipImplausible), nil
	}
	if _, ok := g.denylist[normalizePhrase(text)]; ok && text != "" {
		g.logger.Info("denylisted transcript dropped", zap.String("text", text))
		return skipped(SkipDenylisted), nil
	}

	res.Text = text
	return res, nil
}

// normalizePhrase lowercases s and drops punctuation and surrounding space.
func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) && r != '.' {
			return -1
		}
		return r
	}, s), func(r rune) bool { return unicode.IsSpace(r) || r == '.' })
}

var _ Recognizer = (*Gate)(nil)
