package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/realtime-ai/interpreter/pkg/asr"
	"github.com/realtime-ai/interpreter/pkg/metrics"
	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/sequencer"
	"github.com/realtime-ai/interpreter/pkg/vad"
)

const testWindow = 400

type stubRecognizer struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubRecognizer) Name() string                   { return "stub-asr" }
func (s *stubRecognizer) Load(ctx context.Context) error { return nil }

func (s *stubRecognizer) Transcribe(ctx context.Context, pcm []byte, lang string) (*asr.RecognitionResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &asr.RecognitionResult{Text: s.text, Language: lang}, nil
}

type stubTranslator struct{}

func (stubTranslator) Name() string                   { return "stub-translate" }
func (stubTranslator) Load(ctx context.Context) error { return nil }

func (stubTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	return src + "->" + tgt + ":" + text, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Name() string                   { return "stub-tts" }
func (stubSynthesizer) Load(ctx context.Context) error { return nil }

func (stubSynthesizer) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	return []byte{1, 2, 3, 4}, nil
}

func constant(n int, level float32) []byte {
	out := make([]byte, n*2)
	v := uint16(int16(level * 32767))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

type testEnv struct {
	srv     *Server
	http    *httptest.Server
	metrics *metrics.Metrics
	rec     *stubRecognizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rec := &stubRecognizer{text: "hello"}
	m := metrics.New()
	orch, err := pipeline.NewOrchestrator(pipeline.Capabilities{
		Recognizer:  rec,
		Translator:  stubTranslator{},
		Synthesizer: stubSynthesizer{},
	}, pipeline.WithMetrics(m))
	require.NoError(t, err)

	newSegmenter := func() (*vad.Segmenter, error) {
		cfg := vad.DefaultSegmenterConfig()
		cfg.WindowSize = testWindow
		return vad.NewSegmenter(cfg, vad.NewMockDetectorByAmplitude(0.1))
	}

	cfg := DefaultConfig()
	cfg.RealtimeBatchBytes = 2 * testWindow * 2
	srv, err := New(cfg, orch, sequencer.NewPool(4), newSegmenter, WithMetrics(m))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
		ts.Close()
	})

	return &testEnv{srv: srv, http: ts, metrics: m, rec: rec}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// next reads one frame. Binary frames come back as {"binary": n}.
func next(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	if mt == websocket.BinaryMessage {
		return map[string]any{"binary": len(data)}
	}
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Path = "ws"
	cfg.OutboxSize = 0
	cfg.RealtimeBatchBytes = 1001
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
	assert.Contains(t, err.Error(), "outbox_size")
	assert.Contains(t, err.Error(), "realtime_batch_bytes")
}

func TestNewRequiresOrchestrator(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestSessionCreate(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "session.create", "source_lang": "en", "target_lang": "th"})
	msg := next(t, conn)
	assert.Equal(t, "session.created", msg["type"])
	assert.NotEmpty(t, msg["session_id"])

	assert.Eventually(t, func() bool { return env.srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestInvalidMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	for _, raw := range []string{`not json`, `{"foo":1}`, `{"type":"nope"}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		msg := next(t, conn)
		assert.Equal(t, "error", msg["type"], raw)
		assert.Equal(t, "invalid_message", msg["code"], raw)
	}

	// The session survives bad input.
	sendJSON(t, conn, map[string]any{"type": "session.create"})
	assert.Equal(t, "session.created", next(t, conn)["type"])
}

func TestPushToTalk(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "session.create", "source_lang": "th", "target_lang": "en"})
	require.Equal(t, "session.created", next(t, conn)["type"])

	sendJSON(t, conn, map[string]any{"type": "input_audio.start"})
	// Recording suppresses realtime segmentation, so no vad events follow.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(8000, 0.3)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(8000, 0.3)))
	sendJSON(t, conn, map[string]any{"type": "input_audio.stop"})

	msg := next(t, conn)
	assert.Equal(t, "transcript.done", msg["type"])
	assert.Equal(t, "hello", msg["text"])
	assert.Contains(t, msg, "processing_time_ms")

	msg = next(t, conn)
	assert.Equal(t, "translation.done", msg["type"])
	assert.Equal(t, "th->en:hello", msg["text"])

	assert.Equal(t, 4, next(t, conn)["binary"])

	msg = next(t, conn)
	assert.Equal(t, "audio.done", msg["type"])
	assert.Equal(t, "seg_0001", msg["segment_id"])
	assert.Equal(t, int32(1), env.rec.calls.Load())
}

func TestStopWithoutAudioIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "input_audio.start"})
	sendJSON(t, conn, map[string]any{"type": "input_audio.stop"})
	sendJSON(t, conn, map[string]any{"type": "session.create"})

	assert.Equal(t, "session.created", next(t, conn)["type"])
	assert.Equal(t, int32(0), env.rec.calls.Load())
}

func TestRealtime(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, utterance()))
	assert.Equal(t, []string{
		"vad.speech_start",
		"vad.speech_end",
		"transcript.done",
		"translation.done",
		"binary",
		"audio.done",
	}, collectTypes(t, conn, 6))
}

func TestRealtimeBatchesSmallFrames(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	// Half a batch of speech is held until the next frame completes it.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(testWindow, 0.3)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	assert.Equal(t, "error", next(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(testWindow, 0.3)))
	assert.Equal(t, "vad.speech_start", next(t, conn)["type"])
}

func TestPipelineError(t *testing.T) {
	env := newTestEnv(t)
	env.rec.err = errors.New("model crashed")
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "input_audio.start"})
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(8000, 0.3)))
	sendJSON(t, conn, map[string]any{"type": "input_audio.stop"})

	msg := next(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "pipeline_error", msg["code"])
	assert.Contains(t, msg["message"], "model crashed")
}

func utterance() []byte {
	cfg := vad.DefaultSegmenterConfig()
	stream := constant(10*testWindow, 0.3)
	return append(stream, constant(cfg.SilenceWindows*testWindow, 0)...)
}

func collectTypes(t *testing.T, conn *websocket.Conn, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		msg := next(t, conn)
		if _, ok := msg["binary"]; ok {
			out = append(out, "binary")
			continue
		}
		out = append(out, msg["type"].(string))
	}
	return out
}

func TestRealtimePipelineErrorKeepsSpeechEnd(t *testing.T) {
	env := newTestEnv(t)
	env.rec.err = errors.New("model crashed")
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, utterance()))

	assert.Equal(t, "vad.speech_start", next(t, conn)["type"])
	assert.Equal(t, "vad.speech_end", next(t, conn)["type"])
	msg := next(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "pipeline_error", msg["code"])
}

func TestRecordingStartClosesRealtimeUtterance(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(10*testWindow, 0.3)))
	require.Equal(t, "vad.speech_start", next(t, conn)["type"])

	sendJSON(t, conn, map[string]any{"type": "input_audio.start"})
	assert.Equal(t, []string{
		"vad.speech_end",
		"transcript.done",
		"translation.done",
		"binary",
		"audio.done",
	}, collectTypes(t, conn, 5))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(8000, 0.3)))
	sendJSON(t, conn, map[string]any{"type": "input_audio.stop"})
	assert.Equal(t, []string{
		"transcript.done",
		"translation.done",
		"binary",
	}, collectTypes(t, conn, 3))
	assert.Equal(t, "seg_0002", next(t, conn)["segment_id"])

	// the flushed utterance does not end a second time
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, constant(vad.DefaultSegmenterConfig().SilenceWindows*testWindow, 0)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	assert.Equal(t, "error", next(t, conn)["type"])
	assert.Equal(t, int32(2), env.rec.calls.Load())
}

func TestUnitSpansNestUnderSession(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})

	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, utterance()))
	collectTypes(t, conn, 6)

	var sessionSpan sdktrace.ReadOnlySpan
	for _, span := range rec.Started() {
		if span.Name() == "session" {
			sessionSpan = span
		}
	}
	require.NotNil(t, sessionSpan)

	var units int
	for _, span := range rec.Ended() {
		switch span.Name() {
		case "sequencer.unit":
			units++
			assert.Equal(t, sessionSpan.SpanContext().SpanID(), span.Parent().SpanID())
		case "pipeline.utterance":
			assert.Equal(t, sessionSpan.SpanContext().TraceID(), span.SpanContext().TraceID())
		}
	}
	assert.Equal(t, 2, units)
}

func TestSessionClose(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "session.create"})
	require.Equal(t, "session.created", next(t, conn)["type"])
	sendJSON(t, conn, map[string]any{"type": "session.close"})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool { return env.srv.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthAndVoices(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(0), health["sessions"])
	assert.Equal(t, "stub-asr", health["recognizer"])

	resp, err = http.Get(env.http.URL + "/voices")
	require.NoError(t, err)
	defer resp.Body.Close()

	var voices struct {
		Voices []map[string]any `json:"voices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&voices))
	assert.NotEmpty(t, voices.Voices)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{"type": "session.create"})
	require.Equal(t, "session.created", next(t, conn)["type"])

	resp, err := http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "interp_active_sessions 1")
	assert.Contains(t, string(body), `interp_messages_received_total{type="session.create"} 1`)
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{cfg: Config{AllowedOrigins: []string{"https://app.example.com"}}}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, s.checkOrigin(req))
}

func TestTransportDropsAfterClose(t *testing.T) {
	env := newTestEnv(t)
	_ = env.dial(t)

	require.Eventually(t, func() bool { return env.srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	env.srv.mu.RLock()
	var tr Transport
	for _, c := range env.srv.connections {
		tr = c.transport
	}
	env.srv.mu.RUnlock()

	require.NoError(t, tr.Close())
	assert.True(t, tr.(*WebSocketTransport).Closed())
	assert.NoError(t, tr.SendAudio([]byte{1, 2}))
	assert.NoError(t, tr.Close())
}
