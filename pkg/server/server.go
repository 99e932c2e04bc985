// Package server exposes the interpretation pipeline over WebSocket plus a
// small HTTP surface for health, voices and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/metrics"
	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/sequencer"
	"github.com/realtime-ai/interpreter/pkg/session"
	"github.com/realtime-ai/interpreter/pkg/tts"
	"github.com/realtime-ai/interpreter/pkg/vad"
)

// Config holds the server configuration.
type Config struct {
	Addr string `yaml:"addr"`
	// Path is the WebSocket endpoint.
	Path string `yaml:"path"`

	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
	// MaxMessageBytes limits a single inbound frame. Zero means no limit.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// OutboxSize is the number of frames queued per connection before
	// delivery waits for the writer.
	OutboxSize int `yaml:"outbox_size"`

	// RealtimeBatchBytes is how much audio accumulates before segmentation
	// runs in realtime mode. 16000 bytes is 500 ms at 16 kHz.
	RealtimeBatchBytes int `yaml:"realtime_batch_bytes"`

	// AllowedOrigins restricts browser origins. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8000",
		Path:               "/ws",
		ReadBufferSize:     4096,
		WriteBufferSize:    4096,
		MaxMessageBytes:    4 << 20,
		WriteTimeout:       10 * time.Second,
		OutboxSize:         64,
		RealtimeBatchBytes: 16000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Path == "" || c.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("path must start with '/', got %q", c.Path))
	}
	if c.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox_size must be positive, got %d", c.OutboxSize))
	}
	if c.RealtimeBatchBytes <= 0 || c.RealtimeBatchBytes%2 != 0 {
		errs = append(errs, fmt.Errorf("realtime_batch_bytes must be a positive even number, got %d", c.RealtimeBatchBytes))
	}
	return errors.Join(errs...)
}

// SegmenterFactory builds the segmenter for a new connection.
type SegmenterFactory func() (*vad.Segmenter, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics registers the /metrics endpoint and records connection
// metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCatalog sets the catalog served by /voices.
func WithCatalog(c *tts.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// Server accepts interpretation sessions.
type Server struct {
	cfg          Config
	orch         *pipeline.Orchestrator
	pool         *sequencer.Pool
	newSegmenter SegmenterFactory
	catalog      *tts.Catalog
	metrics      *metrics.Metrics
	logger       *zap.Logger

	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu          sync.RWMutex
	connections map[string]*connection

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server. newSegmenter is called once per connection.
func New(cfg Config, orch *pipeline.Orchestrator, pool *sequencer.Pool, newSegmenter SegmenterFactory, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if orch == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if pool == nil {
		pool = sequencer.NewPool(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:          cfg,
		orch:         orch,
		pool:         pool,
		newSegmenter: newSegmenter,
		catalog:      tts.DefaultCatalog(),
		logger:       zap.NewNop(),
		connections:  make(map[string]*connection),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.Path, s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/voices", s.handleVoices)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on cfg.Addr and serves in the background. It returns once
// the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("path", s.cfg.Path))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop closes every session and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.RLock()
	conns := make([]*connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.transport.Close()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var seg *vad.Segmenter
	if s.newSegmenter != nil {
		var err error
		if seg, err = s.newSegmenter(); err != nil {
			s.logger.Error("failed to create segmenter", zap.Error(err))
			http.Error(w, "speech segmentation unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		if seg != nil {
			seg.Close()
		}
		return
	}

	c := newConnection(s, conn, session.New(seg))
	s.register(c)
	c.logger.Info("session opened", zap.String("remote", r.RemoteAddr))
	c.serve()
}

func (s *Server) register(c *connection) {
	s.mu.Lock()
	s.connections[c.sess.ID] = c
	s.mu.Unlock()
	s.metrics.SessionOpened()
}

func (s *Server) unregister(c *connection) {
	s.mu.Lock()
	_, ok := s.connections[c.sess.ID]
	delete(s.connections, c.sess.ID)
	s.mu.Unlock()
	if ok {
		s.metrics.SessionClosed()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
