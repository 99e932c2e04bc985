package server

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/protocol"
	"github.com/realtime-ai/interpreter/pkg/sequencer"
	"github.com/realtime-ai/interpreter/pkg/session"
	"github.com/realtime-ai/interpreter/pkg/trace"
)

// frame is one queued write: a control message or, when msg is nil, audio.
type frame struct {
	msg   protocol.ServerMessage
	audio []byte
}

// connection runs one client: the read loop owns the session, the
// sequencer's delivery goroutine produces frames, and the write loop is the
// only writer to the transport.
type connection struct {
	srv       *Server
	conn      *websocket.Conn
	transport Transport
	sess      *session.Session
	seq       *sequencer.Sequencer
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	span   oteltrace.Span

	outbox    chan frame
	writeDone chan struct{}
	closeOnce sync.Once
}

func newConnection(srv *Server, conn *websocket.Conn, sess *session.Session) *connection {
	settings := sess.Settings()
	ctx, span := trace.InstrumentSession(srv.ctx, sess.ID, settings.SourceLang, settings.TargetLang, settings.Voice)
	ctx, cancel := context.WithCancel(ctx)
	c := &connection{
		srv:       srv,
		conn:      conn,
		transport: NewWebSocketTransport(conn, srv.cfg.WriteTimeout),
		sess:      sess,
		logger:    srv.logger.With(zap.String("session_id", sess.ID)),
		ctx:       ctx,
		cancel:    cancel,
		span:      span,
		outbox:    make(chan frame, srv.cfg.OutboxSize),
		writeDone: make(chan struct{}),
	}
	c.seq = sequencer.New(srv.pool, c.deliver,
		sequencer.WithContext(ctx),
		sequencer.WithLogger(c.logger),
		sequencer.WithMetrics(srv.metrics))
	return c
}

// serve blocks until the client disconnects or the server stops.
func (c *connection) serve() {
	go c.writeLoop()
	defer c.close()

	if c.srv.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.srv.cfg.MaxMessageBytes)
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleAudio(data)
		case websocket.TextMessage:
			c.handleText(data)
		}
	}
}

func (c *connection) handleText(data []byte) {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		c.logger.Debug("invalid client message", zap.Error(err))
		c.sendError(protocol.ErrCodeInvalidMessage, err.Error())
		return
	}
	c.srv.metrics.MessageReceived(string(msg.MessageType()))

	switch m := msg.(type) {
	case *protocol.SessionCreate:
		err := c.sess.Configure(m.SourceLang, m.TargetLang, m.Voice, m.DenoiseOr(session.DefaultDenoise))
		if err != nil {
			c.logger.Warn("segmenter reset failed", zap.Error(err))
		}
		settings := c.sess.Settings()
		trace.SetAttributes(trace.SpanFromContext(c.ctx),
			trace.SessionAttrs(settings.SessionID, settings.SourceLang, settings.TargetLang, settings.Voice)...)
		c.logger.Info("session configured",
			zap.String("source_lang", settings.SourceLang),
			zap.String("target_lang", settings.TargetLang),
			zap.String("voice", settings.Voice),
			zap.Bool("denoise", settings.Denoise))
		c.send(frame{msg: protocol.NewSessionCreated(c.sess.ID)})

	case *protocol.InputAudioStart:
		if !c.sess.Recording() {
			// close any realtime utterance so it is not merged with audio
			// that arrives after the recording
			orch := c.srv.orch
			units := orch.Segment(c.sess.Drain(), c.sess)
			units = append(units, orch.Flush(c.sess)...)
			c.dispatchUnits(units)
		}
		c.sess.StartRecording()

	case *protocol.InputAudioStop:
		pcm := c.sess.StopRecording()
		if len(pcm) == 0 {
			return
		}
		settings := c.sess.Settings()
		orch := c.srv.orch
		c.seq.Dispatch(func(ctx context.Context) (*pipeline.Result, error) {
			return orch.ProcessSegment(ctx, pcm, settings)
		})

	case *protocol.SessionClose:
		c.transport.Close()
	}
}

func (c *connection) handleAudio(data []byte) {
	c.sess.Append(data)
	if c.sess.Recording() || c.sess.Buffered() < c.srv.cfg.RealtimeBatchBytes {
		return
	}

	c.dispatchUnits(c.srv.orch.Segment(c.sess.Drain(), c.sess))
}

func (c *connection) dispatchUnits(units []pipeline.Unit) {
	orch := c.srv.orch
	for _, unit := range units {
		c.seq.Dispatch(func(ctx context.Context) (*pipeline.Result, error) {
			return unit.Run(ctx, orch)
		})
	}
}

// deliver runs on the sequencer's delivery goroutine, in sequence order.
func (c *connection) deliver(seq uint64, res *pipeline.Result, err error) {
	if err != nil {
		if res != nil && res.SpeechEnd {
			c.send(frame{msg: protocol.NewSpeechEnd()})
		}
		c.logger.Warn("pipeline failed", zap.Uint64("seq", seq), zap.Error(err))
		c.sendError(protocol.ErrCodePipeline, err.Error())
		return
	}
	if res == nil {
		return
	}

	if res.SpeechStart {
		c.send(frame{msg: protocol.NewSpeechStart()})
	}
	if res.SpeechEnd {
		c.send(frame{msg: protocol.NewSpeechEnd()})
	}
	if res.Transcript != "" {
		c.send(frame{msg: protocol.NewTranscriptDone(res.Transcript, res.Timings.Recognize)})
	}
	if res.Translation != "" {
		c.send(frame{msg: protocol.NewTranslationDone(res.Translation, res.Timings.Translate)})
	}
	if len(res.Audio) > 0 {
		c.send(frame{audio: res.Audio})
		c.send(frame{msg: protocol.NewAudioDone(c.sess.NextSegmentID(), res.Elapsed)})
	}
}

func (c *connection) sendError(code, message string) {
	c.srv.metrics.ErrorSent(code)
	c.send(frame{msg: protocol.NewError(code, message)})
}

// send queues f for the write loop. It blocks while the outbox is full so
// no frame of an utterance is dropped, and gives up once the connection
// is closing.
func (c *connection) send(f frame) {
	select {
	case c.outbox <- f:
	case <-c.ctx.Done():
	}
}

func (c *connection) writeLoop() {
	defer close(c.writeDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.outbox:
			var err error
			if f.msg != nil {
				err = c.transport.SendMessage(f.msg)
			} else {
				err = c.transport.SendAudio(f.audio)
			}
			if err != nil {
				c.logger.Debug("write failed, closing", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

// close tears the connection down: outstanding units are cancelled, the
// write loop stops and the transport closes.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.seq.Close()
		c.cancel()
		<-c.writeDone
		c.transport.Close()
		if err := c.sess.Close(); err != nil {
			c.logger.Debug("session close", zap.Error(err))
		}
		c.srv.unregister(c)
		c.span.End()
		c.logger.Info("session closed")
	})
}
