package sequencer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/realtime-ai/interpreter/pkg/metrics"
	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/trace"
)

// ErrClosed is returned by Drain after Close.
var ErrClosed = errors.New("sequencer: closed")

// Job is one unit of work. A nil result with a nil error is valid and
// delivered as such.
type Job func(ctx context.Context) (*pipeline.Result, error)

// DeliverFunc receives outcomes in sequence order, one call at a time, on
// the sequencer's delivery goroutine.
type DeliverFunc func(seq uint64, res *pipeline.Result, err error)

type outcome struct {
	res *pipeline.Result
	err error
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// WithMetrics tracks in-flight units and panics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithContext sets the parent of the context handed to jobs.
func WithContext(ctx context.Context) Option {
	return func(s *Sequencer) { s.parent = ctx }
}

// Sequencer assigns sequence numbers to jobs, runs them on a Pool and hands
// their outcomes to a DeliverFunc in sequence order. Completed outcomes wait
// in a map until every earlier sequence number has been delivered, so the
// buffer never holds more than the number of jobs in flight.
type Sequencer struct {
	pool    *Pool
	deliver DeliverFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
	parent  context.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	next      uint64 // next sequence number to assign
	cursor    uint64 // next sequence number to deliver
	delivered uint64 // deliveries completed
	pending   map[uint64]outcome
	closed    bool
	// progress is closed and replaced after every delivery
	progress chan struct{}

	notify    chan struct{}
	done      chan struct{}
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a sequencer and starts its delivery goroutine.
func New(pool *Pool, deliver DeliverFunc, opts ...Option) *Sequencer {
	s := &Sequencer{
		pool:     pool,
		deliver:  deliver,
		logger:   zap.NewNop(),
		parent:   context.Background(),
		pending:  make(map[uint64]outcome),
		progress: make(chan struct{}),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sequencer")
	s.ctx, s.cancel = context.WithCancel(s.parent)

	go s.deliveryLoop()
	return s
}

// Dispatch assigns the next sequence number to job and starts it. It never
// blocks on the pool. After Close, jobs are dropped but still consume a
// sequence number.
func (s *Sequencer) Dispatch(job Job) uint64 {
	s.mu.Lock()
	seq := s.next
	s.next++
	if s.closed {
		s.mu.Unlock()
		return seq
	}
	s.workers.Add(1)
	s.mu.Unlock()

	s.metrics.UnitStarted()
	go s.run(seq, job)
	return seq
}

func (s *Sequencer) run(seq uint64, job Job) {
	defer s.workers.Done()

	var out outcome
	if err := s.pool.acquire(s.ctx); err != nil {
		out.err = fmt.Errorf("sequencer: unit %d not started: %w", seq, err)
	} else {
		out = s.execute(seq, job)
		s.pool.release()
	}

	s.mu.Lock()
	s.pending[seq] = out
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Sequencer) execute(seq uint64, job Job) (out outcome) {
	ctx, span := trace.InstrumentDispatch(s.ctx, seq)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.UnitPanicked()
			s.logger.Error("unit panicked",
				zap.Uint64("seq", seq),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			out = outcome{err: fmt.Errorf("sequencer: unit %d panicked: %v", seq, r)}
			trace.RecordError(span, out.err)
		}
	}()

	res, err := job(ctx)
	if err != nil {
		trace.RecordError(span, err)
	}
	return outcome{res: res, err: err}
}

func (s *Sequencer) deliveryLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			out, ok := s.pending[s.cursor]
			if !ok {
				s.mu.Unlock()
				break
			}
			seq := s.cursor
			delete(s.pending, seq)
			s.cursor++
			s.mu.Unlock()

			s.deliver(seq, out.res, out.err)
			s.metrics.UnitDone()

			s.mu.Lock()
			s.delivered++
			close(s.progress)
			s.progress = make(chan struct{})
			s.mu.Unlock()
		}
	}
}

// Pending returns the number of dispatched units not yet delivered. It is
// zero after Close.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return int(s.next - s.cursor)
}

// Drain blocks until every unit dispatched before the call has been
// delivered, ctx is done, or the sequencer is closed.
func (s *Sequencer) Drain(ctx context.Context) error {
	s.mu.Lock()
	target := s.next
	for {
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.delivered >= target {
			s.mu.Unlock()
			return nil
		}
		progress := s.progress
		s.mu.Unlock()

		select {
		case <-progress:
		case <-s.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
}

// Close cancels running jobs, waits for their goroutines and stops the
// delivery goroutine. Nothing is delivered once Close has started, apart from
// a delivery already in progress.
func (s *Sequencer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		end := s.next
		s.mu.Unlock()

		s.cancel()
		s.workers.Wait()
		close(s.done)

		s.mu.Lock()
		for seq := s.cursor; seq < end; seq++ {
			s.metrics.UnitDone()
		}
		s.cursor = end
		s.pending = nil
		s.mu.Unlock()
	})
}
