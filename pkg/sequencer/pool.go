// Package sequencer runs utterance jobs concurrently and delivers their
// results strictly in dispatch order.
package sequencer

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many jobs run at once across every session in the
// process.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool creates a pool with size slots. A size below 1 uses
// DefaultPoolSize.
func NewPool(size int64) *Pool {
	if size < 1 {
		size = DefaultPoolSize()
	}
	return &Pool{sem: semaphore.NewWeighted(size), size: size}
}

// DefaultPoolSize is twice the CPU count: jobs spend most of their time
// waiting on remote backends.
func DefaultPoolSize() int64 {
	return int64(runtime.NumCPU() * 2)
}

// Size returns the number of slots.
func (p *Pool) Size() int64 { return p.size }

func (p *Pool) acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *Pool) release() {
	p.sem.Release(1)
}
