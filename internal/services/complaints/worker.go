package complaints

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// pool runs pipeline jobs on a fixed number of goroutines fed by a
// bounded queue.
type pool struct {
	jobs   chan string
	group  *errgroup.Group
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func newPool(ctx context.Context, workers, queue int, logger *slog.Logger, fn func(ctx context.Context, complaintID string)) *pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &pool{
		jobs:   make(chan string, queue),
		group:  &errgroup.Group{},
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for id := range p.jobs {
				fn(ctx, id)
			}
			return nil
		})
	}
	return p
}

// enqueue schedules a complaint. It reports false when the queue is full
// or the pool is closed; the complaint stays unclassified and is picked up
// by the next backfill.
func (p *pool) enqueue(complaintID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- complaintID:
		return true
	default:
		p.logger.Warn("pipeline queue full, deferring to backfill", "complaint", complaintID)
		return false
	}
}

// close stops accepting jobs, lets workers drain the queue and waits.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	_ = p.group.Wait()
	p.cancel()
}
