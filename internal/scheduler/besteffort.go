package scheduler

import (
	"context"
	"sync"

	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// BestEffort runs scheduling operations asynchronously with bounded
// concurrency. Failures are logged, never propagated: a scheduling
// mishap must not take down the event stream feeding it.
type BestEffort struct {
	sem chan struct{}
	wg  sync.WaitGroup
	log *logger.Logger
}

// NewBestEffort creates a runner with the given concurrency limit
func NewBestEffort(limit int, log *logger.Logger) *BestEffort {
	if limit <= 0 {
		limit = 4
	}
	return &BestEffort{
		sem: make(chan struct{}, limit),
		log: log,
	}
}

// Submit runs fn on its own goroutine once a slot frees up
func (b *BestEffort) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) {
	b.sem <- struct{}{}
	b.wg.Add(1)
	go func() {
		defer func() {
			<-b.sem
			b.wg.Done()
		}()
		if err := fn(ctx); err != nil {
			b.log.Error("scheduling operation failed", "operation", name, "error", err)
		}
	}()
}

// Wait blocks until every submitted operation has finished
func (b *BestEffort) Wait() {
	b.wg.Wait()
}
