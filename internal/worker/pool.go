// Package worker runs per-queue execution pools over the delayed job
// broker. Each queue carries its own concurrency limit and retry policy;
// execution failures are retried with capped exponential backoff, while
// calendar computation is never re-run by the pool itself.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// Handler executes one unit of work
type Handler func(ctx context.Context, job broker.Job) error

// Config sizes one queue's pool and retry policy
type Config struct {
	Queue       string
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
}

// Pool pulls ready jobs from one queue and executes them concurrently
type Pool struct {
	broker  *broker.Broker
	cfg     Config
	handler Handler
	log     *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool for one queue
func NewPool(b *broker.Broker, cfg Config, handler Handler, log *logger.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	return &Pool{
		broker:  b,
		cfg:     cfg,
		handler: handler,
		log:     log,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.log.Info("Starting worker pool",
		"queue", p.cfg.Queue, "concurrency", p.cfg.Concurrency, "max_attempts", p.cfg.MaxAttempts)

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info("Worker pool stopped", "queue", p.cfg.Queue)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	ready := p.broker.Ready(p.cfg.Queue)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ready:
			if !ok {
				return
			}
			p.execute(ctx, id, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, job *broker.Job) {
	err := p.handler(ctx, *job)
	if err == nil {
		metrics.JobsFired.WithLabelValues(p.cfg.Queue, "success").Inc()
		return
	}

	if job.Attempt+1 >= p.cfg.MaxAttempts {
		metrics.JobsFired.WithLabelValues(p.cfg.Queue, "failed").Inc()
		p.log.Error("job failed permanently",
			"queue", p.cfg.Queue, "job_id", job.ID, "attempts", job.Attempt+1,
			"worker_id", workerID, "error", err)
		return
	}

	backoff := p.cfg.BackoffBase << uint(job.Attempt)
	p.log.Warn("job execution failed, retrying",
		"queue", p.cfg.Queue, "job_id", job.ID, "attempt", job.Attempt+1,
		"backoff", backoff, "error", err)

	if _, reqErr := p.broker.Requeue(*job, backoff); reqErr != nil {
		metrics.JobsFired.WithLabelValues(p.cfg.Queue, "failed").Inc()
		p.log.Error("failed to requeue job", "queue", p.cfg.Queue, "job_id", job.ID, "error", reqErr)
	}
}
