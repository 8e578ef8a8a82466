package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/config"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"github.com/vhvplatform/go-reminder-engine/internal/worker"
)

// Runtime owns the engine's execution machinery: one worker pool per
// queue plus the cron entry that triggers the periodic cleanup pass.
type Runtime struct {
	engine *Engine
	broker *broker.Broker
	pools  []*worker.Pool
	cron   *cron.Cron
	log    *logger.Logger
}

// NewRuntime wires the engine's handlers to their queues
func NewRuntime(engine *Engine, b *broker.Broker, queues config.QueueConfig, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{
		engine: engine,
		broker: b,
		cron:   cron.New(),
		log:    log,
	}

	handlers := map[string]worker.Handler{
		QueueReminders:     engine.HandleReminderJob,
		QueueNotifications: engine.HandleNotificationJob,
		QueuePlanning:      engine.HandlePlanningJob,
		QueueEmail:         engine.HandleEmailJob,
		QueueCleanup:       engine.HandleCleanupJob,
	}
	for _, cfg := range poolConfigs(queues) {
		rt.pools = append(rt.pools, worker.NewPool(b, cfg, handlers[cfg.Queue], log))
	}

	if _, err := rt.cron.AddFunc(queues.CleanupSchedule, func() {
		if _, err := b.Enqueue(QueueCleanup, broker.Payload{Kind: KindCleanup}, 0); err != nil {
			log.Error("failed to enqueue cleanup job", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	return rt, nil
}

// poolConfigs sizes one worker config per queue, carrying the shared
// execution retry budget from the environment.
func poolConfigs(queues config.QueueConfig) []worker.Config {
	backoff := time.Duration(queues.BackoffBaseSec) * time.Second
	return []worker.Config{
		{Queue: QueueReminders, Concurrency: queues.ReminderWorkers, MaxAttempts: queues.MaxAttempts, BackoffBase: backoff},
		{Queue: QueueNotifications, Concurrency: queues.NotificationWorkers, MaxAttempts: queues.MaxAttempts, BackoffBase: backoff},
		{Queue: QueuePlanning, Concurrency: queues.PlanningWorkers, MaxAttempts: queues.MaxAttempts, BackoffBase: backoff},
		{Queue: QueueEmail, Concurrency: queues.EmailWorkers, MaxAttempts: queues.MaxAttempts, BackoffBase: backoff},
		// Cleanup sweeps must not overlap; one worker serializes them.
		{Queue: QueueCleanup, Concurrency: 1, MaxAttempts: queues.MaxAttempts, BackoffBase: backoff},
	}
}

// Start reconciles pending work from the store, then launches the
// worker pools and the cleanup schedule.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.engine.Reconcile(ctx); err != nil {
		return err
	}

	for _, p := range r.pools {
		p.Start()
	}
	r.cron.Start()

	r.log.Info("scheduler runtime started", "pools", len(r.pools))
	return nil
}

// Stop halts the cleanup schedule and drains the worker pools
func (r *Runtime) Stop() {
	cronCtx := r.cron.Stop()
	<-cronCtx.Done()

	for _, p := range r.pools {
		p.Stop()
	}
	r.log.Info("scheduler runtime stopped")
}
