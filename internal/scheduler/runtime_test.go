package scheduler

import (
	"testing"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/shared/config"
)

func TestPoolConfigsCarryRetryPolicy(t *testing.T) {
	cfgs := poolConfigs(config.QueueConfig{
		ReminderWorkers:     8,
		NotificationWorkers: 5,
		PlanningWorkers:     2,
		EmailWorkers:        3,
		MaxAttempts:         5,
		BackoffBaseSec:      2,
	})

	if len(cfgs) != 5 {
		t.Fatalf("expected one config per queue, got %d", len(cfgs))
	}
	for _, c := range cfgs {
		if c.MaxAttempts != 5 {
			t.Errorf("queue %s max attempts = %d, want 5", c.Queue, c.MaxAttempts)
		}
		if c.BackoffBase != 2*time.Second {
			t.Errorf("queue %s backoff base = %v, want 2s", c.Queue, c.BackoffBase)
		}
		if c.Queue == QueueCleanup && c.Concurrency != 1 {
			t.Errorf("cleanup concurrency = %d, want 1", c.Concurrency)
		}
	}
}
