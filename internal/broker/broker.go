// Package broker is an in-process delayed work broker: jobs are enqueued
// with an absolute ready instant and handed to consumers once the delay
// expires. Pending jobs are enumerable and removable, correlated back to
// reminders and alarms by the ids carried in the payload.
package broker

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// Payload correlates a unit of work back to its owning records. The
// store, not this payload, is the source of truth at fire time.
type Payload struct {
	Kind           string `json:"kind"`
	ReminderID     string `json:"reminder_id,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	AlarmID        string `json:"alarm_id,omitempty"`
	UserID         string `json:"user_id"`
}

// Job is one delayed unit of work
type Job struct {
	ID      string
	Queue   string
	Payload Payload
	ReadyAt time.Time
	Attempt int

	index int // heap index, -1 when not queued
}

// jobHeap orders pending jobs by ready instant
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].ReadyAt.Before(h[j].ReadyAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	n := len(*h)
	job := x.(*Job)
	job.index = n
	*h = append(*h, job)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // Avoid memory leak
	job.index = -1
	*h = old[0 : n-1]
	return job
}

// delayQueue holds one queue's pending jobs plus its dispatch loop state
type delayQueue struct {
	name    string
	mu      sync.Mutex
	pending jobHeap
	wake    chan struct{}
	ready   chan *Job
	done    chan struct{}
}

// Broker manages the per-queue delayed job heaps
type Broker struct {
	mu     sync.Mutex
	queues map[string]*delayQueue
	log    *logger.Logger
	closed bool
}

// New creates a new broker
func New(log *logger.Logger) *Broker {
	return &Broker{
		queues: make(map[string]*delayQueue),
		log:    log,
	}
}

func (b *Broker) queue(name string) *delayQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		q = &delayQueue{
			name:  name,
			wake:  make(chan struct{}, 1),
			ready: make(chan *Job),
			done:  make(chan struct{}),
		}
		heap.Init(&q.pending)
		b.queues[name] = q
		go q.run()
	}
	return q
}

// Enqueue schedules a unit of work to become ready no earlier than delay
// from now. Negative delays are treated as immediately ready.
func (b *Broker) Enqueue(queueName string, p Payload, delay time.Duration) (*Job, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, apperrors.NewDeliveryError("broker is closed", nil)
	}
	b.mu.Unlock()

	if delay < 0 {
		delay = 0
	}
	job := &Job{
		ID:      uuid.New().String(),
		Queue:   queueName,
		Payload: p,
		ReadyAt: time.Now().Add(delay),
	}
	b.push(queueName, job)
	metrics.JobsEnqueued.WithLabelValues(queueName).Inc()
	return job, nil
}

// Requeue re-inserts a job for a retry attempt after the given delay,
// preserving its identity and incrementing the attempt counter.
func (b *Broker) Requeue(job Job, delay time.Duration) (*Job, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, apperrors.NewDeliveryError("broker is closed", nil)
	}
	b.mu.Unlock()

	retry := &Job{
		ID:      job.ID,
		Queue:   job.Queue,
		Payload: job.Payload,
		ReadyAt: time.Now().Add(delay),
		Attempt: job.Attempt + 1,
	}
	b.push(job.Queue, retry)
	metrics.JobRetries.WithLabelValues(job.Queue).Inc()
	return retry, nil
}

func (b *Broker) push(queueName string, job *Job) {
	q := b.queue(queueName)
	q.mu.Lock()
	heap.Push(&q.pending, job)
	depth := q.pending.Len()
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(queueName).Set(float64(depth))
	q.notify()
}

// Ready returns the channel delivering jobs whose delay has expired
func (b *Broker) Ready(queueName string) <-chan *Job {
	return b.queue(queueName).ready
}

// ListPending returns a snapshot of not-yet-ready jobs in a queue
func (b *Broker) ListPending(queueName string) []Job {
	q := b.queue(queueName)
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]Job, 0, q.pending.Len())
	for _, j := range q.pending {
		jobs = append(jobs, *j)
	}
	return jobs
}

// Remove deletes one pending job by id. Returns false when the job
// already fired or never existed.
func (b *Broker) Remove(queueName, jobID string) bool {
	q := b.queue(queueName)
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.pending {
		if j.ID == jobID {
			heap.Remove(&q.pending, j.index)
			metrics.QueueDepth.WithLabelValues(queueName).Set(float64(q.pending.Len()))
			return true
		}
	}
	return false
}

// RemoveMatching deletes every pending job whose payload matches, and
// returns the count. This is a linear scan of the queue's pending jobs,
// acceptable at this system's scale.
func (b *Broker) RemoveMatching(queueName string, match func(Payload) bool) int {
	q := b.queue(queueName)
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for i := q.pending.Len() - 1; i >= 0; i-- {
		if match(q.pending[i].Payload) {
			heap.Remove(&q.pending, i)
			removed++
		}
	}
	if removed > 0 {
		metrics.QueueDepth.WithLabelValues(queueName).Set(float64(q.pending.Len()))
	}
	return removed
}

// Close stops all queue dispatch loops. Pending jobs are dropped; the
// startup reconciliation pass rebuilds them from the store.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q.done)
	}
}

func (q *delayQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run delivers ready jobs in ReadyAt order, sleeping until the head of
// the heap becomes ready. No timeout applies to the wait itself; a job
// can legitimately wait arbitrarily long.
func (q *delayQueue) run() {
	for {
		q.mu.Lock()
		var ready *Job
		var wait time.Duration
		if q.pending.Len() > 0 {
			head := q.pending[0]
			if d := time.Until(head.ReadyAt); d <= 0 {
				ready = heap.Pop(&q.pending).(*Job)
			} else {
				wait = d
			}
		}
		depth := q.pending.Len()
		q.mu.Unlock()

		if ready != nil {
			metrics.QueueDepth.WithLabelValues(q.name).Set(float64(depth))
			select {
			case q.ready <- ready:
			case <-q.done:
				return
			}
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-q.wake:
				timer.Stop()
			case <-q.done:
				timer.Stop()
				return
			}
			continue
		}

		select {
		case <-q.wake:
		case <-q.done:
			return
		}
	}
}
