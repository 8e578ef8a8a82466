package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/scheduler"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/rabbitmq"
)

const (
	eventExchange = "entity_events"
	eventQueue    = "reminder_engine_events"
	consumerTag   = "reminder-engine"
)

var eventRoutingKeys = []string{"task.*", "goal.*", "milestone.*", "routine.*", "plan.*"}

// SchedulerOps is the scheduling surface driven by entity events
type SchedulerOps interface {
	ScheduleTaskDueDateNotifications(ctx context.Context, userID, taskID, title string, due time.Time, dueTime string) error
	CancelTaskDueDateNotifications(ctx context.Context, userID, taskID string) error
	ScheduleGoalTargetDateNotifications(ctx context.Context, userID, goalID, title string, target time.Time) error
	CancelGoalTargetDateNotifications(ctx context.Context, userID, goalID string) error
	ScheduleMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID, title string, due time.Time) error
	CancelMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID string) error
	ScheduleRoutineNotifications(ctx context.Context, userID, routineID string) error
	CancelRoutineNotifications(ctx context.Context, userID, routineID string) error
	ScheduleRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error
	CancelRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error
	RequestPlan(userID string) error
}

// EventConsumer consumes entity mutation events from RabbitMQ and
// dispatches the matching scheduling operation. Dispatch is best-effort:
// a scheduling failure is logged, never pushed back onto the stream.
type EventConsumer struct {
	client *rabbitmq.RabbitMQClient
	ops    SchedulerOps
	runner *scheduler.BestEffort
	log    *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(client *rabbitmq.RabbitMQClient, ops SchedulerOps, runner *scheduler.BestEffort, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		client: client,
		ops:    ops,
		runner: runner,
		log:    log,
	}
}

// Start starts consuming events from RabbitMQ
func (c *EventConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting event consumer", "queue", eventQueue)

	if err := c.client.DeclareExchange(eventExchange, "topic"); err != nil {
		c.log.Error("Failed to declare exchange", "error", err)
		return err
	}
	if err := c.client.DeclareQueue(eventQueue); err != nil {
		c.log.Error("Failed to declare queue", "error", err)
		return err
	}
	for _, key := range eventRoutingKeys {
		if err := c.client.BindQueue(eventQueue, key, eventExchange); err != nil {
			c.log.Error("Failed to bind queue", "routing_key", key, "error", err)
			return err
		}
	}

	messages, err := c.client.Consume(eventQueue, consumerTag)
	if err != nil {
		c.log.Error("Failed to start consuming", "error", err)
		return err
	}

	for msg := range messages {
		var event domain.Event
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			c.log.Error("Failed to unmarshal event", "error", err)
			msg.Nack(false, false) // Don't requeue invalid messages
			continue
		}

		// Ack before dispatch: scheduling runs best-effort and must not
		// stall or poison the event stream.
		msg.Ack(false)
		ev := event
		c.runner.Submit(ctx, string(ev.Type), func(ctx context.Context) error {
			return c.HandleEvent(ctx, &ev)
		})
	}

	return nil
}

// HandleEvent maps one entity event onto its scheduling operation
func (c *EventConsumer) HandleEvent(ctx context.Context, event *domain.Event) error {
	switch event.Type {
	case domain.EventTaskDueDateSet:
		if event.DueAt == nil {
			return c.ops.CancelTaskDueDateNotifications(ctx, event.UserID, event.EntityID)
		}
		return c.ops.ScheduleTaskDueDateNotifications(ctx, event.UserID, event.EntityID, event.Title, *event.DueAt, event.DueTime)

	case domain.EventTaskCompleted, domain.EventTaskDeleted:
		return c.ops.CancelTaskDueDateNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventGoalTargetDateSet:
		if event.DueAt == nil {
			return c.ops.CancelGoalTargetDateNotifications(ctx, event.UserID, event.EntityID)
		}
		return c.ops.ScheduleGoalTargetDateNotifications(ctx, event.UserID, event.EntityID, event.Title, *event.DueAt)

	case domain.EventGoalCompleted:
		return c.ops.CancelGoalTargetDateNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventMilestoneDueSet:
		if event.DueAt == nil {
			return c.ops.CancelMilestoneDueDateNotifications(ctx, event.UserID, event.EntityID)
		}
		return c.ops.ScheduleMilestoneDueDateNotifications(ctx, event.UserID, event.EntityID, event.Title, *event.DueAt)

	case domain.EventRoutineCreated, domain.EventRoutineUpdated:
		return c.ops.ScheduleRoutineNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventRoutineDeleted:
		return c.ops.CancelRoutineNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventRoutineTaskCreated, domain.EventRoutineTaskUpdated:
		return c.ops.ScheduleRoutineTaskNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventRoutineTaskDeleted:
		return c.ops.CancelRoutineTaskNotifications(ctx, event.UserID, event.EntityID)

	case domain.EventPlanRequested:
		return c.ops.RequestPlan(event.UserID)

	default:
		c.log.Debug("Ignoring unknown event type", "type", event.Type)
		return nil
	}
}
