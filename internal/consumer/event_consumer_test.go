package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

type recordedCall struct {
	op       string
	userID   string
	entityID string
}

type fakeOps struct {
	calls []recordedCall
}

func (f *fakeOps) record(op, userID, entityID string) {
	f.calls = append(f.calls, recordedCall{op: op, userID: userID, entityID: entityID})
}

func (f *fakeOps) ScheduleTaskDueDateNotifications(ctx context.Context, userID, taskID, title string, due time.Time, dueTime string) error {
	f.record("schedule_task", userID, taskID)
	return nil
}

func (f *fakeOps) CancelTaskDueDateNotifications(ctx context.Context, userID, taskID string) error {
	f.record("cancel_task", userID, taskID)
	return nil
}

func (f *fakeOps) ScheduleGoalTargetDateNotifications(ctx context.Context, userID, goalID, title string, target time.Time) error {
	f.record("schedule_goal", userID, goalID)
	return nil
}

func (f *fakeOps) CancelGoalTargetDateNotifications(ctx context.Context, userID, goalID string) error {
	f.record("cancel_goal", userID, goalID)
	return nil
}

func (f *fakeOps) ScheduleMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID, title string, due time.Time) error {
	f.record("schedule_milestone", userID, milestoneID)
	return nil
}

func (f *fakeOps) CancelMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID string) error {
	f.record("cancel_milestone", userID, milestoneID)
	return nil
}

func (f *fakeOps) ScheduleRoutineNotifications(ctx context.Context, userID, routineID string) error {
	f.record("schedule_routine", userID, routineID)
	return nil
}

func (f *fakeOps) CancelRoutineNotifications(ctx context.Context, userID, routineID string) error {
	f.record("cancel_routine", userID, routineID)
	return nil
}

func (f *fakeOps) ScheduleRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error {
	f.record("schedule_routine_task", userID, routineTaskID)
	return nil
}

func (f *fakeOps) CancelRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error {
	f.record("cancel_routine_task", userID, routineTaskID)
	return nil
}

func (f *fakeOps) RequestPlan(userID string) error {
	f.record("request_plan", userID, "")
	return nil
}

func TestHandleEventDispatch(t *testing.T) {
	due := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event domain.Event
		want  string
	}{
		{"task due date set", domain.Event{Type: domain.EventTaskDueDateSet, UserID: "u", EntityID: "t1", DueAt: &due}, "schedule_task"},
		{"task due date cleared", domain.Event{Type: domain.EventTaskDueDateSet, UserID: "u", EntityID: "t1"}, "cancel_task"},
		{"task completed", domain.Event{Type: domain.EventTaskCompleted, UserID: "u", EntityID: "t1"}, "cancel_task"},
		{"task deleted", domain.Event{Type: domain.EventTaskDeleted, UserID: "u", EntityID: "t1"}, "cancel_task"},
		{"goal target set", domain.Event{Type: domain.EventGoalTargetDateSet, UserID: "u", EntityID: "g1", DueAt: &due}, "schedule_goal"},
		{"goal completed", domain.Event{Type: domain.EventGoalCompleted, UserID: "u", EntityID: "g1"}, "cancel_goal"},
		{"milestone due set", domain.Event{Type: domain.EventMilestoneDueSet, UserID: "u", EntityID: "m1", DueAt: &due}, "schedule_milestone"},
		{"routine created", domain.Event{Type: domain.EventRoutineCreated, UserID: "u", EntityID: "r1"}, "schedule_routine"},
		{"routine updated", domain.Event{Type: domain.EventRoutineUpdated, UserID: "u", EntityID: "r1"}, "schedule_routine"},
		{"routine deleted", domain.Event{Type: domain.EventRoutineDeleted, UserID: "u", EntityID: "r1"}, "cancel_routine"},
		{"routine task created", domain.Event{Type: domain.EventRoutineTaskCreated, UserID: "u", EntityID: "rt1"}, "schedule_routine_task"},
		{"routine task deleted", domain.Event{Type: domain.EventRoutineTaskDeleted, UserID: "u", EntityID: "rt1"}, "cancel_routine_task"},
		{"plan requested", domain.Event{Type: domain.EventPlanRequested, UserID: "u"}, "request_plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &fakeOps{}
			c := NewEventConsumer(nil, ops, nil, logger.NewNop())

			if err := c.HandleEvent(context.Background(), &tt.event); err != nil {
				t.Fatalf("handle failed: %v", err)
			}
			if len(ops.calls) != 1 {
				t.Fatalf("expected exactly one operation, got %d", len(ops.calls))
			}
			if ops.calls[0].op != tt.want {
				t.Errorf("dispatched %s, want %s", ops.calls[0].op, tt.want)
			}
			if ops.calls[0].userID != tt.event.UserID {
				t.Errorf("user = %s, want %s", ops.calls[0].userID, tt.event.UserID)
			}
		})
	}
}

func TestHandleEventUnknownTypeIgnored(t *testing.T) {
	ops := &fakeOps{}
	c := NewEventConsumer(nil, ops, nil, logger.NewNop())

	err := c.HandleEvent(context.Background(), &domain.Event{Type: "task.renamed", UserID: "u"})
	if err != nil {
		t.Fatalf("unknown event should be ignored, got %v", err)
	}
	if len(ops.calls) != 0 {
		t.Errorf("unknown event must not dispatch, got %v", ops.calls)
	}
}
