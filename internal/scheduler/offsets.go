package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
)

// dueOffsets is the reminder fan-out ahead of a due instant: a day
// before, an hour before, and at the due instant itself.
var dueOffsets = []time.Duration{24 * time.Hour, time.Hour, 0}

// ScheduleTaskDueDateNotifications replaces a task's due-date reminders
// with a fresh fan-out around the new due instant. Offsets already in
// the past are skipped; an entirely past due date schedules nothing.
// The task also gets a companion one-shot alarm at the due instant.
func (e *Engine) ScheduleTaskDueDateNotifications(ctx context.Context, userID, taskID, title string, due time.Time, dueTime string) error {
	at := combineDueTime(due, dueTime)

	if err := e.cancelTaskDueDate(ctx, userID, taskID); err != nil {
		return err
	}

	created, fanErr := e.scheduleDueDateFanOut(ctx, dueDateSpec{
		userID: userID,
		title:  title,
		kind:   KindTaskDue,
		target: domain.TargetTask,
		entity: taskID,
		link:   func(s *domain.Schedule) { s.TaskID = taskID },
	}, at)
	if created == 0 {
		return fanErr
	}

	alarm := &domain.Alarm{
		UserID:       userID,
		Time:         at,
		Enabled:      true,
		LinkedTaskID: taskID,
	}
	if err := e.alarms.Create(ctx, alarm); err != nil {
		return err
	}
	if _, err := e.dispatcher.Enqueue(QueueNotifications, broker.Payload{
		Kind:    KindAlarmRing,
		AlarmID: alarm.ID.Hex(),
		UserID:  userID,
	}, at.Sub(e.now())); err != nil {
		return err
	}

	e.log.Info("scheduled task due date notifications",
		"user_id", userID, "task_id", taskID, "due", at, "reminders", created)
	return fanErr
}

// CancelTaskDueDateNotifications removes a task's due-date reminders,
// its companion alarm, and their pending jobs.
func (e *Engine) CancelTaskDueDateNotifications(ctx context.Context, userID, taskID string) error {
	return e.cancelTaskDueDate(ctx, userID, taskID)
}

// ScheduleGoalTargetDateNotifications replaces a goal's target-date
// reminders with a fresh fan-out around the new target instant.
func (e *Engine) ScheduleGoalTargetDateNotifications(ctx context.Context, userID, goalID, title string, target time.Time) error {
	if err := e.cancelTarget(ctx, userID, domain.TargetGoal, goalID); err != nil {
		return err
	}

	created, err := e.scheduleDueDateFanOut(ctx, dueDateSpec{
		userID: userID,
		title:  title,
		kind:   KindGoalTarget,
		target: domain.TargetGoal,
		entity: goalID,
		link:   func(s *domain.Schedule) { s.GoalID = goalID },
	}, target)
	if err != nil {
		return err
	}

	e.log.Info("scheduled goal target date notifications",
		"user_id", userID, "goal_id", goalID, "target", target, "reminders", created)
	return nil
}

// CancelGoalTargetDateNotifications removes a goal's target-date
// reminders and their pending jobs.
func (e *Engine) CancelGoalTargetDateNotifications(ctx context.Context, userID, goalID string) error {
	return e.cancelTarget(ctx, userID, domain.TargetGoal, goalID)
}

// ScheduleMilestoneDueDateNotifications replaces a milestone's due-date
// reminders with a fresh fan-out around the new due instant.
func (e *Engine) ScheduleMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID, title string, due time.Time) error {
	if err := e.cancelTarget(ctx, userID, domain.TargetCustom, milestoneID); err != nil {
		return err
	}

	created, err := e.scheduleDueDateFanOut(ctx, dueDateSpec{
		userID: userID,
		title:  title,
		kind:   KindMilestoneDue,
		target: domain.TargetCustom,
		entity: milestoneID,
		link:   func(s *domain.Schedule) { s.MilestoneID = milestoneID },
	}, due)
	if err != nil {
		return err
	}

	e.log.Info("scheduled milestone due date notifications",
		"user_id", userID, "milestone_id", milestoneID, "due", due, "reminders", created)
	return nil
}

// CancelMilestoneDueDateNotifications removes a milestone's due-date
// reminders and their pending jobs.
func (e *Engine) CancelMilestoneDueDateNotifications(ctx context.Context, userID, milestoneID string) error {
	return e.cancelTarget(ctx, userID, domain.TargetCustom, milestoneID)
}

type dueDateSpec struct {
	userID string
	title  string
	kind   string
	target domain.TargetType
	entity string
	link   func(*domain.Schedule)
}

// scheduleDueDateFanOut creates one one-off reminder per future offset
// and enqueues its job. Each offset is an independent unit of work: a
// failure is logged and that offset's reminder rolled back without
// aborting the remaining offsets. The first error is returned once all
// offsets have been attempted.
func (e *Engine) scheduleDueDateFanOut(ctx context.Context, spec dueDateSpec, at time.Time) (int, error) {
	now := e.now()
	created := 0
	var firstErr error

	for _, offset := range dueOffsets {
		instant := at.Add(-offset)
		if !instant.After(now) {
			continue
		}

		schedule := domain.Schedule{At: &instant}
		spec.link(&schedule)

		reminder := &domain.Reminder{
			UserID:   spec.userID,
			Title:    spec.title,
			Target:   spec.target,
			TargetID: spec.entity,
			Trigger:  domain.TriggerTime,
			Schedule: schedule,
		}
		if err := e.reminders.Create(ctx, reminder); err != nil {
			e.log.Error("failed to create due date reminder",
				"kind", spec.kind, "entity_id", spec.entity, "remind_at", instant, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if _, err := e.dispatcher.Enqueue(QueueReminders, broker.Payload{
			Kind:       spec.kind,
			ReminderID: reminder.ID.Hex(),
			UserID:     spec.userID,
		}, instant.Sub(now)); err != nil {
			e.log.Error("failed to enqueue due date reminder",
				"kind", spec.kind, "entity_id", spec.entity, "remind_at", instant, "error", err)
			if delErr := e.reminders.DeleteByID(ctx, reminder.ID.Hex()); delErr != nil {
				e.log.Error("failed to roll back reminder after enqueue failure",
					"reminder_id", reminder.ID.Hex(), "error", delErr)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		created++
		metrics.RemindersScheduled.WithLabelValues(spec.kind).Inc()
	}

	if created == 0 && firstErr == nil {
		e.log.Info("due instant already passed, nothing scheduled",
			"user_id", spec.userID, "kind", spec.kind, "entity_id", spec.entity, "due", at)
	}
	return created, firstErr
}

// cancelTarget removes a target's reminders and their pending jobs
func (e *Engine) cancelTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) error {
	existing, err := e.reminders.FindByTarget(ctx, userID, target, targetID)
	if err != nil {
		return err
	}

	e.removeReminderJobs(existing)
	if _, err := e.reminders.DeleteByTarget(ctx, userID, target, targetID); err != nil {
		return err
	}
	return nil
}

// cancelTaskDueDate additionally tears down the task's companion alarm
func (e *Engine) cancelTaskDueDate(ctx context.Context, userID, taskID string) error {
	if err := e.cancelTarget(ctx, userID, domain.TargetTask, taskID); err != nil {
		return err
	}

	alarms, err := e.alarms.FindByLinkedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	e.removeAlarmJobs(alarms)
	if _, err := e.alarms.DeleteByLinkedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return nil
}

func (e *Engine) removeReminderJobs(reminders []*domain.Reminder) {
	if len(reminders) == 0 {
		return
	}
	ids := make(map[string]bool, len(reminders))
	for _, r := range reminders {
		ids[r.ID.Hex()] = true
	}
	e.dispatcher.RemoveMatching(QueueReminders, func(p broker.Payload) bool {
		return ids[p.ReminderID]
	})
}

func (e *Engine) removeAlarmJobs(alarms []*domain.Alarm) {
	if len(alarms) == 0 {
		return
	}
	ids := make(map[string]bool, len(alarms))
	for _, a := range alarms {
		ids[a.ID.Hex()] = true
	}
	e.dispatcher.RemoveMatching(QueueNotifications, func(p broker.Payload) bool {
		return ids[p.AlarmID]
	})
}

// combineDueTime overlays an optional "HH:mm" wall-clock time onto a
// due date. Malformed values fall back to the date's own time.
func combineDueTime(due time.Time, dueTime string) time.Time {
	if dueTime == "" {
		return due
	}
	var hour, minute int
	if _, err := fmt.Sscanf(dueTime, "%d:%d", &hour, &minute); err != nil {
		return due
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return due
	}
	return time.Date(due.Year(), due.Month(), due.Day(), hour, minute, 0, 0, due.Location())
}
