package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	"github.com/vhvplatform/go-reminder-engine/internal/recurrence"
)

// Retention windows for the periodic cleanup pass
const (
	spentRetention = 24 * time.Hour
	auditRetention = 30 * 24 * time.Hour
)

// HandleCleanupJob removes spent one-off reminders, spent one-shot
// alarms, and terminal notification records past retention. It is the
// backstop for documents left behind by failed fires.
func (e *Engine) HandleCleanupJob(ctx context.Context, job broker.Job) error {
	now := e.now()

	reminders, err := e.reminders.DeleteSpentOneOffs(ctx, now.Add(-spentRetention))
	if err != nil {
		return err
	}
	alarms, err := e.alarms.DeleteSpentOneShots(ctx, now.Add(-spentRetention))
	if err != nil {
		return err
	}
	audits, err := e.notifications.DeleteOlderThan(ctx, now.Add(-auditRetention))
	if err != nil {
		return err
	}

	e.log.Info("cleanup pass complete",
		"spent_reminders", reminders, "spent_alarms", alarms, "old_notifications", audits)
	return nil
}

// Reconcile rebuilds the broker's pending jobs from the store after a
// restart. Missed one-off instants become immediately ready; recurring
// reminders and alarms resume at their next derivable instant.
func (e *Engine) Reconcile(ctx context.Context) error {
	if err := e.reconcileReminders(ctx); err != nil {
		return err
	}
	return e.reconcileAlarms(ctx)
}

func (e *Engine) reconcileReminders(ctx context.Context) error {
	reminders, err := e.reminders.FindTimeTriggered(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	restored := 0
	for _, r := range reminders {
		kind := reminderKind(&r.Schedule)

		var fireAt *time.Time
		if r.Schedule.OneOff() {
			fireAt = r.Schedule.At
		} else {
			before := e.reminderOffset(ctx, &r.Schedule, kind)
			_, fireAt = e.nextRemindInstant(r.Schedule.Recurrence, before)
		}
		if fireAt == nil {
			metrics.SchedulingImpossible.WithLabelValues(kind).Inc()
			e.log.Warn("reminder not restorable", "reminder_id", r.ID.Hex(), "kind", kind)
			continue
		}

		if _, err := e.dispatcher.Enqueue(QueueReminders, broker.Payload{
			Kind:       kind,
			ReminderID: r.ID.Hex(),
			UserID:     r.UserID,
		}, fireAt.Sub(now)); err != nil {
			return err
		}
		restored++
	}

	e.log.Info("restored pending reminder jobs", "count", restored)
	return nil
}

func (e *Engine) reconcileAlarms(ctx context.Context) error {
	alarms, err := e.alarms.FindEnabled(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	restored := 0
	for _, a := range alarms {
		var ringAt *time.Time
		if a.RecurrenceRule == "" {
			if a.Time.After(now.Add(-spentRetention)) {
				t := a.Time
				ringAt = &t
			}
		} else {
			next, err := recurrence.NextRingTime(a.RecurrenceRule, a.Time, now)
			if err != nil {
				e.log.Warn("alarm carries invalid rule, skipping",
					"alarm_id", a.ID.Hex(), "rule", a.RecurrenceRule)
				continue
			}
			ringAt = next
		}
		if ringAt == nil {
			continue
		}

		if _, err := e.dispatcher.Enqueue(QueueNotifications, broker.Payload{
			Kind:    KindAlarmRing,
			AlarmID: a.ID.Hex(),
			UserID:  a.UserID,
		}, ringAt.Sub(now)); err != nil {
			return err
		}
		restored++
	}

	e.log.Info("restored pending alarm rings", "count", restored)
	return nil
}

// reminderKind recovers a job kind from a reminder's linkage fields
func reminderKind(s *domain.Schedule) string {
	switch {
	case s.TaskID != "":
		return KindTaskDue
	case s.GoalID != "":
		return KindGoalTarget
	case s.MilestoneID != "":
		return KindMilestoneDue
	case s.RoutineTaskID != "":
		return KindRoutineTask
	case s.RoutineID != "":
		return KindRoutine
	default:
		return KindCustom
	}
}

// reminderOffset resolves the remind-before offset a recurring reminder
// was derived with. Lookup failures degrade to reminding at the
// occurrence itself.
func (e *Engine) reminderOffset(ctx context.Context, s *domain.Schedule, kind string) time.Duration {
	switch kind {
	case KindRoutine:
		routine, err := e.routines.FindByID(ctx, s.RoutineID)
		if err != nil {
			return 0
		}
		before, err := parseReminderBefore(routine.ReminderBefore)
		if err != nil {
			return 0
		}
		return before
	case KindRoutineTask:
		task, err := e.routines.FindTaskByID(ctx, s.RoutineTaskID)
		if err != nil {
			return 0
		}
		_, before, err := deriveTaskSchedule(*s.Recurrence, task.ReminderTime)
		if err != nil {
			return 0
		}
		return before
	default:
		return 0
	}
}
