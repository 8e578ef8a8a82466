package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/gateway"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	"github.com/vhvplatform/go-reminder-engine/internal/recurrence"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
)

// ownerState is what the fire handler learns from re-reading the
// reminder's owning entity at execution time.
type ownerState struct {
	live     bool
	category string
	before   time.Duration
}

// HandleReminderJob executes one due reminder: re-reads the store,
// checks the owning entity, delivers the push if preferences allow, and
// reschedules recurring reminders. Rescheduling happens even when
// delivery fails; the returned error only retries the delivery attempt.
func (e *Engine) HandleReminderJob(ctx context.Context, job broker.Job) error {
	reminder, err := e.reminders.FindByID(ctx, job.Payload.ReminderID)
	if err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
			e.log.Debug("reminder gone, dropping job", "reminder_id", job.Payload.ReminderID)
			return nil
		}
		return err
	}

	owner, err := e.checkOwner(ctx, reminder, job.Payload.Kind)
	if err != nil {
		return err
	}
	if !owner.live {
		e.log.Info("owning entity gone or terminal, dropping reminder",
			"reminder_id", job.Payload.ReminderID, "kind", job.Payload.Kind)
		return e.reminders.DeleteByID(ctx, reminder.ID.Hex())
	}

	deliverErr := e.deliverPush(ctx, reminder, job.Payload.Kind, owner.category)

	if reminder.Schedule.OneOff() {
		// Keep the document around on failure so the retry can re-read it;
		// the cleanup pass removes it if retries exhaust.
		if deliverErr == nil {
			if err := e.reminders.DeleteByID(ctx, reminder.ID.Hex()); err != nil {
				return err
			}
		}
		return deliverErr
	}

	e.rescheduleRecurring(reminder, job.Payload, owner.before)
	return deliverErr
}

// checkOwner re-reads the reminder's owning entity. The store state at
// fire time, not the queued job, decides whether the reminder still
// applies.
func (e *Engine) checkOwner(ctx context.Context, reminder *domain.Reminder, kind string) (ownerState, error) {
	s := &reminder.Schedule

	switch kind {
	case KindTaskDue:
		task, err := e.entities.FindTask(ctx, s.TaskID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		return ownerState{live: !task.Completed, category: domain.CategoryDueDates}, nil

	case KindGoalTarget:
		goal, err := e.entities.FindGoal(ctx, s.GoalID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		return ownerState{live: !goal.Completed, category: domain.CategoryGoalReminders}, nil

	case KindMilestoneDue:
		milestone, err := e.entities.FindMilestone(ctx, s.MilestoneID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		return ownerState{live: !milestone.Completed, category: domain.CategoryDueDates}, nil

	case KindRoutine:
		routine, err := e.routines.FindByID(ctx, s.RoutineID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		before, berr := parseReminderBefore(routine.ReminderBefore)
		if berr != nil {
			before = 0
		}
		return ownerState{live: routine.Enabled, category: domain.CategoryRoutineReminders, before: before}, nil

	case KindRoutineTask:
		task, err := e.routines.FindTaskByID(ctx, s.RoutineTaskID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		if !task.Enabled {
			return ownerState{}, nil
		}
		routine, err := e.routines.FindByID(ctx, task.RoutineID)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return ownerState{}, nil
			}
			return ownerState{}, err
		}
		_, before, berr := deriveTaskSchedule(routine.Schedule, task.ReminderTime)
		if berr != nil {
			before = 0
		}
		return ownerState{live: routine.Enabled, category: domain.CategoryRoutineReminders, before: before}, nil

	default:
		return ownerState{live: true, category: domain.CategoryTaskReminders}, nil
	}
}

// deliverPush records the audit entry and attempts delivery. Disabled
// preferences and rate-limited drops are skips, not failures.
func (e *Engine) deliverPush(ctx context.Context, reminder *domain.Reminder, kind, category string) error {
	prefs, err := e.prefs.GetByUserID(ctx, reminder.UserID)
	if err != nil {
		return err
	}

	n := &domain.Notification{
		UserID:   reminder.UserID,
		Channel:  domain.ChannelPush,
		Title:    reminder.Title,
		Body:     pushBody(kind, reminder.Title),
		Category: category,
		Data: map[string]string{
			"kind":        kind,
			"reminder_id": reminder.ID.Hex(),
		},
	}
	if err := e.notifications.Create(ctx, n); err != nil {
		return err
	}

	if !prefs.Allows(category) {
		e.log.Debug("push suppressed by preferences",
			"user_id", reminder.UserID, "category", category)
		return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSkipped, nil)
	}

	sent, err := e.push.Send(ctx, reminder.UserID, gateway.PushMessage{
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
	})
	if err != nil {
		if markErr := e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusFailed, err); markErr != nil {
			e.log.Error("failed to mark notification failed", "notification_id", n.ID.Hex(), "error", markErr)
		}
		return err
	}
	if !sent {
		return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSkipped, nil)
	}
	return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSent, nil)
}

// rescheduleRecurring enqueues the next fire of a recurring reminder.
// Removing the reminder's pending jobs first makes the operation
// idempotent under delivery retries.
func (e *Engine) rescheduleRecurring(reminder *domain.Reminder, p broker.Payload, before time.Duration) {
	occ, remindAt := e.nextRemindInstant(reminder.Schedule.Recurrence, before)
	if occ == nil {
		metrics.SchedulingImpossible.WithLabelValues(p.Kind).Inc()
		e.log.Warn("recurring reminder cannot be rescheduled",
			"reminder_id", p.ReminderID, "kind", p.Kind)
		return
	}

	id := reminder.ID.Hex()
	e.dispatcher.RemoveMatching(QueueReminders, func(pending broker.Payload) bool {
		return pending.ReminderID == id
	})
	if _, err := e.dispatcher.Enqueue(QueueReminders, broker.Payload{
		Kind:       p.Kind,
		ReminderID: id,
		UserID:     p.UserID,
	}, remindAt.Sub(e.now())); err != nil {
		e.log.Error("failed to enqueue next recurrence",
			"reminder_id", id, "error", err)
	}
}

// HandleNotificationJob executes one alarm ring. A disabled or deleted
// alarm neither rings nor reschedules.
func (e *Engine) HandleNotificationJob(ctx context.Context, job broker.Job) error {
	alarm, err := e.alarms.FindByID(ctx, job.Payload.AlarmID, job.Payload.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
			e.log.Debug("alarm gone, dropping ring", "alarm_id", job.Payload.AlarmID)
			return nil
		}
		return err
	}
	if !alarm.Enabled {
		return nil
	}

	category := domain.CategoryDueDates
	if alarm.RoutineID != "" {
		category = domain.CategoryRoutineReminders
	}

	deliverErr := e.deliverAlarmRing(ctx, alarm, category)

	if alarm.RecurrenceRule != "" {
		e.rescheduleAlarm(alarm, job.Payload.UserID)
	}
	return deliverErr
}

func (e *Engine) deliverAlarmRing(ctx context.Context, alarm *domain.Alarm, category string) error {
	prefs, err := e.prefs.GetByUserID(ctx, alarm.UserID)
	if err != nil {
		return err
	}

	n := &domain.Notification{
		UserID:   alarm.UserID,
		Channel:  domain.ChannelPush,
		Title:    "Alarm",
		Body:     "Your alarm is ringing",
		Category: category,
		Data: map[string]string{
			"kind":     KindAlarmRing,
			"alarm_id": alarm.ID.Hex(),
		},
	}
	if err := e.notifications.Create(ctx, n); err != nil {
		return err
	}

	if !prefs.Allows(category) {
		return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSkipped, nil)
	}

	sent, err := e.push.Send(ctx, alarm.UserID, gateway.PushMessage{
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
		Sound: "alarm",
	})
	if err != nil {
		if markErr := e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusFailed, err); markErr != nil {
			e.log.Error("failed to mark notification failed", "notification_id", n.ID.Hex(), "error", markErr)
		}
		return err
	}
	if !sent {
		return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSkipped, nil)
	}
	return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSent, nil)
}

func (e *Engine) rescheduleAlarm(alarm *domain.Alarm, userID string) {
	next, err := recurrence.NextRingTime(alarm.RecurrenceRule, alarm.Time, e.now())
	if err != nil || next == nil {
		metrics.SchedulingImpossible.WithLabelValues(KindAlarmRing).Inc()
		e.log.Warn("recurring alarm cannot be rescheduled",
			"alarm_id", alarm.ID.Hex(), "rule", alarm.RecurrenceRule, "error", err)
		return
	}

	id := alarm.ID.Hex()
	e.dispatcher.RemoveMatching(QueueNotifications, func(p broker.Payload) bool {
		return p.AlarmID == id
	})
	if _, err := e.dispatcher.Enqueue(QueueNotifications, broker.Payload{
		Kind:    KindAlarmRing,
		AlarmID: id,
		UserID:  userID,
	}, next.Sub(e.now())); err != nil {
		e.log.Error("failed to enqueue next alarm ring", "alarm_id", id, "error", err)
	}
}

// HandleEmailJob delivers one queued email notification
func (e *Engine) HandleEmailJob(ctx context.Context, job broker.Job) error {
	n, err := e.notifications.FindByID(ctx, job.Payload.NotificationID)
	if err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
			return nil
		}
		return err
	}
	if n.Status == domain.NotificationStatusSent || n.Status == domain.NotificationStatusSkipped {
		return nil
	}

	if err := e.email.Send(ctx, n.Recipient, n.Title, n.Body); err != nil {
		if markErr := e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusFailed, err); markErr != nil {
			e.log.Error("failed to mark notification failed", "notification_id", n.ID.Hex(), "error", markErr)
		}
		return err
	}
	return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSent, nil)
}

// HandlePlanningJob triggers daily plan generation for one user
func (e *Engine) HandlePlanningJob(ctx context.Context, job broker.Job) error {
	return e.planning.GeneratePlan(ctx, job.Payload.UserID)
}

func pushBody(kind, title string) string {
	switch kind {
	case KindTaskDue:
		return "Task \"" + title + "\" is due soon"
	case KindGoalTarget:
		return "Goal \"" + title + "\" is approaching its target date"
	case KindMilestoneDue:
		return "Milestone \"" + title + "\" is due soon"
	case KindRoutine:
		return "Time for your routine \"" + title + "\""
	case KindRoutineTask:
		return "Time for \"" + title + "\""
	default:
		return title
	}
}
