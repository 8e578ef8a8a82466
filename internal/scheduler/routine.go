package scheduler

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	"github.com/vhvplatform/go-reminder-engine/internal/recurrence"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
)

// maxCorrectionAttempts bounds the forward search for a remind instant
// still in the future. Beyond this many cycles the offset is larger than
// the recurrence period times the bound, which no sane routine carries.
const maxCorrectionAttempts = 12

var (
	reminderBeforePattern = regexp.MustCompile(`^(\d+)([hdw])$`)
	absoluteTimePattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	relativeTimePattern   = regexp.MustCompile(`^-(\d+)(min|hour)$`)
)

// ScheduleRoutineNotifications replaces a routine's recurring reminder
// and alarm with freshly derived ones. A disabled routine only cancels.
func (e *Engine) ScheduleRoutineNotifications(ctx context.Context, userID, routineID string) error {
	routine, err := e.routines.FindByID(ctx, routineID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return e.CancelRoutineNotifications(ctx, userID, routineID)
		}
		return err
	}

	if err := e.CancelRoutineNotifications(ctx, userID, routineID); err != nil {
		return err
	}
	if !routine.Enabled {
		return nil
	}

	// The cancel above also swept the routine's task reminders; rebuild
	// them before deriving the routine's own reminder.
	tasks, err := e.routines.FindTasks(ctx, routineID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := e.ScheduleRoutineTaskNotifications(ctx, userID, task.ID.Hex()); err != nil {
			return err
		}
	}

	before, err := parseReminderBefore(routine.ReminderBefore)
	if err != nil {
		e.log.Warn("unparseable reminder_before, reminding at the occurrence",
			"routine_id", routineID, "reminder_before", routine.ReminderBefore)
		before = 0
	}

	occ, remindAt := e.nextRemindInstant(&routine.Schedule, before)
	if occ == nil {
		metrics.SchedulingImpossible.WithLabelValues(KindRoutine).Inc()
		e.log.Warn("no future occurrence derivable for routine",
			"routine_id", routineID, "frequency", routine.Schedule.Frequency)
		return nil
	}

	reminder := &domain.Reminder{
		UserID:  userID,
		Title:   routine.Title,
		Target:  domain.TargetCustom,
		Trigger: domain.TriggerTime,
		Schedule: domain.Schedule{
			Recurrence: &routine.Schedule,
			RoutineID:  routineID,
		},
	}
	if err := e.reminders.Create(ctx, reminder); err != nil {
		return err
	}
	if _, err := e.dispatcher.Enqueue(QueueReminders, broker.Payload{
		Kind:       KindRoutine,
		ReminderID: reminder.ID.Hex(),
		UserID:     userID,
	}, remindAt.Sub(e.now())); err != nil {
		return err
	}
	metrics.RemindersScheduled.WithLabelValues(KindRoutine).Inc()

	rule, err := recurrence.AlarmRule(&routine.Schedule)
	if err != nil {
		return err
	}
	alarm := &domain.Alarm{
		UserID:         userID,
		Time:           *occ,
		RecurrenceRule: rule,
		Enabled:        true,
		RoutineID:      routineID,
	}
	if err := e.alarms.Create(ctx, alarm); err != nil {
		return err
	}
	if _, err := e.dispatcher.Enqueue(QueueNotifications, broker.Payload{
		Kind:    KindAlarmRing,
		AlarmID: alarm.ID.Hex(),
		UserID:  userID,
	}, occ.Sub(e.now())); err != nil {
		return err
	}

	e.log.Info("scheduled routine notifications",
		"user_id", userID, "routine_id", routineID,
		"occurrence", occ, "remind_at", remindAt)
	return nil
}

// CancelRoutineNotifications removes a routine's reminders, alarms and
// their pending jobs, including those of its routine tasks.
func (e *Engine) CancelRoutineNotifications(ctx context.Context, userID, routineID string) error {
	existing, err := e.reminders.FindByRoutine(ctx, userID, routineID)
	if err != nil {
		return err
	}
	e.removeReminderJobs(existing)
	if _, err := e.reminders.DeleteByRoutine(ctx, userID, routineID); err != nil {
		return err
	}

	alarms, err := e.alarms.FindByRoutine(ctx, userID, routineID)
	if err != nil {
		return err
	}
	e.removeAlarmJobs(alarms)
	if _, err := e.alarms.DeleteByRoutine(ctx, userID, routineID); err != nil {
		return err
	}
	return nil
}

// ScheduleRoutineTaskNotifications replaces one routine task's recurring
// reminder. The task's reminder time either overrides the routine's wall
// clock ("HH:mm") or shifts it backwards ("-Nmin"/"-Nhour").
func (e *Engine) ScheduleRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error {
	task, err := e.routines.FindTaskByID(ctx, routineTaskID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return e.CancelRoutineTaskNotifications(ctx, userID, routineTaskID)
		}
		return err
	}

	if err := e.CancelRoutineTaskNotifications(ctx, userID, routineTaskID); err != nil {
		return err
	}
	if !task.Enabled {
		return nil
	}

	routine, err := e.routines.FindByID(ctx, task.RoutineID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !routine.Enabled {
		return nil
	}

	schedule, before, err := deriveTaskSchedule(routine.Schedule, task.ReminderTime)
	if err != nil {
		e.log.Warn("unparseable reminder_time, using the routine's schedule",
			"routine_task_id", routineTaskID, "reminder_time", task.ReminderTime)
		schedule, before = routine.Schedule, 0
	}

	occ, remindAt := e.nextRemindInstant(&schedule, before)
	if occ == nil {
		metrics.SchedulingImpossible.WithLabelValues(KindRoutineTask).Inc()
		e.log.Warn("no future occurrence derivable for routine task",
			"routine_task_id", routineTaskID, "frequency", schedule.Frequency)
		return nil
	}

	reminder := &domain.Reminder{
		UserID:  userID,
		Title:   task.Title,
		Target:  domain.TargetCustom,
		Trigger: domain.TriggerTime,
		Schedule: domain.Schedule{
			Recurrence:    &schedule,
			RoutineID:     task.RoutineID,
			RoutineTaskID: routineTaskID,
		},
	}
	if err := e.reminders.Create(ctx, reminder); err != nil {
		return err
	}
	if _, err := e.dispatcher.Enqueue(QueueReminders, broker.Payload{
		Kind:       KindRoutineTask,
		ReminderID: reminder.ID.Hex(),
		UserID:     userID,
	}, remindAt.Sub(e.now())); err != nil {
		return err
	}
	metrics.RemindersScheduled.WithLabelValues(KindRoutineTask).Inc()

	e.log.Info("scheduled routine task notifications",
		"user_id", userID, "routine_task_id", routineTaskID,
		"occurrence", occ, "remind_at", remindAt)
	return nil
}

// CancelRoutineTaskNotifications removes one routine task's reminders
// and their pending jobs.
func (e *Engine) CancelRoutineTaskNotifications(ctx context.Context, userID, routineTaskID string) error {
	existing, err := e.reminders.FindByRoutineTask(ctx, userID, routineTaskID)
	if err != nil {
		return err
	}
	e.removeReminderJobs(existing)
	if _, err := e.reminders.DeleteByRoutineTask(ctx, userID, routineTaskID); err != nil {
		return err
	}
	return nil
}

// nextRemindInstant finds the first occurrence whose remind instant
// (occurrence minus the before-offset) still lies in the future. When
// the offset pushes the remind instant into the past, the search
// advances one occurrence at a time, bounded by maxCorrectionAttempts.
func (e *Engine) nextRemindInstant(rs *domain.RecurrenceSchedule, before time.Duration) (*time.Time, *time.Time) {
	now := e.now()
	occ := recurrence.NextRecurrence(rs, now)
	for attempt := 0; occ != nil && attempt < maxCorrectionAttempts; attempt++ {
		remindAt := occ.Add(-before)
		if remindAt.After(now) {
			return occ, &remindAt
		}
		occ = recurrence.NextRecurrence(rs, *occ)
	}
	return nil, nil
}

// parseReminderBefore parses the routine-level lead offset "N[h|d|w]".
// Empty means remind at the occurrence itself.
func parseReminderBefore(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	m := reminderBeforePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, apperrors.NewValidationError("invalid reminder_before "+s, nil)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
}

// deriveTaskSchedule applies a routine task's reminder time override to
// the routine's schedule. An absolute "HH:mm" replaces the wall-clock
// time; a relative "-Nmin"/"-Nhour" becomes a before-offset.
func deriveTaskSchedule(base domain.RecurrenceSchedule, reminderTime string) (domain.RecurrenceSchedule, time.Duration, error) {
	if reminderTime == "" {
		return base, 0, nil
	}

	if m := absoluteTimePattern.FindStringSubmatch(reminderTime); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		tod := domain.TimeOfDay{Hour: hour, Minute: minute}
		if !tod.Valid() {
			return base, 0, apperrors.NewValidationError("invalid reminder_time "+reminderTime, nil)
		}
		derived := base
		derived.TimeOfDay = tod
		return derived, 0, nil
	}

	if m := relativeTimePattern.FindStringSubmatch(reminderTime); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := time.Minute
		if m[2] == "hour" {
			unit = time.Hour
		}
		return base, time.Duration(n) * unit, nil
	}

	return base, 0, apperrors.NewValidationError("invalid reminder_time "+reminderTime, nil)
}
