// Package scheduler is the core of the reminder engine: it derives
// concrete notification instants from due dates, routines and alarms,
// keeps the store and the delayed job broker in lockstep, and executes
// jobs when their instant arrives. The store is the source of truth;
// pending jobs are a cache that is rebuilt on startup.
package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/gateway"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// Deps bundles the stores and gateways the engine operates on
type Deps struct {
	Reminders     ReminderStore
	Alarms        AlarmStore
	Routines      RoutineStore
	Entities      EntityStore
	Preferences   PreferenceStore
	Notifications NotificationStore
	Dispatcher    Dispatcher
	Push          gateway.PushSender
	Email         gateway.EmailSender
	Planning      gateway.PlanningClient
	Log           *logger.Logger
}

// Engine schedules, reschedules and executes reminder work
type Engine struct {
	reminders     ReminderStore
	alarms        AlarmStore
	routines      RoutineStore
	entities      EntityStore
	prefs         PreferenceStore
	notifications NotificationStore
	dispatcher    Dispatcher
	push          gateway.PushSender
	email         gateway.EmailSender
	planning      gateway.PlanningClient
	log           *logger.Logger

	now func() time.Time
}

// NewEngine creates a new scheduling engine
func NewEngine(d Deps) *Engine {
	return &Engine{
		reminders:     d.Reminders,
		alarms:        d.Alarms,
		routines:      d.Routines,
		entities:      d.Entities,
		prefs:         d.Preferences,
		notifications: d.Notifications,
		dispatcher:    d.Dispatcher,
		push:          d.Push,
		email:         d.Email,
		planning:      d.Planning,
		log:           d.Log,
		now:           time.Now,
	}
}

// CancelAlarmPushNotifications removes the pending ring notifications of
// one alarm. The alarm document itself is untouched.
func (e *Engine) CancelAlarmPushNotifications(alarmID, userID string) int {
	removed := e.dispatcher.RemoveMatching(QueueNotifications, func(p broker.Payload) bool {
		return p.AlarmID == alarmID && p.UserID == userID
	})
	if removed > 0 {
		e.log.Info("cancelled pending alarm notifications", "alarm_id", alarmID, "removed", removed)
	}
	return removed
}

// CancelAllPendingAlarmNotifications removes every pending ring
// notification for a user and returns the count.
func (e *Engine) CancelAllPendingAlarmNotifications(userID string) int {
	removed := e.dispatcher.RemoveMatching(QueueNotifications, func(p broker.Payload) bool {
		return p.Kind == KindAlarmRing && p.UserID == userID
	})
	e.log.Info("cancelled all pending alarm notifications", "user_id", userID, "removed", removed)
	return removed
}

// SendEmail records an email notification and queues it for delivery.
// Email is off the scheduling critical path and gated by the user's
// email preference, not the push preference.
func (e *Engine) SendEmail(ctx context.Context, userID, recipient, subject, body string) error {
	prefs, err := e.prefs.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	n := &domain.Notification{
		UserID:    userID,
		Channel:   domain.ChannelEmail,
		Recipient: recipient,
		Title:     subject,
		Body:      body,
	}
	if err := e.notifications.Create(ctx, n); err != nil {
		return err
	}

	if !prefs.EmailEnabled {
		return e.notifications.MarkStatus(ctx, n.ID.Hex(), domain.NotificationStatusSkipped, nil)
	}

	_, err = e.dispatcher.Enqueue(QueueEmail, broker.Payload{
		Kind:           KindEmail,
		NotificationID: n.ID.Hex(),
		UserID:         userID,
	}, 0)
	return err
}

// RequestPlan queues a daily plan generation run for a user
func (e *Engine) RequestPlan(userID string) error {
	_, err := e.dispatcher.Enqueue(QueuePlanning, broker.Payload{
		Kind:   KindPlan,
		UserID: userID,
	}, 0)
	return err
}
