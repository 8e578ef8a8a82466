package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/gateway"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeReminders struct {
	items     map[string]*domain.Reminder
	createErr error
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{items: make(map[string]*domain.Reminder)}
}

func (f *fakeReminders) Create(ctx context.Context, r *domain.Reminder) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err := r.Schedule.Validate(); err != nil {
		return err
	}
	r.ID = primitive.NewObjectID()
	f.items[r.ID.Hex()] = r
	return nil
}

func (f *fakeReminders) FindByID(ctx context.Context, id string) (*domain.Reminder, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("reminder not found", nil)
	}
	return r, nil
}

func (f *fakeReminders) FindByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) ([]*domain.Reminder, error) {
	var out []*domain.Reminder
	for _, r := range f.items {
		if r.UserID == userID && r.Target == target && r.TargetID == targetID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminders) FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Reminder, error) {
	var out []*domain.Reminder
	for _, r := range f.items {
		if r.UserID == userID && r.Schedule.RoutineID == routineID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminders) FindByRoutineTask(ctx context.Context, userID, routineTaskID string) ([]*domain.Reminder, error) {
	var out []*domain.Reminder
	for _, r := range f.items {
		if r.UserID == userID && r.Schedule.RoutineTaskID == routineTaskID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminders) FindTimeTriggered(ctx context.Context) ([]*domain.Reminder, error) {
	var out []*domain.Reminder
	for _, r := range f.items {
		if r.Trigger == domain.TriggerTime || r.Trigger == domain.TriggerBoth {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminders) DeleteByID(ctx context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeReminders) DeleteByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) (int64, error) {
	found, _ := f.FindByTarget(ctx, userID, target, targetID)
	for _, r := range found {
		delete(f.items, r.ID.Hex())
	}
	return int64(len(found)), nil
}

func (f *fakeReminders) DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error) {
	found, _ := f.FindByRoutine(ctx, userID, routineID)
	for _, r := range found {
		delete(f.items, r.ID.Hex())
	}
	return int64(len(found)), nil
}

func (f *fakeReminders) DeleteByRoutineTask(ctx context.Context, userID, routineTaskID string) (int64, error) {
	found, _ := f.FindByRoutineTask(ctx, userID, routineTaskID)
	for _, r := range found {
		delete(f.items, r.ID.Hex())
	}
	return int64(len(found)), nil
}

func (f *fakeReminders) DeleteSpentOneOffs(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, r := range f.items {
		if r.Schedule.At != nil && r.Schedule.At.Before(cutoff) {
			delete(f.items, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeAlarms struct {
	items map[string]*domain.Alarm
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{items: make(map[string]*domain.Alarm)}
}

func (f *fakeAlarms) Create(ctx context.Context, a *domain.Alarm) error {
	a.ID = primitive.NewObjectID()
	f.items[a.ID.Hex()] = a
	return nil
}

func (f *fakeAlarms) FindByID(ctx context.Context, id, userID string) (*domain.Alarm, error) {
	a, ok := f.items[id]
	if !ok || a.UserID != userID {
		return nil, apperrors.NewNotFoundError("alarm not found", nil)
	}
	return a, nil
}

func (f *fakeAlarms) FindEnabled(ctx context.Context) ([]*domain.Alarm, error) {
	var out []*domain.Alarm
	for _, a := range f.items {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlarms) FindByLinkedTask(ctx context.Context, userID, taskID string) ([]*domain.Alarm, error) {
	var out []*domain.Alarm
	for _, a := range f.items {
		if a.UserID == userID && a.LinkedTaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlarms) FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Alarm, error) {
	var out []*domain.Alarm
	for _, a := range f.items {
		if a.UserID == userID && a.RoutineID == routineID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlarms) DeleteByLinkedTask(ctx context.Context, userID, taskID string) (int64, error) {
	found, _ := f.FindByLinkedTask(ctx, userID, taskID)
	for _, a := range found {
		delete(f.items, a.ID.Hex())
	}
	return int64(len(found)), nil
}

func (f *fakeAlarms) DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error) {
	found, _ := f.FindByRoutine(ctx, userID, routineID)
	for _, a := range found {
		delete(f.items, a.ID.Hex())
	}
	return int64(len(found)), nil
}

func (f *fakeAlarms) DeleteSpentOneShots(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, a := range f.items {
		if a.RecurrenceRule == "" && a.Time.Before(cutoff) {
			delete(f.items, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeRoutines struct {
	routines map[string]*domain.Routine
	tasks    map[string]*domain.RoutineTask
}

func newFakeRoutines() *fakeRoutines {
	return &fakeRoutines{
		routines: make(map[string]*domain.Routine),
		tasks:    make(map[string]*domain.RoutineTask),
	}
}

func (f *fakeRoutines) FindByID(ctx context.Context, id string) (*domain.Routine, error) {
	r, ok := f.routines[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("routine not found", nil)
	}
	return r, nil
}

func (f *fakeRoutines) FindTaskByID(ctx context.Context, id string) (*domain.RoutineTask, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("routine task not found", nil)
	}
	return t, nil
}

func (f *fakeRoutines) FindTasks(ctx context.Context, routineID string) ([]*domain.RoutineTask, error) {
	var out []*domain.RoutineTask
	for _, t := range f.tasks {
		if t.RoutineID == routineID && t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeEntities struct {
	tasks      map[string]*domain.Task
	goals      map[string]*domain.Goal
	milestones map[string]*domain.Milestone
}

func newFakeEntities() *fakeEntities {
	return &fakeEntities{
		tasks:      make(map[string]*domain.Task),
		goals:      make(map[string]*domain.Goal),
		milestones: make(map[string]*domain.Milestone),
	}
}

func (f *fakeEntities) FindTask(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.DeletedAt != nil {
		return nil, apperrors.NewNotFoundError("task not found", nil)
	}
	return t, nil
}

func (f *fakeEntities) FindGoal(ctx context.Context, id string) (*domain.Goal, error) {
	g, ok := f.goals[id]
	if !ok || g.DeletedAt != nil {
		return nil, apperrors.NewNotFoundError("goal not found", nil)
	}
	return g, nil
}

func (f *fakeEntities) FindMilestone(ctx context.Context, id string) (*domain.Milestone, error) {
	m, ok := f.milestones[id]
	if !ok || m.DeletedAt != nil {
		return nil, apperrors.NewNotFoundError("milestone not found", nil)
	}
	return m, nil
}

type fakePrefs struct {
	prefs map[string]*domain.NotificationPreferences
	err   error
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{prefs: make(map[string]*domain.NotificationPreferences)}
}

func (f *fakePrefs) GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return &domain.NotificationPreferences{
		UserID:       userID,
		PushEnabled:  true,
		EmailEnabled: true,
	}, nil
}

type fakeNotifications struct {
	items map[string]*domain.Notification
	order []string
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{items: make(map[string]*domain.Notification)}
}

func (f *fakeNotifications) Create(ctx context.Context, n *domain.Notification) error {
	n.ID = primitive.NewObjectID()
	n.Status = domain.NotificationStatusPending
	f.items[n.ID.Hex()] = n
	f.order = append(f.order, n.ID.Hex())
	return nil
}

func (f *fakeNotifications) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	n, ok := f.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("notification not found", nil)
	}
	return n, nil
}

func (f *fakeNotifications) MarkStatus(ctx context.Context, id string, status domain.NotificationStatus, sendErr error) error {
	n, ok := f.items[id]
	if !ok {
		return apperrors.NewNotFoundError("notification not found", nil)
	}
	n.Status = status
	if sendErr != nil {
		n.Error = sendErr.Error()
	}
	return nil
}

func (f *fakeNotifications) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, n := range f.items {
		if n.Status != domain.NotificationStatusPending && n.UpdatedAt.Before(cutoff) {
			delete(f.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeNotifications) last() *domain.Notification {
	if len(f.order) == 0 {
		return nil
	}
	return f.items[f.order[len(f.order)-1]]
}

type pendingJob struct {
	id      string
	queue   string
	payload broker.Payload
	delay   time.Duration
}

type fakeDispatcher struct {
	seq             int
	jobs            []pendingJob
	enqueueErr      error
	enqueueFailures int
}

func (d *fakeDispatcher) Enqueue(queue string, p broker.Payload, delay time.Duration) (*broker.Job, error) {
	if d.enqueueFailures > 0 {
		d.enqueueFailures--
		return nil, errTest
	}
	if d.enqueueErr != nil {
		return nil, d.enqueueErr
	}
	d.seq++
	id := fmt.Sprintf("job-%d", d.seq)
	d.jobs = append(d.jobs, pendingJob{id: id, queue: queue, payload: p, delay: delay})
	return &broker.Job{ID: id, Queue: queue, Payload: p}, nil
}

func (d *fakeDispatcher) ListPending(queue string) []broker.Job {
	var out []broker.Job
	for _, j := range d.jobs {
		if j.queue == queue {
			out = append(out, broker.Job{ID: j.id, Queue: j.queue, Payload: j.payload})
		}
	}
	return out
}

func (d *fakeDispatcher) Remove(queue, jobID string) bool {
	for i, j := range d.jobs {
		if j.queue == queue && j.id == jobID {
			d.jobs = append(d.jobs[:i], d.jobs[i+1:]...)
			return true
		}
	}
	return false
}

func (d *fakeDispatcher) RemoveMatching(queue string, match func(broker.Payload) bool) int {
	kept := d.jobs[:0]
	removed := 0
	for _, j := range d.jobs {
		if j.queue == queue && match(j.payload) {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	d.jobs = kept
	return removed
}

func (d *fakeDispatcher) pending(queue string) []pendingJob {
	var out []pendingJob
	for _, j := range d.jobs {
		if j.queue == queue {
			out = append(out, j)
		}
	}
	return out
}

type fakePush struct {
	users    []string
	messages []gateway.PushMessage
	err      error
	dropped  bool
}

func (f *fakePush) Send(ctx context.Context, userID string, msg gateway.PushMessage) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.dropped {
		return false, nil
	}
	f.users = append(f.users, userID)
	f.messages = append(f.messages, msg)
	return true, nil
}

type fakeEmail struct {
	recipients []string
	err        error
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, html string) error {
	if f.err != nil {
		return f.err
	}
	f.recipients = append(f.recipients, to)
	return nil
}

type fakePlanning struct {
	users []string
	err   error
}

func (f *fakePlanning) GeneratePlan(ctx context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, userID)
	return nil
}

type engineFixture struct {
	engine        *Engine
	reminders     *fakeReminders
	alarms        *fakeAlarms
	routines      *fakeRoutines
	entities      *fakeEntities
	prefs         *fakePrefs
	notifications *fakeNotifications
	dispatcher    *fakeDispatcher
	push          *fakePush
	email         *fakeEmail
	planning      *fakePlanning
	now           time.Time
}

// fixedNow is a Tuesday at noon UTC
var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var errTest = errors.New("induced failure")

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		reminders:     newFakeReminders(),
		alarms:        newFakeAlarms(),
		routines:      newFakeRoutines(),
		entities:      newFakeEntities(),
		prefs:         newFakePrefs(),
		notifications: newFakeNotifications(),
		dispatcher:    &fakeDispatcher{},
		push:          &fakePush{},
		email:         &fakeEmail{},
		planning:      &fakePlanning{},
		now:           fixedNow,
	}
	f.engine = NewEngine(Deps{
		Reminders:     f.reminders,
		Alarms:        f.alarms,
		Routines:      f.routines,
		Entities:      f.entities,
		Preferences:   f.prefs,
		Notifications: f.notifications,
		Dispatcher:    f.dispatcher,
		Push:          f.push,
		Email:         f.email,
		Planning:      f.planning,
		Log:           logger.NewNop(),
	})
	f.engine.now = func() time.Time { return f.now }
	return f
}
