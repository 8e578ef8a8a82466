package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
)

// Queue names owned by the engine
const (
	QueueReminders     = "reminders"
	QueueNotifications = "notifications"
	QueuePlanning      = "planning"
	QueueEmail         = "email"
	QueueCleanup       = "cleanup"
)

// Job kinds carried in broker payloads
const (
	KindTaskDue      = "task_due"
	KindGoalTarget   = "goal_target"
	KindMilestoneDue = "milestone_due"
	KindRoutine      = "routine"
	KindRoutineTask  = "routine_task"
	KindCustom       = "custom"
	KindAlarmRing    = "alarm_ring"
	KindPlan         = "plan"
	KindEmail        = "email"
	KindCleanup      = "cleanup"
)

// ReminderStore is the reminder persistence surface the engine consumes
type ReminderStore interface {
	Create(ctx context.Context, reminder *domain.Reminder) error
	FindByID(ctx context.Context, id string) (*domain.Reminder, error)
	FindByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) ([]*domain.Reminder, error)
	FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Reminder, error)
	FindByRoutineTask(ctx context.Context, userID, routineTaskID string) ([]*domain.Reminder, error)
	FindTimeTriggered(ctx context.Context) ([]*domain.Reminder, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) (int64, error)
	DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error)
	DeleteByRoutineTask(ctx context.Context, userID, routineTaskID string) (int64, error)
	DeleteSpentOneOffs(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlarmStore is the alarm persistence surface the engine consumes
type AlarmStore interface {
	Create(ctx context.Context, alarm *domain.Alarm) error
	FindByID(ctx context.Context, id, userID string) (*domain.Alarm, error)
	FindEnabled(ctx context.Context) ([]*domain.Alarm, error)
	FindByLinkedTask(ctx context.Context, userID, taskID string) ([]*domain.Alarm, error)
	FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Alarm, error)
	DeleteByLinkedTask(ctx context.Context, userID, taskID string) (int64, error)
	DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error)
	DeleteSpentOneShots(ctx context.Context, cutoff time.Time) (int64, error)
}

// RoutineStore reads routines and their tasks
type RoutineStore interface {
	FindByID(ctx context.Context, id string) (*domain.Routine, error)
	FindTaskByID(ctx context.Context, id string) (*domain.RoutineTask, error)
	FindTasks(ctx context.Context, routineID string) ([]*domain.RoutineTask, error)
}

// EntityStore reads the owning entities checked at fire time
type EntityStore interface {
	FindTask(ctx context.Context, id string) (*domain.Task, error)
	FindGoal(ctx context.Context, id string) (*domain.Goal, error)
	FindMilestone(ctx context.Context, id string) (*domain.Milestone, error)
}

// PreferenceStore reads per-user delivery preferences
type PreferenceStore interface {
	GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
}

// NotificationStore records delivery audit entries
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	FindByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkStatus(ctx context.Context, id string, status domain.NotificationStatus, sendErr error) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher is the delayed job surface the engine schedules against
type Dispatcher interface {
	Enqueue(queue string, p broker.Payload, delay time.Duration) (*broker.Job, error)
	ListPending(queue string) []broker.Job
	Remove(queue, jobID string) bool
	RemoveMatching(queue string, match func(broker.Payload) bool) int
}
