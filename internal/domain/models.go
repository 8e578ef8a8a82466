package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetType represents the entity kind a reminder points at
type TargetType string

const (
	TargetTask   TargetType = "TASK"
	TargetGoal   TargetType = "GOAL"
	TargetCustom TargetType = "CUSTOM"
)

// TriggerKind represents what fires a reminder. Only TIME triggers drive
// the scheduling engine; LOCATION is evaluated on-device.
type TriggerKind string

const (
	TriggerTime     TriggerKind = "TIME"
	TriggerLocation TriggerKind = "LOCATION"
	TriggerBoth     TriggerKind = "BOTH"
)

// Reminder represents one scheduled notification instant. Reminders are
// deleted and recreated as a unit, never mutated in place.
type Reminder struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Title     string             `json:"title" bson:"title"`
	Target    TargetType         `json:"target_type" bson:"target_type"`
	TargetID  string             `json:"target_id,omitempty" bson:"target_id,omitempty"`
	Trigger   TriggerKind        `json:"trigger" bson:"trigger"`
	Schedule  Schedule           `json:"schedule" bson:"schedule"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Alarm is the device-facing ring construct paired with reminders.
// An alarm is recreated on every reschedule and never left dangling.
type Alarm struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         string             `json:"user_id" bson:"user_id"`
	Time           time.Time          `json:"time" bson:"time"`
	RecurrenceRule string             `json:"recurrence_rule,omitempty" bson:"recurrence_rule,omitempty"`
	Enabled        bool               `json:"enabled" bson:"enabled"`
	LinkedTaskID   string             `json:"linked_task_id,omitempty" bson:"linked_task_id,omitempty"`
	RoutineID      string             `json:"routine_id,omitempty" bson:"routine_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// Routine is a user-defined recurring activity
type Routine struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID   string             `json:"user_id" bson:"user_id"`
	Title    string             `json:"title" bson:"title"`
	Schedule RecurrenceSchedule `json:"schedule" bson:"schedule"`
	// ReminderBefore is a duration string N[h|d|w], e.g. "2h" or "1d".
	// Empty means remind at the occurrence itself.
	ReminderBefore string    `json:"reminder_before,omitempty" bson:"reminder_before,omitempty"`
	Enabled        bool      `json:"enabled" bson:"enabled"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// RoutineTask is a single step inside a routine with its own reminder
// override relative to the routine's schedule.
type RoutineTask struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RoutineID string             `json:"routine_id" bson:"routine_id"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Title     string             `json:"title" bson:"title"`
	// ReminderTime is either an absolute "HH:mm" replacing the routine's
	// time of day, or a relative "-Nmin"/"-Nhour" offset from it.
	ReminderTime string    `json:"reminder_time,omitempty" bson:"reminder_time,omitempty"`
	Enabled      bool      `json:"enabled" bson:"enabled"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Task is a due-date-bearing entity owned by another service; the engine
// only reads it to validate owners at fire time.
type Task struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Title     string             `json:"title" bson:"title"`
	DueAt     *time.Time         `json:"due_at,omitempty" bson:"due_at,omitempty"`
	Completed bool               `json:"completed" bson:"completed"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Goal is a target-date-bearing entity
type Goal struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Title     string             `json:"title" bson:"title"`
	TargetAt  *time.Time         `json:"target_at,omitempty" bson:"target_at,omitempty"`
	Completed bool               `json:"completed" bson:"completed"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Milestone is a due-date-bearing step of a goal
type Milestone struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GoalID    string             `json:"goal_id" bson:"goal_id"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Title     string             `json:"title" bson:"title"`
	DueAt     *time.Time         `json:"due_at,omitempty" bson:"due_at,omitempty"`
	Completed bool               `json:"completed" bson:"completed"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// NotificationChannel identifies a delivery channel
type NotificationChannel string

const (
	ChannelPush  NotificationChannel = "push"
	ChannelEmail NotificationChannel = "email"
)

// NotificationStatus represents the delivery state of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusSkipped NotificationStatus = "skipped"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is the audit record of one delivery attempt
type Notification struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID    string              `json:"user_id" bson:"user_id"`
	Channel   NotificationChannel `json:"channel" bson:"channel"`
	Status    NotificationStatus  `json:"status" bson:"status"`
	Recipient string              `json:"recipient,omitempty" bson:"recipient,omitempty"`
	Title     string              `json:"title" bson:"title"`
	Body      string              `json:"body,omitempty" bson:"body,omitempty"`
	Data      map[string]string   `json:"data,omitempty" bson:"data,omitempty"`
	Category  string              `json:"category,omitempty" bson:"category,omitempty"`
	Error     string              `json:"error,omitempty" bson:"error,omitempty"`
	SentAt    *time.Time          `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" bson:"updated_at"`
}

// Preference categories gating delivery per user.
const (
	CategoryTaskReminders    = "task_reminders"
	CategoryGoalReminders    = "goal_reminders"
	CategoryDueDates         = "due_dates"
	CategoryRoutineReminders = "routine_reminders"
)

// NotificationPreferences represents user notification preferences.
// Preferences gate delivery only, never recurrence bookkeeping.
type NotificationPreferences struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       string             `json:"user_id" bson:"user_id"`
	PushEnabled  bool               `json:"push_enabled" bson:"push_enabled"`
	EmailEnabled bool               `json:"email_enabled" bson:"email_enabled"`
	Categories   map[string]bool    `json:"categories" bson:"categories"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// Allows reports whether push delivery is enabled for the category.
// Unknown categories default to enabled.
func (p *NotificationPreferences) Allows(category string) bool {
	if !p.PushEnabled {
		return false
	}
	if p.Categories == nil {
		return true
	}
	if enabled, ok := p.Categories[category]; ok {
		return enabled
	}
	return true
}
