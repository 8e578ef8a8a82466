package domain

import "time"

// EventType represents an entity mutation event consumed from the broker
type EventType string

const (
	EventTaskDueDateSet     EventType = "task.due_date_set"
	EventTaskCompleted      EventType = "task.completed"
	EventTaskDeleted        EventType = "task.deleted"
	EventGoalTargetDateSet  EventType = "goal.target_date_set"
	EventGoalCompleted      EventType = "goal.completed"
	EventMilestoneDueSet    EventType = "milestone.due_date_set"
	EventRoutineCreated     EventType = "routine.created"
	EventRoutineUpdated     EventType = "routine.updated"
	EventRoutineDeleted     EventType = "routine.deleted"
	EventRoutineTaskCreated EventType = "routine.task_created"
	EventRoutineTaskUpdated EventType = "routine.task_updated"
	EventRoutineTaskDeleted EventType = "routine.task_deleted"
	EventPlanRequested      EventType = "plan.requested"
)

// Event represents an entity mutation published by the CRUD services.
// Scheduling triggered from an event never fails the originating request;
// the consumer dispatches each event best-effort.
type Event struct {
	Type      EventType  `json:"type"`
	UserID    string     `json:"user_id"`
	EntityID  string     `json:"entity_id,omitempty"`
	RoutineID string     `json:"routine_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	DueTime   string     `json:"due_time,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
