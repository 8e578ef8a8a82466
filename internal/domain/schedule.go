package domain

import (
	"fmt"
	"time"

	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
)

// Frequency represents a recurrence cadence
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// TimeOfDay is a civil wall-clock time. No timezone conversion is applied
// beyond the stored zone label.
type TimeOfDay struct {
	Hour   int `json:"hour" bson:"hour"`
	Minute int `json:"minute" bson:"minute"`
}

// Valid reports whether the wall-clock time is within range
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// RecurrenceSchedule is a recurrence definition tagged by Frequency.
// Exactly one of DaysOfWeek/DayOfMonth is populated, matching the
// frequency; use the New*Schedule constructors to build valid values.
type RecurrenceSchedule struct {
	Frequency Frequency `json:"frequency" bson:"frequency"`
	TimeOfDay TimeOfDay `json:"time_of_day" bson:"time_of_day"`
	// DaysOfWeek holds weekdays 0-6 (Sunday=0); required for WEEKLY.
	DaysOfWeek []int `json:"days_of_week,omitempty" bson:"days_of_week,omitempty"`
	// DayOfMonth is 1-31, clamped to the month's last day; required for MONTHLY.
	DayOfMonth int `json:"day_of_month,omitempty" bson:"day_of_month,omitempty"`
	// TimezoneLabel is informational; calculations run in stored civil time.
	TimezoneLabel string `json:"timezone,omitempty" bson:"timezone,omitempty"`
}

// NewDailySchedule builds a DAILY recurrence
func NewDailySchedule(timeOfDay TimeOfDay, timezone string) (*RecurrenceSchedule, error) {
	s := &RecurrenceSchedule{
		Frequency:     FrequencyDaily,
		TimeOfDay:     timeOfDay,
		TimezoneLabel: timezone,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWeeklySchedule builds a WEEKLY recurrence for the given weekdays (0-6)
func NewWeeklySchedule(timeOfDay TimeOfDay, daysOfWeek []int, timezone string) (*RecurrenceSchedule, error) {
	s := &RecurrenceSchedule{
		Frequency:     FrequencyWeekly,
		TimeOfDay:     timeOfDay,
		DaysOfWeek:    daysOfWeek,
		TimezoneLabel: timezone,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMonthlySchedule builds a MONTHLY recurrence for the given day (1-31)
func NewMonthlySchedule(timeOfDay TimeOfDay, dayOfMonth int, timezone string) (*RecurrenceSchedule, error) {
	s := &RecurrenceSchedule{
		Frequency:     FrequencyMonthly,
		TimeOfDay:     timeOfDay,
		DayOfMonth:    dayOfMonth,
		TimezoneLabel: timezone,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects malformed schedule shapes at the boundary instead of
// trusting optional fields at use sites.
func (s *RecurrenceSchedule) Validate() error {
	if !s.TimeOfDay.Valid() {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid time of day %02d:%02d", s.TimeOfDay.Hour, s.TimeOfDay.Minute), nil)
	}

	switch s.Frequency {
	case FrequencyDaily, FrequencyYearly:
		if len(s.DaysOfWeek) > 0 || s.DayOfMonth != 0 {
			return apperrors.NewValidationError(
				string(s.Frequency)+" schedule must not carry days_of_week or day_of_month", nil)
		}
	case FrequencyWeekly:
		if len(s.DaysOfWeek) == 0 {
			return apperrors.NewValidationError("WEEKLY schedule requires days_of_week", nil)
		}
		if s.DayOfMonth != 0 {
			return apperrors.NewValidationError("WEEKLY schedule must not carry day_of_month", nil)
		}
		for _, d := range s.DaysOfWeek {
			if d < 0 || d > 6 {
				return apperrors.NewValidationError(fmt.Sprintf("day_of_week %d out of range 0-6", d), nil)
			}
		}
	case FrequencyMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return apperrors.NewValidationError(
				fmt.Sprintf("day_of_month %d out of range 1-31", s.DayOfMonth), nil)
		}
		if len(s.DaysOfWeek) > 0 {
			return apperrors.NewValidationError("MONTHLY schedule must not carry days_of_week", nil)
		}
	default:
		return apperrors.NewValidationError("unknown frequency "+string(s.Frequency), nil)
	}
	return nil
}

// Schedule is a reminder's schedule payload: either a one-off instant or
// a recurrence, plus denormalized linkage ids. The linkage rides inside
// the payload because the reminders collection constrains target_id to
// task targets only.
type Schedule struct {
	At         *time.Time          `json:"at,omitempty" bson:"at,omitempty"`
	Recurrence *RecurrenceSchedule `json:"recurrence,omitempty" bson:"recurrence,omitempty"`

	RoutineID     string `json:"routine_id,omitempty" bson:"routine_id,omitempty"`
	RoutineTaskID string `json:"routine_task_id,omitempty" bson:"routine_task_id,omitempty"`
	TaskID        string `json:"task_id,omitempty" bson:"task_id,omitempty"`
	GoalID        string `json:"goal_id,omitempty" bson:"goal_id,omitempty"`
	MilestoneID   string `json:"milestone_id,omitempty" bson:"milestone_id,omitempty"`
}

// OneOff reports whether the schedule fires once and never reschedules
func (s *Schedule) OneOff() bool {
	return s.At != nil
}

// Validate rejects payloads that are neither one-off nor recurring, or both
func (s *Schedule) Validate() error {
	if s.At == nil && s.Recurrence == nil {
		return apperrors.NewValidationError("schedule requires either at or recurrence", nil)
	}
	if s.At != nil && s.Recurrence != nil {
		return apperrors.NewValidationError("schedule cannot be both one-off and recurring", nil)
	}
	if s.Recurrence != nil {
		return s.Recurrence.Validate()
	}
	return nil
}
