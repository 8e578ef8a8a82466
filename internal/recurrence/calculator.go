// Package recurrence computes concrete future occurrences from
// recurrence definitions. All functions are pure; callers treat a nil
// result as "do not reschedule" and log, never crash.
package recurrence

import (
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
)

// NextOccurrence returns the next valid instant strictly after ref for
// the given schedule payload. One-off schedules never reschedule and
// YEARLY recurrences are not supported in the derived path, so both
// return nil.
func NextOccurrence(s *domain.Schedule, ref time.Time) *time.Time {
	if s == nil || s.OneOff() || s.Recurrence == nil {
		return nil
	}
	return NextRecurrence(s.Recurrence, ref)
}

// NextRecurrence returns the next instant strictly after ref matching the
// recurrence definition, or nil when the shape matches no supported case.
// Calling it with a previous occurrence as ref advances exactly one cycle.
func NextRecurrence(rs *domain.RecurrenceSchedule, ref time.Time) *time.Time {
	if rs == nil {
		return nil
	}

	switch rs.Frequency {
	case domain.FrequencyDaily:
		return nextDaily(rs, ref)
	case domain.FrequencyWeekly:
		return nextWeekly(rs, ref)
	case domain.FrequencyMonthly:
		return nextMonthly(rs, ref)
	default:
		// YEARLY and unknown shapes: no general calendar rule here.
		return nil
	}
}

func nextDaily(rs *domain.RecurrenceSchedule, ref time.Time) *time.Time {
	cand := atTimeOfDay(ref, rs.TimeOfDay)
	if !cand.After(ref) {
		cand = cand.AddDate(0, 0, 1)
	}
	return &cand
}

func nextWeekly(rs *domain.RecurrenceSchedule, ref time.Time) *time.Time {
	if len(rs.DaysOfWeek) == 0 {
		return nil
	}

	var best *time.Time
	for _, dow := range rs.DaysOfWeek {
		if dow < 0 || dow > 6 {
			continue
		}
		delta := (dow - int(ref.Weekday()) + 7) % 7
		cand := atTimeOfDay(ref.AddDate(0, 0, delta), rs.TimeOfDay)
		if !cand.After(ref) {
			cand = cand.AddDate(0, 0, 7)
		}
		if best == nil || cand.Before(*best) {
			c := cand
			best = &c
		}
	}
	return best
}

func nextMonthly(rs *domain.RecurrenceSchedule, ref time.Time) *time.Time {
	if rs.DayOfMonth < 1 {
		return nil
	}

	year, month := ref.Year(), ref.Month()
	day := clampDay(rs.DayOfMonth, year, month)
	cand := time.Date(year, month, day, rs.TimeOfDay.Hour, rs.TimeOfDay.Minute, 0, 0, ref.Location())
	if !cand.After(ref) {
		year, month = nextMonth(year, month)
		day = clampDay(rs.DayOfMonth, year, month)
		cand = time.Date(year, month, day, rs.TimeOfDay.Hour, rs.TimeOfDay.Minute, 0, 0, ref.Location())
	}
	return &cand
}

func atTimeOfDay(date time.Time, tod domain.TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, date.Location())
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// clampDay clamps a configured day-of-month to the last day of the month,
// so day 31 against February yields the 28th or 29th.
func clampDay(day, year int, month time.Month) int {
	last := daysInMonth(year, month)
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
