package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
)

// weekdayCodes maps weekday 0-6 (Sunday=0) to RRULE BYDAY codes.
var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// AlarmRule renders the compact recurrence rule string carried by device
// alarms, e.g. "FREQ=DAILY" or "FREQ=WEEKLY;BYDAY=MO,WE".
func AlarmRule(rs *domain.RecurrenceSchedule) (string, error) {
	if rs == nil {
		return "", apperrors.NewValidationError("nil recurrence schedule", nil)
	}

	switch rs.Frequency {
	case domain.FrequencyDaily:
		return "FREQ=DAILY", nil
	case domain.FrequencyWeekly:
		if len(rs.DaysOfWeek) == 0 {
			return "", apperrors.NewValidationError("WEEKLY alarm rule requires days_of_week", nil)
		}
		days := append([]int(nil), rs.DaysOfWeek...)
		sort.Ints(days)
		codes := make([]string, 0, len(days))
		for _, d := range days {
			if d < 0 || d > 6 {
				return "", apperrors.NewValidationError(fmt.Sprintf("day_of_week %d out of range", d), nil)
			}
			codes = append(codes, weekdayCodes[d])
		}
		return "FREQ=WEEKLY;BYDAY=" + strings.Join(codes, ","), nil
	case domain.FrequencyMonthly:
		return fmt.Sprintf("FREQ=MONTHLY;BYMONTHDAY=%d", rs.DayOfMonth), nil
	case domain.FrequencyYearly:
		return "FREQ=YEARLY", nil
	default:
		return "", apperrors.NewValidationError("unknown frequency "+string(rs.Frequency), nil)
	}
}

// ValidateAlarmRule parses a compact rule string and rejects malformed input
func ValidateAlarmRule(rule string) error {
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToROption(rule); err != nil {
		return apperrors.NewValidationError("invalid recurrence rule "+rule, err)
	}
	return nil
}

// NextRingTime returns the next ring instant strictly after ref for a
// recurring alarm rule anchored at the alarm's last ring time. A nil
// result means the rule yields no further occurrence.
func NextRingTime(rule string, anchor, ref time.Time) (*time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid recurrence rule "+rule, err)
	}
	opt.Dtstart = anchor

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid recurrence rule "+rule, err)
	}

	next := r.After(ref, false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}
