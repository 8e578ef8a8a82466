package recurrence

import (
	"testing"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
)

func mustDaily(t *testing.T, hour, minute int) *domain.RecurrenceSchedule {
	t.Helper()
	s, err := domain.NewDailySchedule(domain.TimeOfDay{Hour: hour, Minute: minute}, "UTC")
	if err != nil {
		t.Fatalf("NewDailySchedule() error = %v", err)
	}
	return s
}

func mustWeekly(t *testing.T, hour, minute int, days []int) *domain.RecurrenceSchedule {
	t.Helper()
	s, err := domain.NewWeeklySchedule(domain.TimeOfDay{Hour: hour, Minute: minute}, days, "UTC")
	if err != nil {
		t.Fatalf("NewWeeklySchedule() error = %v", err)
	}
	return s
}

func mustMonthly(t *testing.T, hour, minute, day int) *domain.RecurrenceSchedule {
	t.Helper()
	s, err := domain.NewMonthlySchedule(domain.TimeOfDay{Hour: hour, Minute: minute}, day, "UTC")
	if err != nil {
		t.Fatalf("NewMonthlySchedule() error = %v", err)
	}
	return s
}

func TestNextRecurrence_Daily(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{
			name: "before today's time fires today",
			ref:  time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "exactly at the time advances a day",
			ref:  time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "after today's time advances a day",
			ref:  time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "month boundary",
			ref:  time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	schedule := mustDaily(t, 9, 30)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRecurrence(schedule, tt.ref)
			if got == nil {
				t.Fatal("NextRecurrence() = nil, want instant")
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRecurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Every daily occurrence is strictly after the reference and at most one
// day later, across a sweep of reference instants.
func TestNextRecurrence_DailyStrictlyAfterWithinOneDay(t *testing.T) {
	schedule := mustDaily(t, 3, 0)
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		got := NextRecurrence(schedule, ref)
		if got == nil {
			t.Fatalf("NextRecurrence(%v) = nil", ref)
		}
		if !got.After(ref) {
			t.Fatalf("NextRecurrence(%v) = %v, not strictly after", ref, got)
		}
		if got.Sub(ref) > 24*time.Hour {
			t.Fatalf("NextRecurrence(%v) = %v, more than one day ahead", ref, got)
		}
		ref = ref.Add(7*time.Hour + 13*time.Minute)
	}
}

func TestNextRecurrence_Weekly(t *testing.T) {
	// 2026-03-09 is a Monday.
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		days []int
		ref  time.Time
		want time.Time
	}{
		{
			name: "same day before the time",
			days: []int{1},
			ref:  monday.Add(6 * time.Hour),
			want: monday.Add(8 * time.Hour),
		},
		{
			name: "same day after the time wraps a week",
			days: []int{1},
			ref:  monday.Add(10 * time.Hour),
			want: monday.AddDate(0, 0, 7).Add(8 * time.Hour),
		},
		{
			name: "soonest of several days wins",
			days: []int{1, 3, 5},
			ref:  monday.Add(10 * time.Hour),
			want: monday.AddDate(0, 0, 2).Add(8 * time.Hour), // Wednesday
		},
		{
			name: "sunday as day zero",
			days: []int{0},
			ref:  monday.Add(10 * time.Hour),
			want: monday.AddDate(0, 0, 6).Add(8 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := mustWeekly(t, 8, 0, tt.days)
			got := NextRecurrence(schedule, tt.ref)
			if got == nil {
				t.Fatal("NextRecurrence() = nil, want instant")
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRecurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Mon/Wed/Fri schedules always land on one of those weekdays at the
// configured time, for any reference instant.
func TestNextRecurrence_WeeklyAlwaysLandsOnConfiguredDay(t *testing.T) {
	schedule := mustWeekly(t, 18, 15, []int{1, 3, 5})
	allowed := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true, time.Friday: true}

	ref := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		got := NextRecurrence(schedule, ref)
		if got == nil {
			t.Fatalf("NextRecurrence(%v) = nil", ref)
		}
		if !allowed[got.Weekday()] {
			t.Fatalf("NextRecurrence(%v) = %v, landed on %v", ref, got, got.Weekday())
		}
		if got.Hour() != 18 || got.Minute() != 15 {
			t.Fatalf("NextRecurrence(%v) = %v, wrong time of day", ref, got)
		}
		if !got.After(ref) {
			t.Fatalf("NextRecurrence(%v) = %v, not strictly after", ref, got)
		}
		ref = ref.Add(31 * time.Hour)
	}
}

func TestNextRecurrence_Monthly(t *testing.T) {
	tests := []struct {
		name string
		day  int
		ref  time.Time
		want time.Time
	}{
		{
			name: "later this month",
			day:  15,
			ref:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "already passed advances a month",
			day:  15,
			ref:  time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 4, 15, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps to february's last day",
			day:  31,
			ref:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 28, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps to leap february",
			day:  31,
			ref:  time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2028, 2, 29, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "reclamps against the next month",
			day:  31,
			ref:  time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 28, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "year boundary",
			day:  5,
			ref:  time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
			want: time.Date(2027, 1, 5, 7, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := mustMonthly(t, 7, 0, tt.day)
			got := NextRecurrence(schedule, tt.ref)
			if got == nil {
				t.Fatal("NextRecurrence() = nil, want instant")
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRecurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRecurrence_UnsupportedShapes(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule *domain.RecurrenceSchedule
	}{
		{
			name: "yearly has no derived rule",
			schedule: &domain.RecurrenceSchedule{
				Frequency: domain.FrequencyYearly,
				TimeOfDay: domain.TimeOfDay{Hour: 9},
			},
		},
		{
			name:     "nil schedule",
			schedule: nil,
		},
		{
			name: "unknown frequency",
			schedule: &domain.RecurrenceSchedule{
				Frequency: "HOURLY",
				TimeOfDay: domain.TimeOfDay{Hour: 9},
			},
		},
		{
			name: "weekly with no days",
			schedule: &domain.RecurrenceSchedule{
				Frequency: domain.FrequencyWeekly,
				TimeOfDay: domain.TimeOfDay{Hour: 9},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextRecurrence(tt.schedule, ref); got != nil {
				t.Errorf("NextRecurrence() = %v, want nil", got)
			}
		})
	}
}

func TestNextOccurrence_OneOffNeverReschedules(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{At: &at}

	if got := NextOccurrence(s, at.Add(-time.Hour)); got != nil {
		t.Errorf("NextOccurrence(one-off) = %v, want nil", got)
	}
	if got := NextOccurrence(nil, at); got != nil {
		t.Errorf("NextOccurrence(nil) = %v, want nil", got)
	}
}

func TestNextOccurrence_RecurringDelegates(t *testing.T) {
	s := &domain.Schedule{Recurrence: mustDaily(t, 9, 30)}
	ref := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	got := NextOccurrence(s, ref)
	if got == nil {
		t.Fatal("NextOccurrence() = nil, want instant")
	}
	want := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", got, want)
	}
}
