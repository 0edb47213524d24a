package domain

import (
	"fmt"
	"regexp"
	"time"
)

type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// timeOfDayPattern accepts 24-hour HH:mm, e.g. "02:00", "23:59", "7:30".
var timeOfDayPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Schedule is the recurrence rule for a settings profile. At most one
// schedule exists per profile (settings_id is unique). NextRunAt is the only
// piece of state contended between scheduler ticks; it is nil while the
// schedule is disabled.
type Schedule struct {
	ID         int64             `db:"id"`
	SettingsID string            `db:"settings_id"`
	Enabled    bool              `db:"enabled"`
	Frequency  ScheduleFrequency `db:"frequency"`
	TimeOfDay  string            `db:"time_of_day"`
	NextRunAt  *time.Time        `db:"next_run_at"`
	CreatedAt  time.Time         `db:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at"`
}

func NewSchedule(settingsID string, enabled bool, frequency ScheduleFrequency, timeOfDay string) *Schedule {
	now := time.Now()
	return &Schedule{
		SettingsID: settingsID,
		Enabled:    enabled,
		Frequency:  frequency,
		TimeOfDay:  timeOfDay,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ValidTimeOfDay reports whether s is a well-formed 24-hour HH:mm value.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// NextRun computes the first trigger time strictly after now for this
// schedule's frequency and time of day. Weekly schedules fire on the weekday
// the schedule was created; monthly ones on its day of month, clamped to the
// last day for shorter months.
func (s *Schedule) NextRun(now time.Time) (time.Time, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s.TimeOfDay, "%d:%d", &hh, &mm); err != nil || !ValidTimeOfDay(s.TimeOfDay) {
		return time.Time{}, fmt.Errorf("invalid time_of_day %q", s.TimeOfDay)
	}

	switch s.Frequency {
	case FrequencyDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case FrequencyWeekly:
		target := s.CreatedAt.Weekday()
		next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		for next.Weekday() != target || !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case FrequencyMonthly:
		day := s.CreatedAt.Day()
		next := monthlyOccurrence(now.Year(), now.Month(), day, hh, mm, now.Location())
		if !next.After(now) {
			next = monthlyOccurrence(now.Year(), now.Month()+1, day, hh, mm, now.Location())
		}
		return next, nil
	}

	return time.Time{}, fmt.Errorf("unknown frequency %q", s.Frequency)
}

// monthlyOccurrence builds the trigger time in the given month, clamping the
// day of month to the month's last day (e.g. day 31 in February).
func monthlyOccurrence(year int, month time.Month, day, hh, mm int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hh, mm, 0, 0, loc)
}
