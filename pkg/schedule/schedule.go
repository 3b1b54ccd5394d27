package schedule

import (
	"fmt"
	"time"
)

// Schedule determines when a job should run next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

// dailySchedule runs once per day at hour:minute in loc.
type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

func (s dailySchedule) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(
		local.Year(), local.Month(), local.Day(),
		s.hour, s.minute, 0, 0, s.loc,
	)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", s.hour, s.minute, s.loc)
}

// Every runs at a fixed interval. It panics on a non-positive interval.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("schedule: interval must be > 0")
	}
	return intervalSchedule{every: d}
}

// HourlyAt runs every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute % 60}
}

// DailyAt runs once a day at hour:minute in loc (UTC when nil).
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return dailySchedule{hour: hour % 24, minute: minute % 60, loc: loc}
}

// Parse reads "daily@HH:MM" or a Go duration such as "1m" or "1h".
func Parse(s string) (Schedule, error) {
	var h, m int
	if n, err := fmt.Sscanf(s, "daily@%d:%d", &h, &m); err == nil && n == 2 {
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
		}
		return DailyAt(h, m, time.UTC), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	return Every(d), nil
}
