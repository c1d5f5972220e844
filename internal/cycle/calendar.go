// Package cycle maps calendar dates onto collection-cycle week and day numbers.
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// DaysPerWeek is the number of collection days in a cycle week.
const DaysPerWeek = 7

// DateLayout is the on-disk and command-line date format.
const DateLayout = "2006-01-02"

var (
	ErrBeforeStart = errors.New("date is before the cycle start")
	ErrAfterEnd    = errors.New("date is after the cycle end")
)

// Position is a week/day pair inside the cycle. Both are 1-based.
type Position struct {
	Week int
	Day  int
}

// Calendar is a fixed multi-week collection cycle.
type Calendar struct {
	Start      time.Time
	Weeks      int
	ClosingDay int
}

// New validates and returns a calendar starting on start.
func New(start time.Time, weeks, closingDay int) (Calendar, error) {
	if start.IsZero() {
		return Calendar{}, errors.New("cycle start date is required")
	}
	if weeks < 1 {
		return Calendar{}, fmt.Errorf("cycle weeks must be positive, got %d", weeks)
	}
	if closingDay < 1 || closingDay > DaysPerWeek {
		return Calendar{}, fmt.Errorf("closing day must be 1-%d, got %d", DaysPerWeek, closingDay)
	}
	return Calendar{Start: Day(start), Weeks: weeks, ClosingDay: closingDay}, nil
}

// Day truncates t to a UTC calendar date, keeping its wall-clock year/month/day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// Locate maps date to its week/day position.
func (c Calendar) Locate(date time.Time) (Position, error) {
	d := Day(date)
	if d.Before(c.Start) {
		return Position{}, fmt.Errorf("%w: %s", ErrBeforeStart, d.Format(DateLayout))
	}
	offset := int(d.Sub(c.Start).Hours() / 24)
	pos := Position{
		Week: offset/DaysPerWeek + 1,
		Day:  offset%DaysPerWeek + 1,
	}
	if pos.Week > c.Weeks {
		return Position{}, fmt.Errorf("%w: %s", ErrAfterEnd, d.Format(DateLayout))
	}
	return pos, nil
}

// Date returns the calendar date of week/day.
func (c Calendar) Date(week, day int) time.Time {
	return c.Start.AddDate(0, 0, (week-1)*DaysPerWeek+(day-1))
}

// WeekStart returns the first date of week.
func (c Calendar) WeekStart(week int) time.Time {
	return c.Date(week, 1)
}

// WeekEnd returns the last date of week.
func (c Calendar) WeekEnd(week int) time.Time {
	return c.Date(week, DaysPerWeek)
}

// CheckWeek validates a week number against the cycle length.
func (c Calendar) CheckWeek(week int) error {
	if week < 1 || week > c.Weeks {
		return fmt.Errorf("week %d is outside 1-%d", week, c.Weeks)
	}
	return nil
}

// CheckDay validates a day number.
func CheckDay(day int) error {
	if day < 1 || day > DaysPerWeek {
		return fmt.Errorf("day %d is outside 1-%d", day, DaysPerWeek)
	}
	return nil
}

// IsClosingDay reports whether date falls on the designated closing day.
func (c Calendar) IsClosingDay(date time.Time) bool {
	pos, err := c.Locate(date)
	if err != nil {
		return false
	}
	return pos.Day == c.ClosingDay
}
