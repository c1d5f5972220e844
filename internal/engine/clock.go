package engine

import (
	"errors"
	"time"

	"github.com/theirongolddev/esusu/internal/cycle"
)

// moment is the current date as seen by the cycle.
type moment struct {
	at   time.Time
	date time.Time
	pos  cycle.Position
	// ended is set once the cycle is over; pos then holds the final day.
	ended bool
}

func currentTime(cal cycle.Calendar, clock cycle.Clock) (moment, error) {
	at := clock.Now()
	m := moment{at: at, date: cycle.Day(at)}
	pos, err := cal.Locate(m.date)
	switch {
	case err == nil:
		m.pos = pos
	case errors.Is(err, cycle.ErrAfterEnd):
		m.pos = cycle.Position{Week: cal.Weeks, Day: cycle.DaysPerWeek}
		m.ended = true
	default:
		return moment{}, err
	}
	return m, nil
}

// isFuture reports whether week has not started yet.
func (m moment) isFuture(week int) bool {
	return !m.ended && week > m.pos.Week
}
