// Package schedule runs time-of-day triggers at most once per date. Time is
// always passed in, so callers own the clock.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
)

// TimeOfDay is a wall-clock minute within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Action is the work behind a trigger. The summary is logged and published.
type Action func(ctx context.Context, now time.Time) (summary string, err error)

// Trigger fires once per matching date inside [At, At+Window). Windows are
// clipped at midnight.
type Trigger struct {
	Name   string
	At     TimeOfDay
	Window time.Duration
	// When limits the trigger to some dates; nil means every date.
	When func(date time.Time) bool
	Run  Action
}

// Due reports whether now falls inside the trigger's window.
func (t Trigger) Due(now time.Time) bool {
	if t.When != nil && !t.When(cycle.Day(now)) {
		return false
	}
	h, m, _ := now.Clock()
	cur := h*60 + m
	start := t.At.minutes()
	end := min(start+int(t.Window/time.Minute), 24*60)
	if end == start {
		end = start + 1
	}
	return cur >= start && cur < end
}

// Markers persists the last date each trigger ran.
type Markers interface {
	TriggerLastRun(ctx context.Context, name string) (time.Time, bool, error)
	MarkTriggerRun(ctx context.Context, name string, date time.Time) error
}

// Run is the outcome of one trigger execution.
type Run struct {
	Trigger string
	Date    time.Time
	At      time.Time
	Summary string
	Err     error
}

// Scheduler evaluates triggers against a supplied time.
type Scheduler struct {
	markers  Markers
	triggers []Trigger
	log      logrus.FieldLogger
}

// New returns a scheduler over triggers.
func New(markers Markers, log logrus.FieldLogger, triggers ...Trigger) *Scheduler {
	return &Scheduler{markers: markers, triggers: triggers, log: log}
}

// Triggers returns the configured triggers.
func (s *Scheduler) Triggers() []Trigger { return s.triggers }

// Tick runs every trigger that is due at now and has not run on now's date.
// A trigger that fails is not marked, so it is retried on the next tick
// inside its window. Missed windows are not replayed.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Run {
	var runs []Run
	date := cycle.Day(now)
	for _, t := range s.triggers {
		if !t.Due(now) {
			continue
		}
		log := s.log.WithFields(logrus.Fields{"trigger": t.Name, "date": date.Format(cycle.DateLayout)})

		last, ok, err := s.markers.TriggerLastRun(ctx, t.Name)
		if err != nil {
			log.WithError(err).Error("scheduler: read marker")
			runs = append(runs, Run{Trigger: t.Name, Date: date, At: now, Err: err})
			continue
		}
		if ok && !last.Before(date) {
			continue
		}

		summary, err := t.Run(ctx, now)
		run := Run{Trigger: t.Name, Date: date, At: now, Summary: summary, Err: err}
		runs = append(runs, run)
		if err != nil {
			log.WithError(err).Error("scheduler: trigger failed")
			continue
		}
		if err := s.markers.MarkTriggerRun(ctx, t.Name, date); err != nil {
			log.WithError(err).Error("scheduler: write marker")
			continue
		}
		log.WithField("summary", summary).Info("scheduler: trigger ran")
	}
	return runs
}
