package schedule

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/engine"
)

type memMarkers map[string]time.Time

func (m memMarkers) TriggerLastRun(_ context.Context, name string) (time.Time, bool, error) {
	t, ok := m[name]
	return t, ok, nil
}

func (m memMarkers) MarkTriggerRun(_ context.Context, name string, date time.Time) error {
	m[name] = date
	return nil
}

type fakeCommands struct {
	cal     cycle.Calendar
	swept   []time.Time
	rolled  []int
	failing bool
}

func (f *fakeCommands) RunDailySweep(_ context.Context, date time.Time) (engine.SweepResult, error) {
	if f.failing {
		return engine.SweepResult{}, errors.New("store offline")
	}
	f.swept = append(f.swept, cycle.Day(date))
	return engine.SweepResult{}, nil
}

func (f *fakeCommands) RunWeeklyRollover(_ context.Context, week int) (engine.RolloverResult, error) {
	f.rolled = append(f.rolled, week)
	return engine.RolloverResult{Week: week}, nil
}

func (f *fakeCommands) Calendar() cycle.Calendar { return f.cal }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFake(t *testing.T) *fakeCommands {
	t.Helper()
	cal, err := cycle.New(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 4, 7)
	if err != nil {
		t.Fatalf("cycle.New: %v", err)
	}
	return &fakeCommands{cal: cal}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("23:50")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if tod.Hour != 23 || tod.Minute != 50 || tod.String() != "23:50" {
		t.Fatalf("got %+v", tod)
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
}

func TestDailySweepRunsOncePerDate(t *testing.T) {
	cmds := newFake(t)
	clock := cycle.NewManualClock(time.Date(2026, 1, 6, 23, 40, 0, 0, time.UTC))
	s := New(memMarkers{}, quietLogger(), DailySweep(cmds, TimeOfDay{23, 50}, 10*time.Minute))
	ctx := context.Background()

	if runs := s.Tick(ctx, clock.Now()); len(runs) != 0 {
		t.Fatalf("ran before window: %+v", runs)
	}
	clock.Advance(12 * time.Minute) // 23:52
	if runs := s.Tick(ctx, clock.Now()); len(runs) != 1 || runs[0].Err != nil {
		t.Fatalf("runs in window = %+v", runs)
	}
	clock.Advance(3 * time.Minute) // 23:55
	if runs := s.Tick(ctx, clock.Now()); len(runs) != 0 {
		t.Fatalf("ran twice on one date: %+v", runs)
	}
	clock.Advance(24 * time.Hour)
	s.Tick(ctx, clock.Now())

	if len(cmds.swept) != 2 {
		t.Fatalf("sweeps = %d, want 2", len(cmds.swept))
	}
	if !cmds.swept[1].Equal(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("second sweep date = %s", cmds.swept[1])
	}
}

func TestFailedTriggerRetriesInWindow(t *testing.T) {
	cmds := newFake(t)
	cmds.failing = true
	markers := memMarkers{}
	s := New(markers, quietLogger(), DailySweep(cmds, TimeOfDay{23, 50}, 10*time.Minute))
	ctx := context.Background()
	now := time.Date(2026, 1, 6, 23, 51, 0, 0, time.UTC)

	runs := s.Tick(ctx, now)
	if len(runs) != 1 || runs[0].Err == nil {
		t.Fatalf("runs = %+v, want one failure", runs)
	}
	if _, ok := markers[DailySweepTrigger]; ok {
		t.Fatal("failed run was marked")
	}

	cmds.failing = false
	s.Tick(ctx, now.Add(time.Minute))
	if len(cmds.swept) != 1 {
		t.Fatalf("sweeps after retry = %d, want 1", len(cmds.swept))
	}
}

func TestWeeklyCloseoutOnlyOnClosingDay(t *testing.T) {
	cmds := newFake(t)
	s := New(memMarkers{}, quietLogger(), WeeklyCloseout(cmds, TimeOfDay{23, 55}, 10*time.Minute))
	ctx := context.Background()

	// 2026-01-10 is day 6 of week 1; 2026-01-11 is day 7.
	s.Tick(ctx, time.Date(2026, 1, 10, 23, 56, 0, 0, time.UTC))
	if len(cmds.rolled) != 0 {
		t.Fatalf("rolled on day 6: %v", cmds.rolled)
	}
	s.Tick(ctx, time.Date(2026, 1, 11, 23, 56, 0, 0, time.UTC))
	if len(cmds.rolled) != 1 || cmds.rolled[0] != 1 {
		t.Fatalf("rolled = %v, want [1]", cmds.rolled)
	}
}

func TestSweepSkipsDatesOutsideCycle(t *testing.T) {
	cmds := newFake(t)
	s := New(memMarkers{}, quietLogger(), DailySweep(cmds, TimeOfDay{23, 50}, 10*time.Minute))

	s.Tick(context.Background(), time.Date(2026, 1, 4, 23, 55, 0, 0, time.UTC))
	s.Tick(context.Background(), time.Date(2026, 3, 1, 23, 55, 0, 0, time.UTC))
	if len(cmds.swept) != 0 {
		t.Fatalf("swept outside cycle: %v", cmds.swept)
	}
}
