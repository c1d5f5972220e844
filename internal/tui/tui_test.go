package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/esusu/internal/config"
)

func TestProgressViewTracksMessages(t *testing.T) {
	var m tea.Model = NewProgressView("Backfill")

	m, cmd := m.Update(progressMsg{percent: 42, message: "week 2 day 3"})
	if cmd != nil {
		t.Fatal("progress update should not return a command")
	}
	v := m.(ProgressView)
	if v.percent != 42 || v.steps != 1 {
		t.Fatalf("percent=%v steps=%d, want 42/1", v.percent, v.steps)
	}
	if !strings.Contains(v.View(), "week 2 day 3") {
		t.Fatalf("view missing message:\n%s", v.View())
	}

	m, _ = m.Update(progressMsg{percent: 140})
	if got := m.(ProgressView).percent; got != 100 {
		t.Fatalf("percent not clamped: %v", got)
	}
}

func TestProgressViewQuitsWhenDone(t *testing.T) {
	var m tea.Model = NewProgressView("Backfill")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.(ProgressView).notice == "" {
		t.Fatal("ctrl+c should explain that the job keeps running")
	}

	m, cmd := m.Update(doneMsg{err: errors.New("disk full")})
	if cmd == nil {
		t.Fatal("done should quit the program")
	}
	v := m.(ProgressView)
	if !v.done || !strings.Contains(v.View(), "disk full") {
		t.Fatalf("view after failure:\n%s", v.View())
	}
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	v := NewSetupValues(cfg)
	v.StartDate = "2026-01-05"
	v.Weeks = "26"
	v.ClosingDay = 6
	v.Operator = " ada "
	v.VariancePercent = "2.5"
	v.Theme = "terminal"

	if err := v.Apply(&cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Cycle.StartDate != "2026-01-05" || cfg.Cycle.Weeks != 26 || cfg.Cycle.ClosingDay != 6 {
		t.Fatalf("cycle = %+v", cfg.Cycle)
	}
	if cfg.Operator != "ada" || cfg.Reconciliation.VarianceNotePercent != 2.5 || cfg.Appearance.Theme != "terminal" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSetupValuesApplyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		edit func(*SetupValues)
	}{
		{"date", func(v *SetupValues) { v.StartDate = "05/01/2026" }},
		{"weeks", func(v *SetupValues) { v.Weeks = "0" }},
		{"closing day", func(v *SetupValues) { v.ClosingDay = 8 }},
		{"percent", func(v *SetupValues) { v.VariancePercent = "-1" }},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		v := NewSetupValues(cfg)
		v.StartDate = "2026-01-05"
		tt.edit(&v)
		if err := v.Apply(&cfg); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestValidators(t *testing.T) {
	if validateMoney("12.50") != nil || validateMoney("-3") == nil {
		t.Fatal("validateMoney")
	}
	if required("operator")("  ") == nil || required("operator")("ada") != nil {
		t.Fatal("required")
	}
}
