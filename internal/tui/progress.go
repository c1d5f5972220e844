// Package tui holds the interactive terminal views: the progress display for
// long jobs and the operator forms.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/esusu/internal/engine"
	"github.com/theirongolddev/esusu/internal/tui/theme"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 72
)

type progressMsg struct {
	percent float64
	message string
}

type doneMsg struct {
	err error
}

// ProgressView draws a titled progress bar fed by an engine.ProgressFunc.
type ProgressView struct {
	title   string
	bar     progress.Model
	percent float64
	message string
	steps   int
	done    bool
	err     error
	notice  string
}

// NewProgressView returns a view with the active theme applied.
func NewProgressView(title string) ProgressView {
	bar := progress.New(
		progress.WithSolidFill(ColorForPercent(0)),
		progress.WithWidth(defaultBarWidth),
		progress.WithoutPercentage(),
		progress.WithColorProfile(termenv.EnvColorProfile()),
	)
	bar.EmptyColor = string(theme.Active.TextDim)
	return ProgressView{title: title, bar: bar}
}

// Init implements tea.Model.
func (m ProgressView) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m ProgressView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.percent = clampPercent(msg.percent)
		m.message = msg.message
		m.steps++
		m.bar.FullColor = ColorForPercent(m.percent)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-12, 10), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.notice = "the job cannot be interrupted; waiting for it to finish"
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m ProgressView) View() string {
	t := theme.Active
	titleStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	pctStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorForPercent(m.percent))).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(m.percent / 100))
	b.WriteString(" ")
	b.WriteString(pctStyle.Render(fmt.Sprintf("%3.0f%%", m.percent)))
	b.WriteString("\n  ")
	b.WriteString(mutedStyle.Render(m.message))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString("\n  ")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Red).Render("failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString("\n  ")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Green).Render("done"))
		b.WriteString("\n")
	case m.notice != "":
		b.WriteString("\n  ")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Orange).Render(m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

// ColorForPercent picks the bar color for a 0-100 completion figure.
func ColorForPercent(pct float64) string {
	t := theme.Active
	switch {
	case pct >= 100:
		return string(t.Green)
	case pct >= 50:
		return string(t.Accent)
	default:
		return string(t.Cyan)
	}
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}

// RunWithProgress runs job on its own goroutine while drawing its progress.
// It returns once the job has finished, with the job's error.
func RunWithProgress(title string, job func(engine.ProgressFunc) error, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewProgressView(title), opts...)

	errc := make(chan error, 1)
	go func() {
		err := job(func(percent float64, message string) {
			p.Send(progressMsg{percent: percent, message: message})
		})
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	_, viewErr := p.Run()
	jobErr := <-errc
	if jobErr != nil {
		return jobErr
	}
	if viewErr != nil {
		return fmt.Errorf("progress view: %w", viewErr)
	}
	return nil
}
