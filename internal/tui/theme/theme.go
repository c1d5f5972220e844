// Package theme defines the color themes used by esusu's interactive views.
package theme

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Theme names the color roles shared by the progress view and the forms.
type Theme struct {
	Name        string
	Border      lipgloss.Color
	TextDim     lipgloss.Color // hints, empty bar
	TextMuted   lipgloss.Color // labels
	TextPrimary lipgloss.Color
	Accent      lipgloss.Color
	AccentDim   lipgloss.Color
	Green       lipgloss.Color // cleared amounts, finished jobs
	Orange      lipgloss.Color // warnings
	Red         lipgloss.Color // arrears, errors
	Yellow      lipgloss.Color
	Cyan        lipgloss.Color
}

// Active is the currently selected theme.
var Active = FlexokiDark

// FlexokiDark is the default theme.
var FlexokiDark = Theme{
	Name:        "flexoki-dark",
	Border:      lipgloss.Color("#403E3C"),
	TextDim:     lipgloss.Color("#575653"),
	TextMuted:   lipgloss.Color("#878580"),
	TextPrimary: lipgloss.Color("#FFFCF0"),
	Accent:      lipgloss.Color("#3AA99F"),
	AccentDim:   lipgloss.Color("#1A3533"),
	Green:       lipgloss.Color("#879A39"),
	Orange:      lipgloss.Color("#DA702C"),
	Red:         lipgloss.Color("#D14D41"),
	Yellow:      lipgloss.Color("#D0A215"),
	Cyan:        lipgloss.Color("#24837B"),
}

// CatppuccinMocha is a soft pastel theme.
var CatppuccinMocha = Theme{
	Name:        "catppuccin-mocha",
	Border:      lipgloss.Color("#585B70"),
	TextDim:     lipgloss.Color("#6C7086"),
	TextMuted:   lipgloss.Color("#A6ADC8"),
	TextPrimary: lipgloss.Color("#CDD6F4"),
	Accent:      lipgloss.Color("#89B4FA"),
	AccentDim:   lipgloss.Color("#293147"),
	Green:       lipgloss.Color("#A6E3A1"),
	Orange:      lipgloss.Color("#FAB387"),
	Red:         lipgloss.Color("#F38BA8"),
	Yellow:      lipgloss.Color("#F9E2AF"),
	Cyan:        lipgloss.Color("#94E2D5"),
}

// Terminal uses ANSI 16 colors only.
var Terminal = Theme{
	Name:        "terminal",
	Border:      lipgloss.Color("8"),
	TextDim:     lipgloss.Color("8"),
	TextMuted:   lipgloss.Color("7"),
	TextPrimary: lipgloss.Color("15"),
	Accent:      lipgloss.Color("6"),
	AccentDim:   lipgloss.Color("0"),
	Green:       lipgloss.Color("2"),
	Orange:      lipgloss.Color("3"),
	Red:         lipgloss.Color("1"),
	Yellow:      lipgloss.Color("3"),
	Cyan:        lipgloss.Color("6"),
}

// All available themes.
var All = []Theme{FlexokiDark, CatppuccinMocha, Terminal}

// ByName returns a theme by its name, defaulting to FlexokiDark.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return FlexokiDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}

// Form maps t onto huh's field styles.
func (t Theme) Form() *huh.Theme {
	f := huh.ThemeBase()

	f.Focused.Base = f.Focused.Base.BorderForeground(t.Border)
	f.Focused.Card = f.Focused.Base
	f.Focused.Title = f.Focused.Title.Foreground(t.Accent).Bold(true)
	f.Focused.NoteTitle = f.Focused.NoteTitle.Foreground(t.Accent).Bold(true).MarginBottom(1)
	f.Focused.Description = f.Focused.Description.Foreground(t.TextMuted)
	f.Focused.ErrorIndicator = f.Focused.ErrorIndicator.Foreground(t.Red)
	f.Focused.ErrorMessage = f.Focused.ErrorMessage.Foreground(t.Red)
	f.Focused.SelectSelector = f.Focused.SelectSelector.Foreground(t.Accent)
	f.Focused.Option = f.Focused.Option.Foreground(t.TextPrimary)
	f.Focused.SelectedOption = f.Focused.SelectedOption.Foreground(t.Green)
	f.Focused.FocusedButton = f.Focused.FocusedButton.Foreground(t.TextPrimary).Background(t.AccentDim)
	f.Focused.Next = f.Focused.FocusedButton
	f.Focused.BlurredButton = f.Focused.BlurredButton.Foreground(t.TextMuted)
	f.Focused.TextInput.Cursor = f.Focused.TextInput.Cursor.Foreground(t.Green)
	f.Focused.TextInput.Placeholder = f.Focused.TextInput.Placeholder.Foreground(t.TextDim)
	f.Focused.TextInput.Prompt = f.Focused.TextInput.Prompt.Foreground(t.Accent)

	f.Blurred = f.Focused
	f.Blurred.Base = f.Focused.Base.BorderStyle(lipgloss.HiddenBorder())
	f.Blurred.Card = f.Blurred.Base
	f.Blurred.NextIndicator = lipgloss.NewStyle()
	f.Blurred.PrevIndicator = lipgloss.NewStyle()

	f.Group.Title = f.Focused.Title
	f.Group.Description = f.Focused.Description
	return f
}
