package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/config"
	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
	"github.com/theirongolddev/esusu/internal/tui/theme"
)

// ErrAborted is returned when the operator leaves a form without submitting.
var ErrAborted = huh.ErrUserAborted

// ReconcileValues collects the operator's weekly cash count.
type ReconcileValues struct {
	Actual   string
	Notes    string
	Operator string
}

// ReconcileForm asks for the counted cash of the week described by b.
// noteNeeded reports whether a counted amount requires an explanation.
func ReconcileForm(b model.ExpectedBreakdown, v *ReconcileValues, noteNeeded func(actual decimal.Decimal) bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(fmt.Sprintf("Week %d reconciliation", b.Week)).
				Description(describeBreakdown(b)),
			huh.NewInput().
				Title("Counted cash").
				Placeholder(cli.FormatMoney(b.Total())).
				Value(&v.Actual).
				Validate(validateMoney),
			huh.NewText().
				Title("Notes").
				Description("Required when the count is off by more than the variance threshold.").
				CharLimit(2000).
				Lines(3).
				Value(&v.Notes).
				Validate(func(s string) error {
					actual, err := cli.ParseMoney(v.Actual)
					if err != nil {
						return nil
					}
					if noteNeeded(actual) && strings.TrimSpace(s) == "" {
						return errors.New("explain the variance")
					}
					return nil
				}),
			huh.NewInput().
				Title("Counted by").
				Value(&v.Operator).
				Validate(required("operator")),
		),
	).WithTheme(theme.Active.Form())
}

func describeBreakdown(b model.ExpectedBreakdown) string {
	prev := cli.FormatMoney(b.PreviousActual)
	if b.PreviousMissing {
		prev += " (no previous count)"
	}
	lines := []string{
		"Brought forward   " + prev,
		"Collections       " + cli.FormatMoney(b.Collections),
		"Arrears cleared   " + cli.FormatMoney(b.ShortfallPaid),
		"Balance payments  " + cli.FormatMoney(b.BalancePaid),
		"Trust deposits    " + cli.FormatMoney(b.TrustDeposits),
		"Outflows         -" + cli.FormatMoney(b.Outflows),
		"Expected          " + cli.FormatMoney(b.Total()),
	}
	return strings.Join(lines, "\n")
}

// ConfirmPaymentForm asks before recording a payment larger than what the
// plan currently owes.
func ConfirmPaymentForm(member string, amount, payable decimal.Decimal, ok *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s owes %s", member, cli.FormatMoney(payable))).
				Description(fmt.Sprintf("%s exceeds it; the excess will not be applied.", cli.FormatMoney(amount))).
				Affirmative("Record anyway").
				Negative("Cancel").
				Value(ok),
		),
	).WithTheme(theme.Active.Form())
}

// SetupValues holds the setup answers as typed by the operator.
type SetupValues struct {
	StartDate       string
	Weeks           string
	ClosingDay      int
	Operator        string
	VariancePercent string
	Theme           string
}

// NewSetupValues seeds the answers from cfg.
func NewSetupValues(cfg config.Config) SetupValues {
	return SetupValues{
		StartDate:       cfg.Cycle.StartDate,
		Weeks:           strconv.Itoa(cfg.Cycle.Weeks),
		ClosingDay:      cfg.Cycle.ClosingDay,
		Operator:        cfg.Operator,
		VariancePercent: strconv.FormatFloat(cfg.Reconciliation.VarianceNotePercent, 'f', -1, 64),
		Theme:           cfg.Appearance.Theme,
	}
}

// Apply copies validated answers into cfg.
func (v SetupValues) Apply(cfg *config.Config) error {
	if err := validateDate(v.StartDate); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	weeks, err := strconv.Atoi(strings.TrimSpace(v.Weeks))
	if err != nil || weeks < 1 {
		return fmt.Errorf("weeks: must be a positive whole number")
	}
	if err := cycle.CheckDay(v.ClosingDay); err != nil {
		return fmt.Errorf("closing day: %w", err)
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(v.VariancePercent), 64)
	if err != nil || pct < 0 {
		return fmt.Errorf("variance percent: must be a non-negative number")
	}

	cfg.Cycle.StartDate = strings.TrimSpace(v.StartDate)
	cfg.Cycle.Weeks = weeks
	cfg.Cycle.ClosingDay = v.ClosingDay
	cfg.Operator = strings.TrimSpace(v.Operator)
	cfg.Reconciliation.VarianceNotePercent = pct
	cfg.Appearance.Theme = theme.ByName(v.Theme).Name
	return nil
}

// SetupForm is the first-run wizard.
func SetupForm(v *SetupValues) *huh.Form {
	days := make([]huh.Option[int], 0, cycle.DaysPerWeek)
	for d := 1; d <= cycle.DaysPerWeek; d++ {
		days = append(days, huh.NewOption(fmt.Sprintf("Day %d", d), d))
	}
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cycle start date").
				Description("First day of week 1 (YYYY-MM-DD).").
				Value(&v.StartDate).
				Validate(validateDate),
			huh.NewInput().
				Title("Weeks in the cycle").
				Value(&v.Weeks).
				Validate(validatePositiveInt),
			huh.NewSelect[int]().
				Title("Closing day").
				Options(days...).
				Value(&v.ClosingDay),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Operator name").
				Value(&v.Operator),
			huh.NewInput().
				Title("Variance note threshold (%)").
				Value(&v.VariancePercent).
				Validate(validatePercent),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.Theme),
		),
	).WithTheme(theme.Active.Form())
}

func validateMoney(s string) error {
	_, err := cli.ParseMoney(s)
	return err
}

func validateDate(s string) error {
	_, err := cycle.ParseDate(strings.TrimSpace(s))
	return err
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errors.New("enter a positive whole number")
	}
	return nil
}

func validatePercent(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return errors.New("enter a non-negative number")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
