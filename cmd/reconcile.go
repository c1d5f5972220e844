package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/engine"
	"github.com/theirongolddev/esusu/internal/model"
	"github.com/theirongolddev/esusu/internal/tui"
)

var (
	flagReconWeek     int
	flagReconActual   string
	flagReconNotes    string
	flagReconOperator string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Count the week's cash against the ledgers and post it to the vault",
	Long: "Records the counted cash for a week, deposits it to the vault and runs the\n" +
		"weekly rollover. Without --actual an interactive form is shown.",
	RunE: withSession(runReconcile),
}

var reconcilePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the expected cash for a week without recording anything",
	RunE:  withSession(runReconcilePreview),
}

var reconcileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded reconciliations",
	RunE:  withSession(runReconcileList),
}

func init() {
	reconcileCmd.PersistentFlags().IntVar(&flagReconWeek, "week", 0, "Week number (default current week)")
	reconcileCmd.Flags().StringVar(&flagReconActual, "actual", "", "Counted cash")
	reconcileCmd.Flags().StringVar(&flagReconNotes, "notes", "", "Explanation of any variance")
	reconcileCmd.Flags().StringVar(&flagReconOperator, "operator", "", "Who counted (default config operator)")

	reconcileCmd.AddCommand(reconcilePreviewCmd, reconcileListCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func (s *session) targetWeek(flag int) (int, error) {
	if flag != 0 {
		return flag, nil
	}
	pos, _, err := s.engine.Position()
	if err != nil {
		return 0, err
	}
	return pos.Week, nil
}

func runReconcile(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	week, err := s.targetWeek(flagReconWeek)
	if err != nil {
		return err
	}

	in := engine.ReconcileInput{
		Week:     week,
		Notes:    flagReconNotes,
		Operator: s.operator(flagReconOperator),
	}

	if flagReconActual != "" {
		if in.Actual, err = cli.ParseMoney(flagReconActual); err != nil {
			return err
		}
	} else {
		if !interactive() {
			return errors.New("--actual is required when not running in a terminal")
		}
		breakdown, err := s.engine.PreviewReconciliation(ctx, week)
		if err != nil {
			return err
		}
		vals := tui.ReconcileValues{Notes: in.Notes, Operator: in.Operator}
		expected := breakdown.Total()
		noteNeeded := func(actual decimal.Decimal) bool {
			return s.engine.Reconciler.NoteRequired(expected, actual.Sub(expected))
		}
		if err := tui.ReconcileForm(breakdown, &vals, noteNeeded).RunWithContext(ctx); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				fmt.Println("  Reconciliation cancelled")
				return nil
			}
			return err
		}
		if in.Actual, err = cli.ParseMoney(vals.Actual); err != nil {
			return err
		}
		in.Notes, in.Operator = vals.Notes, vals.Operator
	}

	res, err := s.engine.SubmitReconciliation(ctx, in)
	if err != nil {
		return err
	}

	rec := res.Reconciliation
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("WEEK %d RECONCILED", rec.Week)))
	fmt.Println()
	printBreakdown(rec.Breakdown)
	fmt.Println(cli.RenderKV("Counted", cli.FormatMoney(rec.Actual)))
	fmt.Println(cli.RenderKV("Difference", cli.FormatSigned(rec.Difference)))
	if !rec.Expected.IsZero() {
		share := rec.Difference.Div(rec.Expected.Abs()).InexactFloat64()
		fmt.Println(cli.RenderKV("Variance", cli.FormatPercent(share)))
	}
	if res.NoteRequired {
		fmt.Println(cli.RenderWarning("variance above threshold; note recorded"))
	}
	fmt.Println(cli.RenderKV("Vault entry", res.DepositID))
	if sw := res.ClosingSweep; sw != nil && sw.Created > 0 {
		fmt.Println(cli.RenderKV("Closing-day shortfalls", fmt.Sprintf("%d (%s)", sw.Created, cli.FormatMoney(sw.Total))))
	}
	fmt.Println()
	if res.RolledOver && res.Rollover != nil {
		printRollover(*res.Rollover)
	} else {
		fmt.Println("  Week was already rolled over")
	}
	fmt.Println()
	return nil
}

func runReconcilePreview(s *session, cmd *cobra.Command, _ []string) error {
	week, err := s.targetWeek(flagReconWeek)
	if err != nil {
		return err
	}
	b, err := s.engine.PreviewReconciliation(cmd.Context(), week)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("WEEK %d EXPECTED CASH", week)))
	fmt.Println()
	printBreakdown(b)
	fmt.Println()
	return nil
}

func printBreakdown(b model.ExpectedBreakdown) {
	prev := cli.FormatMoney(b.PreviousActual)
	if b.PreviousMissing {
		prev += " (no previous count)"
	}
	fmt.Println(cli.RenderKV("Brought forward", prev))
	fmt.Println(cli.RenderKV("Collections", cli.FormatMoney(b.Collections)))
	fmt.Println(cli.RenderKV("Arrears cleared", cli.FormatMoney(b.ShortfallPaid)))
	fmt.Println(cli.RenderKV("Balance payments", cli.FormatMoney(b.BalancePaid)))
	fmt.Println(cli.RenderKV("Trust deposits", cli.FormatMoney(b.TrustDeposits)))
	fmt.Println(cli.RenderKV("Outflows", cli.FormatSigned(b.Outflows.Neg())))
	fmt.Println(cli.RenderKV("Expected", cli.FormatMoney(b.Total())))
}

func runReconcileList(s *session, cmd *cobra.Command, _ []string) error {
	recs, err := s.store.ListReconciliations(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			strconv.Itoa(r.Week),
			cli.FormatDate(r.WeekStart),
			cli.FormatMoney(r.Expected),
			cli.FormatMoney(r.Actual),
			cli.FormatSigned(r.Difference),
			r.PerformedBy,
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Reconciliations",
		Headers: []string{"Week", "Start", "Expected", "Counted", "Diff", "By"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}
