package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/engine"
	"github.com/theirongolddev/esusu/internal/tui"
)

var (
	flagSweepDate     string
	flagRolloverWeek  int
	flagRolloverApply bool
	flagPayPlan       int64
	flagPayAmount     string
	flagPayMode       string
	flagPayYes        bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Record shortfalls for every plan that under-paid on a date",
	RunE:  withSession(runSweep),
}

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Roll a week's unpaid shortfalls into accumulated balances",
	RunE:  withSession(runRollover),
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Allocate a member payment to arrears",
	RunE:  withSession(runPay),
}

func init() {
	sweepCmd.Flags().StringVar(&flagSweepDate, "date", "", "Date YYYY-MM-DD (default today)")

	rolloverCmd.Flags().IntVar(&flagRolloverWeek, "week", 0, "Week to roll (default current week)")
	rolloverCmd.Flags().BoolVar(&flagRolloverApply, "apply-only", false, "Only apply logged balance payments")

	payCmd.Flags().Int64Var(&flagPayPlan, "plan", 0, "Plan id")
	payCmd.Flags().StringVar(&flagPayAmount, "amount", "", "Amount paid")
	payCmd.Flags().StringVar(&flagPayMode, "mode", string(engine.ModeCurrentWeek), "current or balance")
	payCmd.Flags().BoolVarP(&flagPayYes, "yes", "y", false, "Record payments larger than what is owed without asking")
	_ = payCmd.MarkFlagRequired("plan")
	_ = payCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(sweepCmd, rolloverCmd, payCmd)
}

func runSweep(s *session, cmd *cobra.Command, _ []string) error {
	date, err := parseDateFlag(flagSweepDate)
	if err != nil {
		return err
	}
	res, err := s.engine.RunDailySweep(cmd.Context(), date)
	if err != nil {
		return err
	}

	fmt.Printf("  Swept %s (%s)\n", cli.FormatDate(res.Date), cli.FormatSlot(res.Week, res.Day))
	fmt.Println(cli.RenderKV("Plans examined", strconv.Itoa(res.Examined)))
	fmt.Println(cli.RenderKV("Shortfalls created", strconv.Itoa(res.Created)))
	fmt.Println(cli.RenderKV("Not due", strconv.Itoa(res.Skipped)))
	fmt.Println(cli.RenderKV("Amount short", cli.RenderMoney(res.Total)))
	if res.LateFolded > 0 {
		fmt.Println(cli.RenderKV("Added to rolled week", strconv.Itoa(res.LateFolded)))
	}
	if res.Failed > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d plans failed; see the log", res.Failed)))
	}
	return nil
}

func runRollover(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	week := flagRolloverWeek
	if week == 0 {
		pos, _, err := s.engine.Position()
		if err != nil {
			return err
		}
		week = pos.Week
	}

	if flagRolloverApply {
		if err := s.engine.Calendar().CheckWeek(week); err != nil {
			return err
		}
		res, err := s.engine.Rollover.ApplyWeekPayments(ctx, week)
		if err != nil {
			return err
		}
		fmt.Printf("  Applied %d payments (%s) to %d balances through week %d\n",
			res.Payments, cli.FormatMoney(res.Amount), res.Balances, week)
		if res.Failed > 0 {
			fmt.Println(cli.RenderWarning(fmt.Sprintf("%d plans failed; see the log", res.Failed)))
		}
		return nil
	}

	res, err := s.engine.RunWeeklyRollover(ctx, week)
	if err != nil {
		return err
	}
	printRollover(res)
	return nil
}

func printRollover(res engine.RolloverResult) {
	fmt.Printf("  Rolled over week %d\n", res.Week)
	if res.AlreadyRolled {
		fmt.Println(cli.RenderWarning("week was already rolled; only lagging balances were touched"))
	}
	fmt.Println(cli.RenderKV("Payments applied", fmt.Sprintf("%d (%s)", res.Applied.Payments, cli.FormatMoney(res.Applied.Amount))))
	fmt.Println(cli.RenderKV("Weekly records created", strconv.Itoa(res.Carried.RecordsCreated)))
	fmt.Println(cli.RenderKV("Balances created", strconv.Itoa(res.Carried.BalancesCreated)))
	fmt.Println(cli.RenderKV("Balances carried", strconv.Itoa(res.Carried.BalancesCarried)))
	fmt.Println(cli.RenderKV("Arrears added", cli.RenderMoney(res.Carried.Added)))
	if res.Carried.LateFolded > 0 {
		fmt.Println(cli.RenderKV("Late shortfalls folded", strconv.Itoa(res.Carried.LateFolded)))
	}
	if failed := res.Applied.Failed + res.Carried.Failed; failed > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d plans failed; see the log", failed)))
	}
}

func runPay(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	amount, err := cli.ParseMoney(flagPayAmount)
	if err != nil {
		return err
	}
	mode := engine.Mode(flagPayMode)

	if mode == engine.ModeCurrentWeek && !flagPayYes {
		out, err := s.engine.Outstanding(ctx, flagPayPlan)
		if err != nil {
			return err
		}
		if amount.GreaterThan(out.CurrentWeek) {
			plan, err := s.store.GetPlan(ctx, flagPayPlan)
			if err != nil {
				return err
			}
			if !interactive() {
				return fmt.Errorf("%s exceeds the %s owed this week; pass --yes to record it anyway",
					cli.FormatMoney(amount), cli.FormatMoney(out.CurrentWeek))
			}
			ok := false
			if err := tui.ConfirmPaymentForm(memberLabel(plan), amount, out.CurrentWeek, &ok).RunWithContext(ctx); err != nil {
				if errors.Is(err, tui.ErrAborted) {
					return nil
				}
				return err
			}
			if !ok {
				fmt.Println("  Payment not recorded")
				return nil
			}
		}
	}

	res, err := s.engine.AllocatePayment(ctx, flagPayPlan, amount, mode)
	if err != nil {
		return err
	}

	fmt.Printf("  Applied %s of %s to plan #%d (%s)\n",
		cli.FormatMoney(res.Applied), cli.FormatMoney(res.Requested), res.PlanID, res.Mode)
	if len(res.Allocations) > 0 {
		rows := make([][]string, 0, len(res.Allocations))
		for _, a := range res.Allocations {
			rows = append(rows, []string{
				cli.FormatSlot(a.Week, a.Day),
				cli.FormatDate(a.Date),
				cli.FormatMoney(a.Amount),
				cli.FormatMoney(a.RemainingAfter),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Slot", "Date", "Paid", "Remaining"},
			Rows:    rows,
		}))
	}
	if res.Unapplied.IsPositive() {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%s was not applied", cli.FormatMoney(res.Unapplied))))
	}
	if mode == engine.ModeBalance {
		fmt.Println(cli.RenderKV("Balance after rollover", cli.RenderMoney(res.PendingBalance)))
	}
	return nil
}
