package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
	"github.com/theirongolddev/esusu/internal/store"
)

var (
	flagPlanMember   string
	flagPlanName     string
	flagPlanDaily    string
	flagPlanSchedule string
	flagPlanStart    string
	flagPlanTrust    bool
	flagPlanAll      bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage member savings plans",
}

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enroll a member with a daily contribution",
	RunE:  withSession(runPlanAdd),
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans with their outstanding balance",
	RunE:  withSession(runPlanList),
}

var planStatusCmd = &cobra.Command{
	Use:   "status <plan-id>",
	Short: "Show a plan's arrears in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  withSession(runPlanStatus),
}

var planSetStatusCmd = &cobra.Command{
	Use:   "set-status <plan-id> <active|complete|archived>",
	Short: "Change a plan's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE:  withSession(runPlanSetStatus),
}

func init() {
	planAddCmd.Flags().StringVar(&flagPlanMember, "member", "", "Member id")
	planAddCmd.Flags().StringVar(&flagPlanName, "name", "", "Member name")
	planAddCmd.Flags().StringVar(&flagPlanDaily, "daily", "", "Daily contribution amount")
	planAddCmd.Flags().StringVar(&flagPlanSchedule, "schedule", "", "Collection days, e.g. 1,3,5 (default every day)")
	planAddCmd.Flags().StringVar(&flagPlanStart, "start", "", "Plan start date YYYY-MM-DD (default cycle start)")
	planAddCmd.Flags().BoolVar(&flagPlanTrust, "trust", false, "Trust-deposit member (never accrues arrears)")
	_ = planAddCmd.MarkFlagRequired("member")
	_ = planAddCmd.MarkFlagRequired("daily")

	planListCmd.Flags().BoolVar(&flagPlanAll, "all", false, "Include completed and archived plans")

	planCmd.AddCommand(planAddCmd, planListCmd, planStatusCmd, planSetStatusCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlanAdd(s *session, cmd *cobra.Command, _ []string) error {
	daily, err := cli.ParseMoney(flagPlanDaily)
	if err != nil {
		return err
	}
	if !daily.IsPositive() {
		return errors.New("daily amount must be positive")
	}
	days, err := store.ParseSchedule(flagPlanSchedule)
	if err != nil {
		return err
	}
	start := s.engine.Calendar().Start
	if flagPlanStart != "" {
		if start, err = cycle.ParseDate(flagPlanStart); err != nil {
			return err
		}
	}

	p := model.Plan{
		MemberID:    flagPlanMember,
		MemberName:  flagPlanName,
		DailyAmount: daily,
		Schedule:    days,
		StartDate:   start,
	}
	if flagPlanTrust {
		p.Classification = model.ClassTrust
	}
	if err := s.store.CreatePlan(cmd.Context(), &p); err != nil {
		return err
	}

	fmt.Printf("  Added plan #%d for %s (%s %s)\n", p.ID, memberLabel(p), cli.FormatMoney(daily), cli.FormatSchedule(days))
	return nil
}

func runPlanList(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		plans []model.Plan
		err   error
	)
	if flagPlanAll {
		plans, err = s.store.ListPlans(ctx)
	} else {
		plans, err = s.store.ListActivePlans(ctx)
	}
	if err != nil {
		return err
	}
	balances, err := balancesByPlan(ctx, s)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(plans))
	owed := decimal.Zero
	for _, p := range plans {
		remaining := decimal.Zero
		if b, ok := balances[p.ID]; ok {
			remaining = b.RemainingAmount
		}
		owed = owed.Add(remaining)
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.MemberID,
			p.MemberName,
			cli.FormatMoney(p.DailyAmount),
			cli.FormatSchedule(p.Schedule),
			string(p.Classification),
			string(p.Status),
			cli.FormatMoney(remaining),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Plans (%d)", len(plans)),
		Headers: []string{"ID", "Member", "Name", "Daily", "Days", "Class", "Status", "Balance"},
		Rows:    rows,
	}))
	fmt.Println(cli.RenderKV("Total balance owed", cli.FormatMoney(owed)))
	fmt.Println()
	return nil
}

func runPlanStatus(s *session, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parsePlanID(args[0])
	if err != nil {
		return err
	}
	p, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	out, err := s.engine.Outstanding(ctx, id)
	if err != nil {
		return err
	}
	weekly, err := s.store.ListWeeklyShortfalls(ctx, id)
	if err != nil {
		return err
	}
	open, err := s.store.ListUnpaidDailyShortfalls(ctx, id, 1)
	if err != nil {
		return err
	}
	history, err := s.store.ListBalanceHistory(ctx, id)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PLAN #%d  %s", p.ID, memberLabel(p))))
	fmt.Println()
	fmt.Println(cli.RenderKV("Daily amount", cli.FormatMoney(p.DailyAmount)))
	fmt.Println(cli.RenderKV("Collection days", cli.FormatSchedule(p.Schedule)))
	fmt.Println(cli.RenderKV("Status", fmt.Sprintf("%s / %s", p.Status, p.Classification)))
	fmt.Println(cli.RenderKV("Started", cli.FormatDate(p.StartDate)))
	fmt.Println()
	fmt.Println(cli.RenderKV("Current week arrears", cli.RenderMoney(out.CurrentWeek)))
	fmt.Println(cli.RenderKV("Accumulated balance", cli.RenderMoney(out.Balance)))
	if out.Pending.IsPositive() {
		fmt.Println(cli.RenderKV("Awaiting rollover", cli.FormatMoney(out.Pending)))
	}
	fmt.Println(cli.RenderKV("Payable now", cli.FormatMoney(out.Payable())))

	if len(weekly) > 0 {
		totals := make([]float64, len(weekly))
		for i, w := range weekly {
			totals[i] = w.Total.InexactFloat64()
		}
		fmt.Println(cli.RenderKV("Weekly arrears", cli.RenderSparkline(totals)))
	}
	fmt.Println()

	if len(open) > 0 {
		rows := make([][]string, 0, len(open))
		for _, ds := range open {
			rows = append(rows, []string{
				cli.FormatSlot(ds.Week, ds.Day),
				cli.FormatDate(ds.Date),
				cli.FormatMoney(ds.Due),
				cli.FormatMoney(ds.Paid),
				cli.FormatMoney(ds.Remaining),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Open daily shortfalls",
			Headers: []string{"Slot", "Date", "Due", "Paid", "Remaining"},
			Rows:    rows,
		}))
	}

	if len(history) > 0 {
		rows := make([][]string, 0, len(history))
		for _, h := range history {
			rows = append(rows, []string{
				cli.FormatSlot(h.Week, 0),
				cli.FormatMoney(h.AmountPaid),
				cli.FormatMoney(h.RemainingBefore),
				cli.FormatMoney(h.RemainingAfter),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Carry-forward history",
			Headers: []string{"Week", "Paid", "Before", "After"},
			Rows:    rows,
		}))
	}
	fmt.Println()
	return nil
}

func runPlanSetStatus(s *session, cmd *cobra.Command, args []string) error {
	id, err := parsePlanID(args[0])
	if err != nil {
		return err
	}
	status := model.PlanStatus(args[1])
	switch status {
	case model.PlanActive, model.PlanComplete, model.PlanArchived:
	default:
		return fmt.Errorf("unknown status %q", args[1])
	}
	if err := s.store.SetPlanStatus(cmd.Context(), id, status); err != nil {
		return err
	}
	fmt.Printf("  Plan #%d is now %s\n", id, status)
	return nil
}

func parsePlanID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid plan id %q", s)
	}
	return id, nil
}

func memberLabel(p model.Plan) string {
	if p.MemberName != "" {
		return p.MemberName
	}
	return p.MemberID
}

func balancesByPlan(ctx context.Context, s *session) (map[int64]model.AccumulatedBalance, error) {
	list, err := s.store.ListBalances(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]model.AccumulatedBalance, len(list))
	for _, b := range list {
		out[b.PlanID] = b
	}
	return out, nil
}
