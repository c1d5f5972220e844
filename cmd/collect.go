package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/model"
)

var (
	flagEntryPlan     int64
	flagEntryDate     string
	flagEntryAmount   string
	flagEntryCategory string
	flagEntryDesc     string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Record a daily collection for a plan",
	RunE:  withSession(runCollect),
}

var trustDepositCmd = &cobra.Command{
	Use:   "trust-deposit",
	Short: "Record money received from a trust-deposit member",
	RunE:  withSession(runTrustDeposit),
}

var outflowCmd = &cobra.Command{
	Use:   "outflow",
	Short: "Record an operational expense or loss",
	RunE:  withSession(runOutflow),
}

func init() {
	for _, c := range []*cobra.Command{collectCmd, trustDepositCmd} {
		c.Flags().Int64Var(&flagEntryPlan, "plan", 0, "Plan id")
		_ = c.MarkFlagRequired("plan")
	}
	for _, c := range []*cobra.Command{collectCmd, trustDepositCmd, outflowCmd} {
		c.Flags().StringVar(&flagEntryDate, "date", "", "Date YYYY-MM-DD (default today)")
		c.Flags().StringVar(&flagEntryAmount, "amount", "", "Amount")
		_ = c.MarkFlagRequired("amount")
	}
	outflowCmd.Flags().StringVar(&flagEntryCategory, "category", string(model.OutflowExpense), "expense or loss")
	outflowCmd.Flags().StringVar(&flagEntryDesc, "desc", "", "Description")

	rootCmd.AddCommand(collectCmd, trustDepositCmd, outflowCmd)
}

// parseEntry reads the date and amount flags shared by the ledger commands.
func (s *session) parseEntry() (model.Payment, error) {
	date, err := parseDateFlag(flagEntryDate)
	if err != nil {
		return model.Payment{}, err
	}
	pos, err := s.engine.Calendar().Locate(date)
	if err != nil {
		return model.Payment{}, err
	}
	amount, err := cli.ParseMoney(flagEntryAmount)
	if err != nil {
		return model.Payment{}, err
	}
	if !amount.IsPositive() {
		return model.Payment{}, errors.New("amount must be positive")
	}
	return model.Payment{Week: pos.Week, Day: pos.Day, Date: date, Amount: amount}, nil
}

func runCollect(s *session, cmd *cobra.Command, _ []string) error {
	p, err := s.parseEntry()
	if err != nil {
		return err
	}
	plan, err := s.store.GetPlan(cmd.Context(), flagEntryPlan)
	if err != nil {
		return err
	}
	if plan.IsTrust() {
		return fmt.Errorf("plan #%d is a trust-deposit plan; use trust-deposit", plan.ID)
	}
	p.PlanID = plan.ID
	if err := s.store.RecordPayment(cmd.Context(), &p); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"plan_id": p.PlanID, "week": p.Week, "day": p.Day}).Debug("collection recorded")
	fmt.Printf("  Collected %s from %s on %s (%s)\n",
		cli.FormatMoney(p.Amount), memberLabel(plan), cli.FormatDate(p.Date), cli.FormatSlot(p.Week, p.Day))
	return nil
}

func runTrustDeposit(s *session, cmd *cobra.Command, _ []string) error {
	p, err := s.parseEntry()
	if err != nil {
		return err
	}
	plan, err := s.store.GetPlan(cmd.Context(), flagEntryPlan)
	if err != nil {
		return err
	}
	if !plan.IsTrust() {
		return fmt.Errorf("plan #%d is not a trust-deposit plan", plan.ID)
	}
	d := model.TrustDeposit{PlanID: plan.ID, Week: p.Week, Date: p.Date, Amount: p.Amount}
	if err := s.store.RecordTrustDeposit(cmd.Context(), &d); err != nil {
		return err
	}
	fmt.Printf("  Trust deposit of %s from %s in week %d\n", cli.FormatMoney(d.Amount), memberLabel(plan), d.Week)
	return nil
}

func runOutflow(s *session, cmd *cobra.Command, _ []string) error {
	p, err := s.parseEntry()
	if err != nil {
		return err
	}
	category := model.OutflowCategory(strings.ToLower(flagEntryCategory))
	if category != model.OutflowExpense && category != model.OutflowLoss {
		return fmt.Errorf("unknown category %q (want expense or loss)", flagEntryCategory)
	}
	o := model.Outflow{Week: p.Week, Date: p.Date, Amount: p.Amount, Category: category, Description: flagEntryDesc}
	if err := s.store.RecordOutflow(cmd.Context(), &o); err != nil {
		return err
	}
	fmt.Printf("  Recorded %s %s in week %d\n", category, cli.FormatMoney(o.Amount), o.Week)
	return nil
}
