package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/model"
)

var (
	flagBalancesOwing bool
	flagVaultAmount   string
	flagVaultDate     string
	flagVaultDesc     string
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "List accumulated balances",
	RunE:  withSession(runBalances),
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect and draw from the vault ledger",
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault transactions",
	RunE:  withSession(runVaultList),
}

var vaultWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Record a withdrawal from the vault",
	RunE:  withSession(runVaultWithdraw),
}

func init() {
	balancesCmd.Flags().BoolVar(&flagBalancesOwing, "owing", false, "Only balances with money outstanding")

	vaultWithdrawCmd.Flags().StringVar(&flagVaultAmount, "amount", "", "Amount withdrawn")
	vaultWithdrawCmd.Flags().StringVar(&flagVaultDate, "date", "", "Date YYYY-MM-DD (default today)")
	vaultWithdrawCmd.Flags().StringVar(&flagVaultDesc, "desc", "", "Reason for the withdrawal")
	_ = vaultWithdrawCmd.MarkFlagRequired("amount")
	_ = vaultWithdrawCmd.MarkFlagRequired("desc")

	vaultCmd.AddCommand(vaultListCmd, vaultWithdrawCmd)
	rootCmd.AddCommand(balancesCmd, vaultCmd)
}

func runBalances(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	list, err := s.store.ListBalances(ctx)
	if err != nil {
		return err
	}
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(plans))
	for _, p := range plans {
		names[p.ID] = memberLabel(p)
	}

	rows := make([][]string, 0, len(list))
	total, paid := decimal.Zero, decimal.Zero
	for _, b := range list {
		if flagBalancesOwing && b.IsPaid {
			continue
		}
		total = total.Add(b.RemainingAmount)
		paid = paid.Add(b.PaidAmount)
		rows = append(rows, []string{
			strconv.FormatInt(b.PlanID, 10),
			names[b.PlanID],
			cli.FormatMoney(b.TotalArrears),
			cli.FormatMoney(b.PaidAmount),
			cli.FormatMoney(b.RemainingAmount),
			strconv.Itoa(b.LastWeekNumber),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Accumulated balances",
		Headers: []string{"Plan", "Member", "Arrears", "Paid", "Remaining", "Next week"},
		Rows:    rows,
	}))
	fmt.Println(cli.RenderKV("Paid since last rollover", cli.FormatMoney(paid)))
	fmt.Println(cli.RenderKV("Outstanding", cli.RenderMoney(total)))
	fmt.Println()
	return nil
}

func runVaultList(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	txs, err := s.store.ListVaultTransactions(ctx)
	if err != nil {
		return err
	}
	bal, err := s.store.VaultBalance(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(txs))
	for _, v := range txs {
		amount := v.Amount
		if v.Kind == model.VaultWithdrawal {
			amount = amount.Neg()
		}
		rows = append(rows, []string{
			cli.FormatDate(v.Date),
			string(v.Kind),
			cli.FormatSigned(amount),
			v.Description,
			v.ID[:8],
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Vault",
		Headers: []string{"Date", "Kind", "Amount", "Description", "Ref"},
		Rows:    rows,
	}))
	fmt.Println(cli.RenderKV("Balance", cli.FormatMoney(bal)))
	fmt.Println()
	return nil
}

func runVaultWithdraw(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	amount, err := cli.ParseMoney(flagVaultAmount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	date, err := parseDateFlag(flagVaultDate)
	if err != nil {
		return err
	}
	bal, err := s.store.VaultBalance(ctx)
	if err != nil {
		return err
	}
	if amount.GreaterThan(bal) {
		return fmt.Errorf("vault holds %s; cannot withdraw %s", cli.FormatMoney(bal), cli.FormatMoney(amount))
	}

	v := model.VaultTransaction{
		Kind:        model.VaultWithdrawal,
		Amount:      amount,
		Date:        date,
		Description: flagVaultDesc,
	}
	if err := s.store.RecordVaultTransaction(ctx, &v); err != nil {
		return err
	}
	fmt.Printf("  Withdrew %s (ref %s); vault now holds %s\n",
		cli.FormatMoney(amount), v.ID[:8], cli.FormatMoney(bal.Sub(amount)))
	return nil
}
