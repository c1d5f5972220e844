package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/engine"
	"github.com/theirongolddev/esusu/internal/tui"
)

var (
	flagBackfillFrom int
	flagBackfillTo   int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild shortfalls and balances for past weeks from the collection log",
	RunE:  withSession(runBackfill),
}

func init() {
	backfillCmd.Flags().IntVar(&flagBackfillFrom, "from", 1, "First week")
	backfillCmd.Flags().IntVar(&flagBackfillTo, "to", 0, "Last week (default current week)")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(s *session, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	to, err := s.targetWeek(flagBackfillTo)
	if err != nil {
		return err
	}

	var res engine.BackfillResult
	job := func(progress engine.ProgressFunc) error {
		var err error
		res, err = s.engine.RunHistoricalBackfill(ctx, flagBackfillFrom, to, progress)
		return err
	}

	if interactive() {
		// Info lines would tear the progress view.
		if lvl := s.log.GetLevel(); lvl > logrus.WarnLevel {
			s.log.SetLevel(logrus.WarnLevel)
			defer s.log.SetLevel(lvl)
		}
		title := fmt.Sprintf("Backfilling weeks %d-%d", flagBackfillFrom, to)
		err = tui.RunWithProgress(title, job)
	} else {
		err = job(func(pct float64, msg string) {
			if flagQuiet {
				return
			}
			fmt.Fprintf(os.Stderr, "\r  %s %s    ", cli.RenderProgressBar(pct, 30), msg)
			if pct >= 100 {
				fmt.Fprintln(os.Stderr)
			}
		})
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BACKFILL WEEKS %d-%d", res.StartWeek, res.EndWeek)))
	fmt.Println()
	fmt.Println(cli.RenderKV("Run", res.RunID))
	fmt.Println(cli.RenderKV("Plan-days examined", strconv.Itoa(res.Examined)))
	fmt.Println(cli.RenderKV("Shortfalls created", strconv.Itoa(res.Created)))
	fmt.Println(cli.RenderKV("Already present", strconv.Itoa(res.Existing)))
	fmt.Println(cli.RenderKV("Weeks converted", strconv.Itoa(res.WeeksConverted)))
	fmt.Println(cli.RenderKV("Weekly records created", strconv.Itoa(res.RecordsCreated)))
	fmt.Println(cli.RenderKV("Balances created", strconv.Itoa(res.BalancesCreated)))
	fmt.Println(cli.RenderKV("Balances updated", strconv.Itoa(res.BalancesUpdated)))
	if res.Failed > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d records failed; see the log", res.Failed)))
	}
	fmt.Println()
	return nil
}
