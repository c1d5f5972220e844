package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := flagConfig
	if path == "" {
		path = config.Path()
	}

	fmt.Printf("  Config file: %s\n", path)
	if flagConfig != "" || config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [Cycle]")
	if cfg.Cycle.StartDate == "" {
		fmt.Println(cli.RenderWarning("start date not set; run `esusu setup`"))
	} else if cal, err := cfg.Calendar(); err != nil {
		fmt.Println(cli.RenderWarning(err.Error()))
	} else {
		fmt.Printf("    Start:       %s\n", cli.FormatDate(cal.Start))
		fmt.Printf("    Ends:        %s\n", cli.FormatDate(cal.WeekEnd(cal.Weeks)))
	}
	fmt.Printf("    Weeks:       %d\n", cfg.Cycle.Weeks)
	fmt.Printf("    Closing day: %d\n", cfg.Cycle.ClosingDay)
	fmt.Println()

	fmt.Println("  [Reconciliation]")
	fmt.Printf("    Note above:  %.2f%% variance\n", cfg.Reconciliation.VarianceNotePercent)
	if cfg.Operator != "" {
		fmt.Printf("    Operator:    %s\n", cfg.Operator)
	}
	fmt.Println()

	fmt.Println("  [Schedule]")
	fmt.Printf("    Daily sweep: %s\n", cfg.Schedule.SweepAt)
	fmt.Printf("    Close-out:   %s\n", cfg.Schedule.CloseoutAt)
	fmt.Printf("    Window:      %d min\n", cfg.Schedule.WindowMinutes)
	fmt.Printf("    Poll:        %s\n", cfg.PollInterval())
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Printf("    Database:    %s\n", cfg.StorePath())
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level:       %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.File != "" {
		fmt.Printf("    File:        %s\n", cfg.Log.File)
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:     %s\n", cfg.Daemon.Addr)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme:       %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `esusu setup` to reconfigure.")
	return nil
}
