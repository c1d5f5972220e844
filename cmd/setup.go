package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/config"
	"github.com/theirongolddev/esusu/internal/tui"
	"github.com/theirongolddev/esusu/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if !interactive() {
		return fmt.Errorf("setup needs a terminal; edit %s instead", config.Path())
	}

	// Load existing config or defaults
	cfg, _ := config.Load()
	theme.SetActive(cfg.Appearance.Theme)

	vals := tui.NewSetupValues(cfg)
	if err := tui.SetupForm(&vals).RunWithContext(cmd.Context()); err != nil {
		if errors.Is(err, tui.ErrAborted) {
			fmt.Println("  Setup cancelled; nothing saved.")
			return nil
		}
		return err
	}
	if err := vals.Apply(&cfg); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `esusu setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
