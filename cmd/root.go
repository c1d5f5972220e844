// Package cmd implements the esusu CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/esusu/internal/cli"
	"github.com/theirongolddev/esusu/internal/config"
	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/engine"
	"github.com/theirongolddev/esusu/internal/store"
	"github.com/theirongolddev/esusu/internal/tui/theme"
)

var (
	flagConfig string
	flagDB     string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "esusu",
	Short: "Arrears and cash tracking for a rotating savings association",
	Long: "Track daily contribution shortfalls, roll them into member balances each week,\n" +
		"allocate arrears payments and reconcile counted cash against the ledgers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (overrides [store] path)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and plain output")
}

// session is what a command needs to talk to the engine.
type session struct {
	cfg     config.Config
	log     *logrus.Logger
	store   *store.Store
	engine  *engine.Engine
	closers []io.Closer
}

func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		return config.LoadFrom(flagConfig)
	}
	return config.Load()
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Store.Path = flagDB
	}
	theme.SetActive(cfg.Appearance.Theme)

	log, logCloser, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	if flagQuiet && log.GetLevel() > logrus.WarnLevel {
		log.SetLevel(logrus.WarnLevel)
	}

	cal, err := cfg.Calendar()
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	eng := engine.New(st, engine.Options{
		Calendar:            cal,
		Clock:               cycle.SystemClock{},
		Logger:              log,
		VarianceNotePercent: decimal.NewFromFloat(cfg.Reconciliation.VarianceNotePercent),
	})

	return &session{
		cfg:     cfg,
		log:     log,
		store:   st,
		engine:  eng,
		closers: []io.Closer{st, logCloser},
	}, nil
}

func (s *session) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// withSession opens a session around fn.
func withSession(fn func(s *session, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(s, cmd, args)
	}
}

// operator resolves who is acting, preferring the flag.
func (s *session) operator(flag string) string {
	if flag != "" {
		return flag
	}
	return s.cfg.Operator
}

// interactive reports whether forms and progress views can be drawn.
func interactive() bool {
	return !flagQuiet &&
		isatty.IsTerminal(os.Stdin.Fd()) &&
		isatty.IsTerminal(os.Stdout.Fd())
}

// parseDateFlag parses a YYYY-MM-DD flag, defaulting to today.
func parseDateFlag(v string) (time.Time, error) {
	if v == "" {
		return cycle.Day(time.Now()), nil
	}
	return cycle.ParseDate(v)
}

func describeError(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return cli.RenderWarning(fmt.Sprintf("%s: %s", e.Code, err))
	}
	return cli.RenderWarning(err.Error())
}
