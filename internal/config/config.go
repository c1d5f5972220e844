package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/theirongolddev/esusu/internal/cycle"
)

// Config holds all esusu configuration.
type Config struct {
	Cycle          CycleConfig          `toml:"cycle"`
	Reconciliation ReconciliationConfig `toml:"reconciliation"`
	Schedule       ScheduleConfig       `toml:"schedule"`
	Store          StoreConfig          `toml:"store"`
	Log            LogConfig            `toml:"log"`
	Daemon         DaemonConfig         `toml:"daemon"`
	Appearance     AppearanceConfig     `toml:"appearance"`
	Operator       string               `toml:"operator,omitempty"`
}

// CycleConfig defines the collection cycle calendar.
type CycleConfig struct {
	StartDate  string `toml:"start_date"`
	Weeks      int    `toml:"weeks"`
	ClosingDay int    `toml:"closing_day"`
}

// ReconciliationConfig holds weekly reconciliation rules.
type ReconciliationConfig struct {
	VarianceNotePercent float64 `toml:"variance_note_percent"`
}

// ScheduleConfig holds the background trigger windows.
type ScheduleConfig struct {
	SweepAt       string `toml:"sweep_at"`
	CloseoutAt    string `toml:"closeout_at"`
	WindowMinutes int    `toml:"window_minutes"`
	PollInterval  string `toml:"poll_interval"`
}

// StoreConfig locates the database.
type StoreConfig struct {
	Path string `toml:"path,omitempty"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file,omitempty"`
}

// DaemonConfig holds the status API settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds terminal styling preferences.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Cycle: CycleConfig{
			Weeks:      52,
			ClosingDay: 7,
		},
		Reconciliation: ReconciliationConfig{
			VarianceNotePercent: 1.0,
		},
		Schedule: ScheduleConfig{
			SweepAt:       "23:50",
			CloseoutAt:    "23:55",
			WindowMinutes: 10,
			PollInterval:  "30s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8788",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "esusu")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "esusu")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "esusu")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "esusu")
}

// Load reads the config file, returning defaults if it doesn't exist.
// A .env file in the working directory and ESUSU_* variables override it.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path with the same fallbacks as Load.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	// Missing .env is the normal case.
	_ = godotenv.Load()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ESUSU_DB")); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("ESUSU_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("ESUSU_OPERATOR")); v != "" {
		cfg.Operator = v
	}
	if v := strings.TrimSpace(os.Getenv("ESUSU_CYCLE_START")); v != "" {
		cfg.Cycle.StartDate = v
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// StorePath returns the configured database path or the default.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(DataDir(), "esusu.db")
}

// Calendar builds the cycle calendar from the [cycle] section.
func (c Config) Calendar() (cycle.Calendar, error) {
	if c.Cycle.StartDate == "" {
		return cycle.Calendar{}, fmt.Errorf("cycle.start_date is not set; run `esusu setup`")
	}
	start, err := cycle.ParseDate(c.Cycle.StartDate)
	if err != nil {
		return cycle.Calendar{}, fmt.Errorf("cycle.start_date: %w", err)
	}
	return cycle.New(start, c.Cycle.Weeks, c.Cycle.ClosingDay)
}

// PollInterval parses schedule.poll_interval, defaulting to 30s.
func (c Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
