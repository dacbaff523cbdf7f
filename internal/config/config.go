// Package config loads agencyops settings from agencyops.yaml, AGENCYOPS_*
// environment variables and built-in defaults, in increasing order of
// precedence: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

const (
	// FileName is the config file base name (without extension).
	FileName = "agencyops"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "AGENCYOPS"
	// HomeEnv points at an alternate data/config directory.
	HomeEnv = "AGENCYOPS_HOME"
)

// Config is the effective configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Database  string          `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Billing   BillingConfig   `yaml:"billing"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Notify    NotifyConfig    `yaml:"notify"`

	// File is the config file that was read, empty when none was found.
	File string `yaml:"-"`
}

type StoreConfig struct {
	BusyTimeout          time.Duration `yaml:"busy_timeout"`
	BeginRetryMaxElapsed time.Duration `yaml:"begin_retry_max_elapsed"`
}

type WorkflowConfig struct {
	UnblockPolicy workflow.UnblockPolicy `yaml:"unblock_policy"`
}

type BillingConfig struct {
	DefaultEstimate estimate.Kind `yaml:"default_estimate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	Stdout  bool `yaml:"stdout"`
}

type NotifyConfig struct {
	// EventLog is the JSONL file events are appended to. Empty disables it.
	EventLog string `yaml:"event_log"`
	Async    bool   `yaml:"async"`
}

// DefaultDir returns $AGENCYOPS_HOME, or ~/.agencyops.
func DefaultDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	return store.DefaultConfig().DataDir
}

func setDefaults(v *viper.Viper) {
	sc := store.DefaultConfig()
	v.SetDefault("data_dir", DefaultDir())
	v.SetDefault("database", sc.File)
	v.SetDefault("store.busy_timeout", sc.BusyTimeout)
	v.SetDefault("store.begin_retry_max_elapsed", sc.BeginRetryMaxElapsed)
	v.SetDefault("workflow.unblock_policy", string(workflow.UnblockReset))
	v.SetDefault("billing.default_estimate", string(estimate.KindMid))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("notify.event_log", "")
	v.SetDefault("notify.async", true)
}

// Load reads the configuration. An explicit path must exist; otherwise
// agencyops.yaml is looked up in DefaultDir and a missing file means
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:  expandHome(v.GetString("data_dir")),
		Database: v.GetString("database"),
		Store: StoreConfig{
			BusyTimeout:          v.GetDuration("store.busy_timeout"),
			BeginRetryMaxElapsed: v.GetDuration("store.begin_retry_max_elapsed"),
		},
		Workflow:  WorkflowConfig{UnblockPolicy: workflow.UnblockPolicy(v.GetString("workflow.unblock_policy"))},
		Billing:   BillingConfig{DefaultEstimate: estimate.Kind(v.GetString("billing.default_estimate"))},
		Log:       LogConfig{Level: strings.ToLower(v.GetString("log.level")), Format: strings.ToLower(v.GetString("log.format"))},
		Telemetry: TelemetryConfig{Enabled: v.GetBool("telemetry.enabled"), Stdout: v.GetBool("telemetry.stdout")},
		Notify:    NotifyConfig{EventLog: expandHome(v.GetString("notify.event_log")), Async: v.GetBool("notify.async")},
		File:      v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and non-positive durations.
func (c *Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.Store.BusyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store.busy_timeout must be positive, got %s", c.Store.BusyTimeout))
	}
	if c.Store.BeginRetryMaxElapsed < 0 {
		errs = append(errs, fmt.Errorf("store.begin_retry_max_elapsed must not be negative, got %s", c.Store.BeginRetryMaxElapsed))
	}
	if err := workflow.ValidateUnblockPolicy(c.Workflow.UnblockPolicy); err != nil {
		errs = append(errs, fmt.Errorf("workflow.unblock_policy: %w", err))
	}
	if _, err := estimate.ParseKind(string(c.Billing.DefaultEstimate)); err != nil || c.Billing.DefaultEstimate == "" {
		errs = append(errs, fmt.Errorf("billing.default_estimate: invalid %q", c.Billing.DefaultEstimate))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// StoreConfig maps the settings onto store.Config.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		DataDir:              c.DataDir,
		File:                 c.Database,
		BusyTimeout:          c.Store.BusyTimeout,
		BeginRetryMaxElapsed: c.Store.BeginRetryMaxElapsed,
	}
}

// DBPath returns the full database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.Database)
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
