package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// isolate points the lookup directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// --- Load ---

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %s, want %s", cfg.DataDir, dir)
	}
	if cfg.Database != "agencyops.db" {
		t.Errorf("Database = %s, want agencyops.db", cfg.Database)
	}
	if cfg.Store.BusyTimeout != 5*time.Second {
		t.Errorf("BusyTimeout = %s, want 5s", cfg.Store.BusyTimeout)
	}
	if cfg.Workflow.UnblockPolicy != workflow.UnblockReset {
		t.Errorf("UnblockPolicy = %s, want reset", cfg.Workflow.UnblockPolicy)
	}
	if cfg.Billing.DefaultEstimate != estimate.KindMid {
		t.Errorf("DefaultEstimate = %s, want mid", cfg.Billing.DefaultEstimate)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be off by default")
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
}

func TestLoad_ReadsFileFromHome(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `
database: ops.db
store:
  busy_timeout: 250ms
workflow:
  unblock_policy: restore
billing:
  default_estimate: high
log:
  level: debug
  format: json
notify:
  event_log: /tmp/agencyops-events.jsonl
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database != "ops.db" || cfg.DBPath() != filepath.Join(dir, "ops.db") {
		t.Errorf("database = %s (%s)", cfg.Database, cfg.DBPath())
	}
	if cfg.Store.BusyTimeout != 250*time.Millisecond {
		t.Errorf("BusyTimeout = %s", cfg.Store.BusyTimeout)
	}
	if cfg.Workflow.UnblockPolicy != workflow.UnblockRestore {
		t.Errorf("UnblockPolicy = %s", cfg.Workflow.UnblockPolicy)
	}
	if cfg.Billing.DefaultEstimate != estimate.KindHigh {
		t.Errorf("DefaultEstimate = %s", cfg.Billing.DefaultEstimate)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Notify.EventLog != "/tmp/agencyops-events.jsonl" {
		t.Errorf("EventLog = %s", cfg.Notify.EventLog)
	}
	if !strings.HasSuffix(cfg.File, "agencyops.yaml") {
		t.Errorf("File = %s", cfg.File)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "workflow:\n  unblock_policy: reset\n")
	t.Setenv("AGENCYOPS_WORKFLOW_UNBLOCK_POLICY", "restore")
	t.Setenv("AGENCYOPS_TELEMETRY_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workflow.UnblockPolicy != workflow.UnblockRestore {
		t.Errorf("UnblockPolicy = %s, want restore", cfg.Workflow.UnblockPolicy)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("AGENCYOPS_TELEMETRY_ENABLED not applied")
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unblock policy", "workflow:\n  unblock_policy: rewind\n", "workflow.unblock_policy"},
		{"estimate", "billing:\n  default_estimate: median\n", "billing.default_estimate"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"busy timeout", "store:\n  busy_timeout: 0s\n", "store.busy_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := writeConfig(t, dir, tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

// --- Helpers ---

func TestStoreConfig_MapsSettings(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.StoreConfig()
	if sc.DataDir != cfg.DataDir || sc.File != cfg.Database || sc.BusyTimeout != cfg.Store.BusyTimeout {
		t.Errorf("StoreConfig = %+v", sc)
	}
}

func TestNewLogger_RespectsFormatAndLevel(t *testing.T) {
	var buf strings.Builder
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("json output = %s", out)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandHome("~/ops"); got != filepath.Join(home, "ops") {
		t.Errorf("expandHome = %s", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Errorf("expandHome(/abs) = %s", got)
	}
}
