package server

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/agencyops/internal/config"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	return cfg
}

func TestNew_WiresEverything(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.EventLog = filepath.Join(t.TempDir(), "events.jsonl")

	s, cleanup, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer cleanup()
	if s == nil {
		t.Fatal("New() returned a nil server")
	}
}

func TestNew_BadEventLogPath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	cfg.Notify.EventLog = filepath.Join(blocker, "events.jsonl")

	_, cleanup, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	cleanup()
	if err == nil {
		t.Fatal("expected an error when the event log parent is a file")
	}
}

func TestTools_UniqueAndComplete(t *testing.T) {
	st, err := store.Open(store.Config{DataDir: t.TempDir(), File: "srv.db"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	seen := map[string]bool{}
	for _, tool := range Tools(service.New(service.Options{Store: st})) {
		name := tool.Definition().Name
		if seen[name] {
			t.Errorf("tool %s registered twice", name)
		}
		seen[name] = true
	}

	for _, want := range []string{
		"move_task", "reorder_tasks", "add_dependency", "remove_dependency",
		"transition_task_status", "bulk_transition_tasks", "transition_project_status",
		"estimate_task", "batch_invoice", "update_milestone", "trigger_milestone",
		"invoice_milestone", "create_task", "create_phase", "create_project",
		"create_milestone", "log_time", "project_estimates", "verify_ordering",
	} {
		if !seen[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestBuildNotifier_Chain(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "events.jsonl")

	n, closeFn, err := buildNotifier(config.NotifyConfig{EventLog: path, Async: true}, logger)
	if err != nil {
		t.Fatalf("buildNotifier() error: %v", err)
	}
	if err := n.Notify(context.Background(), notify.Event{Type: notify.TaskAssigned, Subject: "t-1"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	closeFn()

	el, err := notify.OpenEventLog(path)
	if err != nil {
		t.Fatalf("reopen event log: %v", err)
	}
	defer el.Close()
	events, err := el.Read(notify.TaskAssigned)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(events) != 1 || events[0].Subject != "t-1" {
		t.Errorf("events = %+v, want one t-1 event", events)
	}
}
