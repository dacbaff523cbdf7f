package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{DataDir: t.TempDir(), File: "test.db"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// inTx runs fn in a transaction and fails the test on error.
func inTx(t *testing.T, s *store.Store, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.RunInTx(ctx, func(tx *store.Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
}

func seedProject(t *testing.T, s *store.Store) string {
	t.Helper()
	var id string
	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		p := &store.Project{Name: "Website rebuild"}
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return id
}

func seedTask(t *testing.T, s *store.Store, projectID *string, phaseID *string, title string) *store.Task {
	t.Helper()
	task := &store.Task{ProjectID: projectID, PhaseID: phaseID, Title: title}
	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		next, err := tx.NextOrder(ctx, task.Container())
		if err != nil {
			return err
		}
		task.SortOrder = next
		return tx.InsertTask(ctx, task)
	})
	return task
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

// ─── Open ────────────────────────────────────────────────────────────────────

func TestOpen_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "agencyops.db")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestOpen_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := store.Open(store.Config{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	projectID := seedProject(t, s1)
	s1.Close()

	s2, err := store.Open(store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	inTx(t, s2, func(ctx context.Context, tx *store.Tx) error {
		_, err := tx.GetProject(ctx, projectID)
		return err
	})
}

func TestOpen_ForeignKeysEnforcedOnEveryConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		conn, err := s.DB().Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, conn)
	}
	for i, conn := range conns {
		var on int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
			t.Fatal(err)
		}
		if on != 1 {
			t.Errorf("foreign_keys = %d on connection %d, want 1", on, i)
		}
		conn.Close()
	}
}

// ─── Transactions ────────────────────────────────────────────────────────────

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var id string
	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		p := &store.Project{Name: "Doomed"}
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	err = s.RunInTx(ctx, func(tx *store.Tx) error {
		_, err := tx.GetProject(ctx, id)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("project survived rollback: err = %v", err)
	}
}

func TestRunInTx_RollsBackOnPanic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var id string
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = s.RunInTx(ctx, func(tx *store.Tx) error {
			p := &store.Project{Name: "Panicky"}
			if err := tx.InsertProject(ctx, p); err != nil {
				return err
			}
			id = p.ID
			panic("kaboom")
		})
	}()

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		_, err := tx.GetProject(ctx, id)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("project survived panic: err = %v", err)
	}
}

func TestRunInTx_ExecFailureAbortsEverything(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	a := seedTask(t, s, &projectID, nil, "a")
	seedTask(t, s, &projectID, nil, "b")

	s.FailExecWhen(func(q string) bool { return strings.Contains(q, "sort_order = sort_order +") }, errors.New("disk on fire"))
	ctx := context.Background()
	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		if err := tx.Place(ctx, store.KindTask, a.ID, store.Slot{Container: a.Container(), Order: 5}); err != nil {
			return err
		}
		_, err := tx.Shift(ctx, a.Container(), store.Range{From: 0, To: -1}, 1, a.ID)
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("err = %v, want injected failure", err)
	}
	s.FailExecWhen(nil, nil)

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		got, err := tx.GetTask(ctx, a.ID)
		if err != nil {
			return err
		}
		if got.SortOrder != 0 {
			t.Errorf("SortOrder = %d after rollback, want 0", got.SortOrder)
		}
		return nil
	})
}

func TestRunInTx_RetriesBusyBegin(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	s.SetBeginHook(func(ctx context.Context, conn *sql.Conn) error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return err
	})
	seedProject(t, s)
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRunInTx_NonBusyBeginIsPermanent(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	s.SetBeginHook(func(ctx context.Context, conn *sql.Conn) error {
		attempts++
		return errors.New("disk I/O error")
	})
	err := s.RunInTx(context.Background(), func(tx *store.Tx) error { return nil })
	if err == nil {
		t.Fatal("expected begin failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

// ─── Sequence primitives ─────────────────────────────────────────────────────

func TestNextOrder_EmptyAndAppend(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)

	for i, title := range []string{"a", "b", "c"} {
		task := seedTask(t, s, &projectID, nil, title)
		if task.SortOrder != i {
			t.Errorf("task %q SortOrder = %d, want %d", title, task.SortOrder, i)
		}
	}

	// The ad-hoc pool is its own container.
	adhoc := seedTask(t, s, nil, nil, "standalone")
	if adhoc.SortOrder != 0 {
		t.Errorf("ad-hoc SortOrder = %d, want 0", adhoc.SortOrder)
	}
}

func TestShift_RangeAndExclude(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	var tasks []*store.Task
	for _, title := range []string{"a", "b", "c", "d"} {
		tasks = append(tasks, seedTask(t, s, &projectID, nil, title))
	}
	c := tasks[0].Container()

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		n, err := tx.Shift(ctx, c, store.Range{From: 1, To: 2}, 10, tasks[2].ID)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("shifted %d rows, want 1", n)
		}
		entries, err := tx.Orders(ctx, c)
		if err != nil {
			return err
		}
		got := map[string]int{}
		for _, e := range entries {
			got[e.ID] = e.Order
		}
		want := map[string]int{tasks[0].ID: 0, tasks[1].ID: 11, tasks[2].ID: 2, tasks[3].ID: 3}
		for id, order := range want {
			if got[id] != order {
				t.Errorf("order[%s] = %d, want %d", id, got[id], order)
			}
		}
		return nil
	})
}

func TestSlot_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RunInTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.Slot(context.Background(), store.KindTask, "missing")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing" {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

func TestPhaseParent(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		ph := &store.Phase{ParentID: projectID, Name: "Design"}
		if err := tx.InsertPhase(ctx, store.KindProjectPhase, ph); err != nil {
			return err
		}
		parent, err := tx.PhaseParent(ctx, store.KindProjectPhase, ph.ID)
		if err != nil {
			return err
		}
		if parent != projectID {
			t.Errorf("parent = %q, want %q", parent, projectID)
		}
		if _, err := tx.PhaseParent(ctx, store.KindTask, ph.ID); err == nil {
			t.Error("PhaseParent(KindTask) should fail")
		}
		return nil
	})
}

func TestDeletePhase_TakesItsTasksAlong(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	var phaseID string
	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		ph := &store.Phase{ParentID: projectID, Name: "Design"}
		if err := tx.InsertPhase(ctx, store.KindProjectPhase, ph); err != nil {
			return err
		}
		phaseID = ph.ID
		return nil
	})
	seedTask(t, s, &projectID, nil, "loose 0")
	seedTask(t, s, &projectID, nil, "loose 1")
	phased := seedTask(t, s, &projectID, &phaseID, "phased 0")

	if _, err := s.DB().Exec("DELETE FROM project_phases WHERE id = ?", phaseID); err != nil {
		t.Fatalf("delete phase: %v", err)
	}

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.GetTask(ctx, phased.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("phased task should be gone, got %v", err)
		}
		unphased := store.Container{Kind: store.KindTask, ScopeID: &projectID}
		tasks, err := tx.ListTasks(ctx, store.TaskFilter{ProjectID: &projectID, Container: &unphased})
		if err != nil {
			return err
		}
		if len(tasks) != 2 {
			t.Fatalf("unphased tasks = %d, want 2", len(tasks))
		}
		for i, task := range tasks {
			if task.SortOrder != i {
				t.Errorf("%s sort_order = %d, want %d", task.Title, task.SortOrder, i)
			}
		}
		return nil
	})
}

// ─── Tasks ───────────────────────────────────────────────────────────────────

func TestInsertTask_Defaults(t *testing.T) {
	s := newTestStore(t)
	restore := store.SetClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer restore()

	projectID := seedProject(t, s)
	task := &store.Task{ProjectID: &projectID, Title: "Wireframes", EnergyEstimate: intPtr(3), MysteryFactor: estimate.MysteryAverage}
	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertTask(ctx, task)
	})

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		got, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if got.Status != workflow.TaskNotStarted || got.Priority != 3 || got.BillingStatus != billing.StatusPending {
			t.Errorf("defaults = %s/%d/%s", got.Status, got.Priority, got.BillingStatus)
		}
		if got.EstimatedMinutes == nil || *got.EstimatedMinutes != 84 {
			t.Errorf("EstimatedMinutes = %v, want 84", got.EstimatedMinutes)
		}
		if got.CreatedAt != "2026-03-01T12:00:00Z" {
			t.Errorf("CreatedAt = %q", got.CreatedAt)
		}
		return nil
	})
}

func TestInsertTask_UnknownPhase(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	err := s.RunInTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertTask(context.Background(), &store.Task{ProjectID: &projectID, PhaseID: strPtr("nope"), Title: "x"})
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTask_RecomputesEstimate(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s, nil, nil, "Fix login")

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		energy := intPtr(2)
		mystery := estimate.MysterySignificant
		got, err := tx.UpdateTask(ctx, task.ID, store.TaskUpdate{EnergyEstimate: &energy, MysteryFactor: &mystery})
		if err != nil {
			return err
		}
		if got.EstimatedMinutes == nil || *got.EstimatedMinutes != 53 {
			t.Errorf("EstimatedMinutes = %v, want 53", got.EstimatedMinutes)
		}
		return nil
	})
}

func TestApplyTaskTransition_Stamps(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s, nil, nil, "Ship it")

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		tr := workflow.TaskTransition{From: workflow.TaskReview, To: workflow.TaskDone, StampCompleted: true}
		if err := tx.ApplyTaskTransition(ctx, task.ID, tr, "2026-01-02T00:00:00Z"); err != nil {
			return err
		}
		got, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if got.CompletedAt == nil || *got.CompletedAt != "2026-01-02T00:00:00Z" {
			t.Errorf("CompletedAt = %v", got.CompletedAt)
		}

		tr = workflow.TaskTransition{From: workflow.TaskDone, To: workflow.TaskInProgress, ClearCompleted: true}
		if err := tx.ApplyTaskTransition(ctx, task.ID, tr, "2026-01-03T00:00:00Z"); err != nil {
			return err
		}
		got, err = tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if got.CompletedAt != nil {
			t.Errorf("CompletedAt = %v after reopen, want nil", *got.CompletedAt)
		}
		if got.StartedAt != nil {
			t.Errorf("StartedAt = %v, want untouched nil", *got.StartedAt)
		}
		return nil
	})
}

func TestSaveTaskBilling_DerivesInvoiced(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s, nil, nil, "Consulting")

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		task.IsBillable = true
		task.BillingAmount = decimal.NewNullDecimal(decimal.RequireFromString("150.50"))
		task.BillingStatus = billing.StatusInvoiced
		task.InvoicedAt = strPtr("2026-01-01T00:00:00Z")
		if err := tx.SaveTaskBilling(ctx, task); err != nil {
			return err
		}
		got, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if !got.Invoiced || !got.BillingAmount.Valid || got.BillingAmount.Decimal.String() != "150.5" {
			t.Errorf("billing = invoiced:%v amount:%v", got.Invoiced, got.BillingAmount)
		}
		return nil
	})
}

func TestDeleteTask_CascadesEdgesAndTime(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	a := seedTask(t, s, &projectID, nil, "a")
	b := seedTask(t, s, &projectID, nil, "b")

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.InsertEdge(ctx, a.ID, b.ID); err != nil {
			return err
		}
		if err := tx.InsertTimeEntry(ctx, &store.TimeEntry{TaskID: a.ID, UserID: "u1", Minutes: 30}); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, a.ID)
	})

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		edges, err := tx.ScopeEdges(ctx, &projectID)
		if err != nil {
			return err
		}
		if len(edges) != 0 {
			t.Errorf("edges = %v, want none", edges)
		}
		spent, err := tx.ProjectTimeSpent(ctx, projectID)
		if err != nil {
			return err
		}
		if spent != 0 {
			t.Errorf("time spent = %d, want 0", spent)
		}
		return nil
	})
}

// ─── Dependencies ────────────────────────────────────────────────────────────

func TestEdges_InsertIdempotentAndBlockers(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)
	a := seedTask(t, s, &projectID, nil, "a")
	b := seedTask(t, s, &projectID, nil, "b")

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		created, err := tx.InsertEdge(ctx, a.ID, b.ID)
		if err != nil || !created {
			t.Fatalf("InsertEdge = %v, %v", created, err)
		}
		created, err = tx.InsertEdge(ctx, a.ID, b.ID)
		if err != nil || created {
			t.Fatalf("duplicate InsertEdge = %v, %v", created, err)
		}
		n, err := tx.ActiveBlockers(ctx, b.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("ActiveBlockers = %d, want 1", n)
		}
		deps, err := tx.Dependents(ctx, a.ID)
		if err != nil {
			return err
		}
		if len(deps) != 1 || deps[0].ID != b.ID {
			t.Errorf("Dependents = %+v", deps)
		}
		removed, err := tx.DeleteEdge(ctx, a.ID, b.ID)
		if err != nil || !removed {
			t.Fatalf("DeleteEdge = %v, %v", removed, err)
		}
		return nil
	})
}

func TestInsertEdge_SelfLoopRejectedBySchema(t *testing.T) {
	s := newTestStore(t)
	a := seedTask(t, s, nil, nil, "a")
	err := s.RunInTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.InsertEdge(context.Background(), a.ID, a.ID)
		return err
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure")
	}
}

// ─── Milestones ──────────────────────────────────────────────────────────────

func TestMilestones_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	projectID := seedProject(t, s)

	inTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		m := &store.Milestone{ProjectID: projectID, Name: "Launch"}
		m.BillingAmount = decimal.NewNullDecimal(decimal.NewFromInt(2500))
		if err := tx.InsertMilestone(ctx, m); err != nil {
			return err
		}
		m.BillingStatus = billing.StatusTriggered
		m.TriggeredAt = strPtr("2026-02-01T00:00:00Z")
		m.TriggeredByID = strPtr("admin")
		if err := tx.SaveMilestone(ctx, m); err != nil {
			return err
		}

		found, err := tx.MilestonesByIDs(ctx, []string{m.ID, "ghost"})
		if err != nil {
			return err
		}
		if len(found) != 1 || found[m.ID].BillingStatus != billing.StatusTriggered {
			t.Errorf("MilestonesByIDs = %+v", found)
		}
		triggered, err := tx.TriggeredMilestones(ctx)
		if err != nil {
			return err
		}
		if len(triggered) != 1 {
			t.Errorf("TriggeredMilestones = %d, want 1", len(triggered))
		}
		return nil
	})
}

func TestGetMilestone_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RunInTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.GetMilestone(context.Background(), "nope")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
