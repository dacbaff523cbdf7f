package store

import (
	"context"
	"fmt"
)

// ─── Migrations ──────────────────────────────────────────────────────────────

// sort_order columns carry no UNIQUE index: range shifts pass through
// transient duplicates inside a statement.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'quote',
			hourly_rate  TEXT,
			completed_at TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS project_phases (
			id         TEXT PRIMARY KEY,
			project_id TEXT    NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name       TEXT    NOT NULL,
			sort_order INTEGER NOT NULL CHECK (sort_order >= 0),
			created_at TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recipes (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recipe_phases (
			id         TEXT PRIMARY KEY,
			recipe_id  TEXT    NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			name       TEXT    NOT NULL,
			sort_order INTEGER NOT NULL CHECK (sort_order >= 0),
			created_at TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recipe_tasks (
			id              TEXT PRIMARY KEY,
			recipe_id       TEXT    NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			phase_id        TEXT    NOT NULL REFERENCES recipe_phases(id) ON DELETE CASCADE,
			title           TEXT    NOT NULL,
			energy_estimate INTEGER,
			mystery_factor  TEXT    NOT NULL DEFAULT 'none',
			sort_order      INTEGER NOT NULL CHECK (sort_order >= 0),
			created_at      TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id                  TEXT PRIMARY KEY,
			project_id          TEXT REFERENCES projects(id) ON DELETE CASCADE,
			phase_id            TEXT REFERENCES project_phases(id) ON DELETE CASCADE,
			title               TEXT    NOT NULL,
			status              TEXT    NOT NULL DEFAULT 'not_started',
			status_before_block TEXT,
			priority            INTEGER NOT NULL DEFAULT 3,
			energy_estimate     INTEGER,
			mystery_factor      TEXT    NOT NULL DEFAULT 'none',
			estimated_minutes   INTEGER,
			sort_order          INTEGER NOT NULL CHECK (sort_order >= 0),
			assignee_id         TEXT,
			is_billable         INTEGER NOT NULL DEFAULT 0,
			billing_amount      TEXT,
			billing_status      TEXT    NOT NULL DEFAULT 'pending',
			triggered_at        TEXT,
			triggered_by_id     TEXT,
			invoiced_at         TEXT,
			invoiced_by_id      TEXT,
			started_at          TEXT,
			completed_at        TEXT,
			created_at          TEXT    NOT NULL,
			updated_at          TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS task_dependencies (
			blocker_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			blocked_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			PRIMARY KEY (blocker_id, blocked_id),
			CHECK (blocker_id <> blocked_id)
		);

		CREATE TABLE IF NOT EXISTS milestones (
			id              TEXT PRIMARY KEY,
			project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			billing_status  TEXT NOT NULL DEFAULT 'pending',
			billing_amount  TEXT,
			completed_at    TEXT,
			triggered_at    TEXT,
			triggered_by_id TEXT,
			invoiced_at     TEXT,
			invoiced_by_id  TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS time_entries (
			id         TEXT PRIMARY KEY,
			task_id    TEXT    NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			user_id    TEXT    NOT NULL,
			minutes    INTEGER NOT NULL CHECK (minutes > 0),
			created_at TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_container ON tasks(project_id, phase_id, sort_order);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_project_phases_order ON project_phases(project_id, sort_order);
		CREATE INDEX IF NOT EXISTS idx_recipe_phases_order ON recipe_phases(recipe_id, sort_order);
		CREATE INDEX IF NOT EXISTS idx_recipe_tasks_order ON recipe_tasks(phase_id, sort_order);
		CREATE INDEX IF NOT EXISTS idx_deps_blocked ON task_dependencies(blocked_id);
		CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id);
		CREATE INDEX IF NOT EXISTS idx_time_entries_task ON time_entries(task_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
