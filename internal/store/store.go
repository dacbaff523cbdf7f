// Package store persists projects, phases, recipes, tasks, dependency
// edges, milestones and time entries in SQLite.
//
// Every mutation runs inside RunInTx, which pins a dedicated connection
// and starts the transaction with BEGIN IMMEDIATE so read-modify-write
// sequences (reindexing, cycle checks, batch invoicing) are serialized
// against other writers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var so tests can pin timestamps.
var timeNow = time.Now

// Now returns the current time in the format stored in timestamp columns.
func Now() string {
	return FormatTime(timeNow())
}

// SetClock pins the timestamp source and returns a restore func. Tests
// use it to compare stamps; it is not safe for concurrent use.
func SetClock(t time.Time) func() {
	prev := timeNow
	timeNow = func() time.Time { return t }
	return func() { timeNow = prev }
}

// FormatTime renders t the way timestamp columns store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Config controls where the database lives and how busy locks are handled.
type Config struct {
	DataDir string
	// File is the database file name inside DataDir.
	File string
	// BusyTimeout is how long SQLite itself waits on a locked database.
	BusyTimeout time.Duration
	// BeginRetryMaxElapsed bounds the backoff loop around BEGIN IMMEDIATE.
	BeginRetryMaxElapsed time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:              filepath.Join(home, ".agencyops"),
		File:                 "agencyops.db",
		BusyTimeout:          5 * time.Second,
		BeginRetryMaxElapsed: 2 * time.Second,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed persistence layer.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// storeHooks lets tests inject failures into individual statements and
// into transaction boundaries.
type storeHooks struct {
	exec   func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query  func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	begin  func(ctx context.Context, conn *sql.Conn) error
	commit func(ctx context.Context, conn *sql.Conn) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		query: func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.QueryContext(ctx, query, args...)
		},
		begin: func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
			return err
		},
		commit: func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, "COMMIT")
			return err
		},
	}
}

// Open creates the data directory if needed, opens SQLite in WAL mode with
// foreign keys enforced, and runs migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.File == "" {
		cfg.File = DefaultConfig().File
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", dsn(filepath.Join(cfg.DataDir, cfg.File), cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// dsn puts the pragmas on the connection string so every pooled
// connection gets them, not just the first one.
func dsn(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = DefaultConfig().BusyTimeout
	}
	pragmas := []string{
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()),
		"synchronous(NORMAL)",
		"foreign_keys(1)",
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Transactions ────────────────────────────────────────────────────────────

// Tx is an open write transaction on a dedicated connection. It is only
// valid inside the RunInTx callback.
type Tx struct {
	conn *sql.Conn
	s    *Store
}

// RunInTx runs fn inside one IMMEDIATE transaction. Any error returned by
// fn, or a panic, rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := s.beginWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&Tx{conn: conn, s: s}); err != nil {
		return err
	}

	if err := s.hooks.commit(ctx, conn); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	committed = true
	return nil
}

// beginWithRetry retries BEGIN IMMEDIATE while another writer holds the
// lock past SQLite's own busy timeout.
func (s *Store) beginWithRetry(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = s.cfg.BeginRetryMaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = DefaultConfig().BeginRetryMaxElapsed
	}

	return backoff.Retry(func() error {
		err := s.hooks.begin(ctx, conn)
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

func (tx *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.s.hooks.exec(ctx, tx.conn, query, args...)
}

func (tx *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.s.hooks.query(ctx, tx.conn, query, args...)
}

// queryRow runs a single-row query through the query hook.
func (tx *Tx) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	rows, err := tx.query(ctx, query, args...)
	return &singleRow{rows: rows, err: err}
}

type singleRow struct {
	rows *sql.Rows
	err  error
}

func (r *singleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	return r.rows.Close()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// requireAffected turns a zero-row update into ErrNotFound.
func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
