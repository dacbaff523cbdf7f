package store

import (
	"context"
	"database/sql"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailExecWhen makes every statement for which match returns true fail
// with err. Passing a nil match restores the default behaviour.
func (s *Store) FailExecWhen(match func(query string) bool, err error) {
	if match == nil {
		s.hooks.exec = defaultStoreHooks().exec
		return
	}
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if match(query) {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// SetBeginHook replaces BEGIN IMMEDIATE for retry tests.
func (s *Store) SetBeginHook(fn func(ctx context.Context, conn *sql.Conn) error) {
	s.hooks.begin = fn
}
