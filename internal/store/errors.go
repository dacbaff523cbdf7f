package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// wrapDBError converts sql.ErrNoRows into a NotFoundError and adds the
// operation name to anything else.
func wrapDBError(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		return notFound(entity, id)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
