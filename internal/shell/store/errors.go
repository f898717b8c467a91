// Package store persists provisioning records and webhook deliveries in SQLite.
package store

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateID       = errors.New("duplicate provision id")
	ErrDuplicateOrderRef = errors.New("order already has a provision record")
	ErrConnectionFailed  = errors.New("database unavailable")
	ErrMigrationFailed   = errors.New("schema migration failed")
	ErrInvalidData       = errors.New("stored data is malformed")
	ErrTxFailed          = errors.New("transaction failed")
)

// StoreError names the failing operation and the row it touched.
// Err is one of the sentinels above or the driver error.
type StoreError struct {
	Op      string
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	for _, part := range []string{e.Entity, e.ID} {
		if part != "" {
			b.WriteByte(' ')
			b.WriteString(part)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError. entity and id may be empty.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
