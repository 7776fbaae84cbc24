package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidQuery is returned for malformed query predicates.
	ErrInvalidQuery = errors.New("invalid query")
)

// ErrorKind separates failures worth retrying from ones that need an operator.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindUnavailable covers transient failures: busy, locked, I/O, cancelled.
	KindUnavailable
	// KindConfiguration covers a store that is not set up for the query, such as
	// a missing table or column.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// StoreError wraps a driver failure with its classification.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// classify wraps err in a StoreError unless it is one of the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidQuery) {
		return err
	}

	kind := KindUnknown
	var sqliteErr sqlite3.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindUnavailable
	case errors.As(err, &sqliteErr):
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrCantOpen:
			kind = KindUnavailable
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return fmt.Errorf("%s: %w", op, ErrDuplicate)
			}
		case sqlite3.ErrError:
			msg := sqliteErr.Error()
			if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") || strings.Contains(msg, "no such function") {
				kind = KindConfiguration
			}
		}
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// KindOf reports the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsUnavailable reports whether err is transient and worth retrying.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// IsConfiguration reports whether err means the store needs provisioning.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}
