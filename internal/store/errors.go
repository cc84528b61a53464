// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors returned by store operations. Callers classify failures
// with errors.Is; the store never terminates the process on its own.
var (
	// ErrNotFound indicates the referenced run does not exist.
	ErrNotFound = errors.New("store: run not found")

	// ErrInvalidStatusTransition indicates an attempt to move a run out of a
	// terminal status. The stored status is left unchanged.
	ErrInvalidStatusTransition = errors.New("store: invalid status transition")

	// ErrInvalidMetricValue indicates a non-finite metric value (NaN or ±Inf).
	ErrInvalidMetricValue = errors.New("store: invalid metric value")

	// ErrSchemaVersionMismatch indicates the on-disk schema is newer than this
	// build understands.
	ErrSchemaVersionMismatch = errors.New("store: schema version mismatch")

	// ErrStoreBusy indicates write contention persisted beyond the retry budget.
	ErrStoreBusy = errors.New("store: busy")

	// ErrStoreCorrupt indicates the backing file is unreadable as a database.
	ErrStoreCorrupt = errors.New("store: corrupt")
)

// codeError matches modernc.org/sqlite error types exposed by the driver.
type codeError interface {
	Code() int
}

// isBusy reports whether the supplied error is transient lock contention that
// is worth retrying. SQLITE_BUSY covers cross-process writer contention,
// SQLITE_LOCKED intra-connection table locks.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreBusy) {
		return true
	}
	var coder codeError
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case int(sqlite3.SQLITE_BUSY), int(sqlite3.SQLITE_LOCKED):
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// isCorrupt reports whether the supplied error indicates an unreadable or
// unparseable database file.
func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	var coder codeError
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case int(sqlite3.SQLITE_CORRUPT), int(sqlite3.SQLITE_NOTADB):
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

// classify maps driver-level failures onto the store taxonomy, preserving the
// underlying error for diagnostics. Errors that are already part of the
// taxonomy pass through untouched.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrInvalidMetricValue),
		errors.Is(err, ErrSchemaVersionMismatch),
		errors.Is(err, ErrStoreBusy),
		errors.Is(err, ErrStoreCorrupt):
		return err
	case isCorrupt(err):
		return fmt.Errorf("%s: %w: %v", op, ErrStoreCorrupt, err)
	case isBusy(err):
		return fmt.Errorf("%s: %w: %v", op, ErrStoreBusy, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
