package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	conflictAttempts = 3
	conflictBackoff  = 100 * time.Millisecond
)

// IsConflict reports whether err is a SQLite busy or locked error.
// These clear up once the competing writer finishes.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryConflicts runs op, retrying with exponential backoff only while it
// fails with a conflict.
func retryConflicts(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = conflictBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("sqlite conflict, retrying", "op", what, "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, conflictAttempts-1), ctx))
}
