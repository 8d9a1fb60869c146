// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"strings"
	"time"
)

// IsSQLiteBusyError reports whether the error is a SQLITE_BUSY error,
// raised when the database is locked by another connection.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError reports whether the error is a "database is locked"
// error, the other form SQLite concurrency failures take.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports whether the error is either concurrency
// error. Both typically warrant retry logic.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// WithBusyRetry runs fn, retrying with exponential backoff when it fails
// with a SQLite concurrency error. Non-conflict errors and context
// cancellation return immediately.
func WithBusyRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsSQLiteConflictError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(baseDelay * time.Duration(1<<i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
