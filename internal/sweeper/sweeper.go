// Package sweeper runs the background worker that expires inactive sessions
// and clears stale active-chat pointers.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/pairchat/pairchat/internal/shared"
	"github.com/pairchat/pairchat/internal/store"
)

const (
	sweepInterval = 5 * time.Minute

	// staleChatAfter bounds how long an active_chat_with pointer survives
	// without a heartbeat before it is treated as abandoned.
	staleChatAfter = 30 * time.Second

	retryAttempts  = 3
	retryBaseDelay = 100 * time.Millisecond
)

// Start runs a background goroutine that periodically deletes sessions whose
// owners have been inactive longer than ttl and clears active-chat pointers
// left behind by vanished clients. It returns when ctx is canceled.
func Start(ctx context.Context, repo store.Repository, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, ttl time.Duration) {
	var deleted int64
	err := shared.WithBusyRetry(ctx, retryAttempts, retryBaseDelay, func() error {
		var err error
		deleted, err = repo.DeleteInactiveSessions(ctx, time.Now().Add(-ttl))
		return err
	})
	if err != nil {
		slog.Error("sweeper failed to delete inactive sessions", "error", err)
	} else if deleted > 0 {
		slog.Info("sweeper deleted inactive sessions", "count", deleted)
	}

	var cleared int64
	err = shared.WithBusyRetry(ctx, retryAttempts, retryBaseDelay, func() error {
		var err error
		cleared, err = repo.ClearStaleActiveChats(ctx, time.Now().Add(-staleChatAfter))
		return err
	})
	if err != nil {
		slog.Error("sweeper failed to clear stale active chats", "error", err)
	} else if cleared > 0 {
		slog.Debug("sweeper cleared stale active chats", "count", cleared)
	}
}
