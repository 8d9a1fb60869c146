package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Heartbeat periodically reports "I am alive, and this is who I'm viewing"
// to the presence store. It fires once immediately on start and once
// immediately whenever the partner changes, so status propagates promptly on
// a conversation switch rather than waiting out a full interval.
//
// A failed send is dropped silently; the next tick retries. There is no
// backlog and no backoff — staleness self-heals within one interval.
type Heartbeat struct {
	send     func(ctx context.Context, activeChatWith string) error
	interval time.Duration

	mu      sync.Mutex
	partner string
	kick    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHeartbeat creates a heartbeat emitter. send posts the heartbeat to the
// presence store; the caller's identity is implicit in the transport.
func NewHeartbeat(send func(ctx context.Context, activeChatWith string) error, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		send:     send,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Start begins emitting, firing once immediately. Must be called once.
func (h *Heartbeat) Start(ctx context.Context, partner string) {
	h.mu.Lock()
	h.partner = partner
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(ctx)
}

// SetPartner updates the reported active chat and fires immediately.
func (h *Heartbeat) SetPartner(partner string) {
	h.mu.Lock()
	h.partner = partner
	h.mu.Unlock()

	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// Stop halts the emitter. No timers are left running after Stop returns.
func (h *Heartbeat) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.emit(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.kick:
			h.emit(ctx)
		case <-ticker.C:
			h.emit(ctx)
		}
	}
}

func (h *Heartbeat) emit(ctx context.Context) {
	h.mu.Lock()
	partner := h.partner
	h.mu.Unlock()

	if err := h.send(ctx, partner); err != nil && ctx.Err() == nil {
		slog.Debug("heartbeat dropped", "error", err)
	}
}
