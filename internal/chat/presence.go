// Package chat implements the client-side core of a conversation: the
// heartbeat emitter, the presence resolver, the message reconciler, and the
// session that coordinates them against the server.
package chat

import (
	"time"

	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
)

// Status is the resolved presence of the active conversation partner.
type Status int

const (
	// StatusUnknown is the initial state after selecting a partner, before
	// the first resolution. It renders identically to offline.
	StatusUnknown Status = iota
	StatusOffline
	StatusOnline
)

// Online reports whether the status renders as online.
func (s Status) Online() bool {
	return s == StatusOnline
}

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Resolver reconciles the two independent online signals for the active
// partner — the realtime presence registry and the polled presence store —
// into a single status.
//
// The policy is deliberately biased toward online: the partner is online if
// either signal says so, and offline only when both do. The registry is fast
// but can miss events around reconnects; the poll is slow but durable.
// Taking their OR avoids false offline flashes at the cost of occasionally
// reporting a disconnected partner online for up to one poll interval.
type Resolver struct {
	selfID     string
	partnerID  string
	staleAfter time.Duration
	now        func() time.Time

	registryOnline bool
	pollOnline     bool
	maxLastSeen    time.Time
	status         Status
}

// NewResolver creates a resolver for the local user. staleAfter is the age
// beyond which a heartbeat no longer counts as online.
func NewResolver(selfID string, staleAfter time.Duration, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		selfID:     selfID,
		staleAfter: staleAfter,
		now:        now,
		status:     StatusUnknown,
	}
}

// SetPartner switches the tracked partner and resets resolution to unknown.
// No state carries over: a previously online partner never leaks an online
// status onto the new one.
func (r *Resolver) SetPartner(partnerID string) {
	r.partnerID = partnerID
	r.registryOnline = false
	r.pollOnline = false
	r.maxLastSeen = time.Time{}
	r.status = StatusUnknown
}

// Partner returns the currently tracked partner id.
func (r *Resolver) Partner() string {
	return r.partnerID
}

// ApplyRegistry feeds a presence registry snapshot (delivered on sync, join,
// and leave events) and returns the re-resolved status. The partner is
// provisionally online when any registry entry carries their id.
func (r *Resolver) ApplyRegistry(state []realtime.PresenceMeta) Status {
	if r.partnerID == "" {
		return r.status
	}

	online := false
	for _, meta := range state {
		if meta.UserID == r.partnerID {
			online = true
			break
		}
	}
	r.registryOnline = online
	return r.resolve()
}

// ApplyPoll feeds a presence-store poll result and returns the re-resolved
// status. A nil record means no heartbeat has been observed. The partner is
// online when their heartbeat is fresh, or when their active_chat_with
// points back at us — the partner may have just opened the conversation
// before their next heartbeat interval elapsed.
func (r *Resolver) ApplyPoll(p *domain.Presence) Status {
	if r.partnerID == "" {
		return r.status
	}

	if p == nil {
		r.pollOnline = false
		return r.resolve()
	}

	// last_seen is monotonically non-decreasing per user; a poll result that
	// arrives out of order must not regress the inference.
	if p.LastSeen.After(r.maxLastSeen) {
		r.maxLastSeen = p.LastSeen
	}

	fresh := r.now().Sub(r.maxLastSeen) < r.staleAfter
	chattingWithMe := p.ActiveChatWith != "" && p.ActiveChatWith == r.selfID
	r.pollOnline = fresh || chattingWithMe
	return r.resolve()
}

// Status returns the current resolved status.
func (r *Resolver) Status() Status {
	return r.status
}

func (r *Resolver) resolve() Status {
	if r.registryOnline || r.pollOnline {
		r.status = StatusOnline
	} else {
		r.status = StatusOffline
	}
	return r.status
}
