package chat

import (
	"sort"

	"github.com/pairchat/pairchat/internal/domain"
)

// Entry is one slot in the reconciled message sequence: either a confirmed
// server message or a pending optimistic send awaiting confirmation.
type Entry struct {
	Pending bool
	Message domain.Message
}

// Reconciler merges messages arriving via the realtime channel, via periodic
// polling, and via optimistic local echo into one sequence ordered by
// created_at ascending and unique by id. The transport provides no ordering
// guarantees; the reconciler tolerates duplicate and out-of-order delivery
// by id-based deduplication and timestamp sorting.
type Reconciler struct {
	entries []Entry
	seen    map[string]struct{}
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{seen: make(map[string]struct{})}
}

// Replace discards the sequence and installs the fetched history, used when
// a conversation is opened.
func (r *Reconciler) Replace(history []domain.Message) {
	r.entries = make([]Entry, 0, len(history))
	r.seen = make(map[string]struct{}, len(history))
	for _, msg := range history {
		if _, dup := r.seen[msg.ID]; dup {
			continue
		}
		r.entries = append(r.entries, Entry{Message: msg})
		r.seen[msg.ID] = struct{}{}
	}
	r.sortEntries()
}

// AppendPending appends an optimistic placeholder carrying a locally
// generated temporary id and synthetic created_at.
func (r *Reconciler) AppendPending(msg domain.Message) {
	if _, dup := r.seen[msg.ID]; dup {
		return
	}
	r.entries = append(r.entries, Entry{Pending: true, Message: msg})
	r.seen[msg.ID] = struct{}{}
}

// Confirm replaces the first pending entry one-for-one with the
// server-confirmed message; the sequence length is unchanged across the
// swap. If the confirmed message already arrived through another path, the
// pending entry is removed instead, never duplicated.
func (r *Reconciler) Confirm(msg domain.Message) {
	idx := -1
	for i := range r.entries {
		if r.entries[i].Pending {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Nothing pending: treat as a plain inbound message.
		r.Apply(msg)
		return
	}

	delete(r.seen, r.entries[idx].Message.ID)

	if _, dup := r.seen[msg.ID]; dup {
		r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
		return
	}

	r.entries[idx] = Entry{Message: msg}
	r.seen[msg.ID] = struct{}{}
	r.sortEntries()
}

// Apply adds a single inbound message, typically from a realtime insert
// event. Applying the same id more than once is a no-op.
func (r *Reconciler) Apply(msg domain.Message) bool {
	if _, dup := r.seen[msg.ID]; dup {
		return false
	}
	r.entries = append(r.entries, Entry{Message: msg})
	r.seen[msg.ID] = struct{}{}
	r.sortEntries()
	return true
}

// Merge folds a polled history into the sequence: messages with unseen ids
// are appended and the sequence re-sorted. This is the correctness backstop
// for realtime delivery gaps. Returns how many messages were added.
func (r *Reconciler) Merge(history []domain.Message) int {
	added := 0
	for _, msg := range history {
		if _, dup := r.seen[msg.ID]; dup {
			continue
		}
		r.entries = append(r.entries, Entry{Message: msg})
		r.seen[msg.ID] = struct{}{}
		added++
	}
	if added > 0 {
		r.sortEntries()
	}
	return added
}

// Messages returns the reconciled sequence in order. Pending and confirmed
// entries collapse into one display representation.
func (r *Reconciler) Messages() []domain.Message {
	out := make([]domain.Message, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Message
	}
	return out
}

// Len returns the number of entries in the sequence.
func (r *Reconciler) Len() int {
	return len(r.entries)
}

// HasPending reports whether any optimistic entry is still unconfirmed.
func (r *Reconciler) HasPending() bool {
	for _, e := range r.entries {
		if e.Pending {
			return true
		}
	}
	return false
}

func (r *Reconciler) sortEntries() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i].Message, r.entries[j].Message
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
