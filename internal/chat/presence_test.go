package chat

import (
	"testing"
	"time"

	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolver_RegistryOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	status := r.ApplyRegistry([]realtime.PresenceMeta{{UserID: "bob"}})
	if status != StatusOnline {
		t.Errorf("Expected online from registry, got %v", status)
	}

	status = r.ApplyRegistry(nil)
	if status != StatusOffline {
		t.Errorf("Expected offline after registry leave, got %v", status)
	}
}

func TestResolver_FreshPoll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	status := r.ApplyPoll(&domain.Presence{
		UserID:   "bob",
		LastSeen: now.Add(-10 * time.Second),
	})
	if status != StatusOnline {
		t.Errorf("Expected online for 10s-old heartbeat, got %v", status)
	}
}

func TestResolver_StalePoll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	status := r.ApplyPoll(&domain.Presence{
		UserID:   "bob",
		LastSeen: now.Add(-45 * time.Second),
	})
	if status != StatusOffline {
		t.Errorf("Expected offline for 45s-old heartbeat, got %v", status)
	}
}

func TestResolver_ActiveChatOverridesStaleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	// Stale heartbeat, but bob has this conversation open.
	status := r.ApplyPoll(&domain.Presence{
		UserID:         "bob",
		LastSeen:       now.Add(-45 * time.Second),
		ActiveChatWith: "alice",
	})
	if status != StatusOnline {
		t.Errorf("Expected online when partner's active chat points at us, got %v", status)
	}

	// Pointing at someone else does not count.
	status = r.ApplyPoll(&domain.Presence{
		UserID:         "bob",
		LastSeen:       now.Add(-45 * time.Second),
		ActiveChatWith: "carol",
	})
	if status != StatusOffline {
		t.Errorf("Expected offline when active chat points elsewhere, got %v", status)
	}
}

func TestResolver_OrBias(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	// Registry says online, poll says offline: online wins.
	r.ApplyRegistry([]realtime.PresenceMeta{{UserID: "bob"}})
	status := r.ApplyPoll(&domain.Presence{UserID: "bob", LastSeen: now.Add(-time.Minute)})
	if status != StatusOnline {
		t.Errorf("Expected online when registry disagrees with stale poll, got %v", status)
	}

	// Registry says offline, poll says online: still online.
	r.ApplyRegistry(nil)
	status = r.ApplyPoll(&domain.Presence{UserID: "bob", LastSeen: now.Add(-time.Second)})
	if status != StatusOnline {
		t.Errorf("Expected online when fresh poll disagrees with registry, got %v", status)
	}

	// Both offline: offline.
	status = r.ApplyPoll(&domain.Presence{UserID: "bob", LastSeen: now.Add(-time.Minute)})
	if status != StatusOffline {
		t.Errorf("Expected offline when both signals agree, got %v", status)
	}
}

func TestResolver_NilPoll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	status := r.ApplyPoll(nil)
	if status != StatusOffline {
		t.Errorf("Expected offline for absent presence record, got %v", status)
	}
}

func TestResolver_LastSeenNeverRegresses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	r.ApplyPoll(&domain.Presence{UserID: "bob", LastSeen: now.Add(-5 * time.Second)})

	// An out-of-order poll result with an older timestamp must not flip the
	// partner offline.
	status := r.ApplyPoll(&domain.Presence{UserID: "bob", LastSeen: now.Add(-2 * time.Minute)})
	if status != StatusOnline {
		t.Errorf("Expected online to survive out-of-order poll, got %v", status)
	}
}

func TestResolver_SetPartnerResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	r.ApplyRegistry([]realtime.PresenceMeta{{UserID: "bob"}})
	if r.Status() != StatusOnline {
		t.Fatalf("Expected online before switch, got %v", r.Status())
	}

	r.SetPartner("carol")
	if r.Status() != StatusUnknown {
		t.Errorf("Expected unknown after partner switch, got %v", r.Status())
	}
	if StatusUnknown.Online() {
		t.Error("Expected unknown to render as not online")
	}
}

func TestResolver_RegistryMatchesOnlyPartner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver("alice", 30*time.Second, fixedNow(now))
	r.SetPartner("bob")

	status := r.ApplyRegistry([]realtime.PresenceMeta{{UserID: "carol"}, {UserID: "alice"}})
	if status != StatusOffline {
		t.Errorf("Expected offline when partner absent from registry, got %v", status)
	}
}
