package chat

import (
	"context"

	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
)

// Outbound is a message payload to be sent.
type Outbound struct {
	RecipientID   string             `json:"recipient_id"`
	Content       string             `json:"content"`
	Kind          domain.MessageKind `json:"kind"`
	AttachmentRef string             `json:"attachment_ref,omitempty"`
}

// Gateway is the remote data service a session coordinates with. Identity is
// carried by the transport (session cookie), never passed explicitly.
type Gateway interface {
	// History returns the full ordered message history with a friend.
	History(ctx context.Context, friendID string) ([]domain.Message, error)

	// Send persists a message and returns it with the server-assigned id
	// and timestamp.
	Send(ctx context.Context, out Outbound) (domain.Message, error)

	// Heartbeat upserts the caller's presence record.
	Heartbeat(ctx context.Context, activeChatWith string) error

	// Presence returns a user's presence record, or nil when none exists.
	Presence(ctx context.Context, userID string) (*domain.Presence, error)

	// Connect opens a realtime channel subscription.
	Connect(ctx context.Context) (Subscription, error)
}

// Subscription is one realtime channel connection.
type Subscription interface {
	// Events returns the stream of server frames; closed when the
	// connection ends.
	Events() <-chan realtime.Frame

	// Subscribe opens a named-channel subscription, optionally filtered by
	// column equality on a table.
	Subscribe(channel, table, column, value string) error

	// Track announces presence metadata for this connection.
	Track(meta realtime.PresenceMeta) error

	// Untrack withdraws from the presence registry.
	Untrack() error

	// Close untracks and closes the connection.
	Close() error
}
