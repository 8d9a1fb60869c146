package domain

import (
	"time"
)

// Presence is a user's heartbeat record: when they were last seen and which
// conversation they currently have open. Each row is written only by its own
// user's heartbeat; everyone else reads it.
type Presence struct {
	UserID         string    `json:"user_id"`
	LastSeen       time.Time `json:"last_seen"`
	ActiveChatWith string    `json:"active_chat_with,omitempty"`
}
