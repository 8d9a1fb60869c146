package domain

import (
	"time"
)

// FriendRequest is a pending request from one user to another. Accepting it
// creates the friendship in both directions and deletes the request.
type FriendRequest struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Sender profile, populated on reads for display.
	Sender *Profile `json:"sender,omitempty"`
}
