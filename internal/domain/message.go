package domain

import (
	"time"
)

// MessageKind describes the payload type of a message.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindSticker MessageKind = "sticker"
)

// Valid reports whether the kind is one of the supported payload types.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindSticker:
		return true
	}
	return false
}

// Message is a single direct message between two users. Messages are created
// by the sender and immutable thereafter.
type Message struct {
	ID            string      `json:"id"`
	SenderID      string      `json:"sender_id"`
	RecipientID   string      `json:"recipient_id"`
	Content       string      `json:"content"`
	Kind          MessageKind `json:"kind"`
	AttachmentRef string      `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Between reports whether the message belongs to the conversation between
// the two given users, in either direction.
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) ||
		(m.SenderID == b && m.RecipientID == a)
}
