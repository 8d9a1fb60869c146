package domain

import (
	"time"
)

// Session is an opaque server-side login session, referenced by the token
// stored in the browser cookie.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}
