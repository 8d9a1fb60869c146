// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/pairchat/pairchat/internal/domain"
)

// Repository defines the interface for persisting users, sessions, friends,
// messages, and presence records.
type Repository interface {
	// GetUser retrieves a user by id. Returns (nil, nil) when not found.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByAccessCode retrieves a user by access code. With fold set the
	// lookup is case-insensitive. Returns (nil, nil) when not found.
	GetUserByAccessCode(ctx context.Context, code string, fold bool) (*domain.User, error)

	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, user *domain.User) error

	// UpdateUser overwrites the mutable fields of a user record.
	UpdateUser(ctx context.Context, user *domain.User) error

	// SetAppLocked updates only the app_locked flag for a user.
	SetAppLocked(ctx context.Context, userID string, locked bool) error

	// ListUsers returns all users, for the admin panel.
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// DeleteUser removes a user and all dependent rows.
	DeleteUser(ctx context.Context, userID string) error

	// CreateSession persists a login session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by token. Returns (nil, nil) when not found.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	// DeleteSession removes a session by token.
	DeleteSession(ctx context.Context, token string) error

	// DeleteInactiveSessions removes sessions whose user's presence last_seen
	// is older than the cutoff, and returns how many were removed.
	DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error)

	// CreateFriendRequest inserts a pending friend request.
	CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) error

	// GetFriendRequest retrieves a request by id. Returns (nil, nil) when not found.
	GetFriendRequest(ctx context.Context, id string) (*domain.FriendRequest, error)

	// IncomingFriendRequests returns pending requests addressed to a user,
	// newest first, with sender profiles populated.
	IncomingFriendRequests(ctx context.Context, recipientID string) ([]*domain.FriendRequest, error)

	// DeleteFriendRequest removes a request by id.
	DeleteFriendRequest(ctx context.Context, id string) error

	// AddFriendship records the friendship in both directions.
	AddFriendship(ctx context.Context, userID, friendID string) error

	// AreFriends reports whether two users are friends.
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)

	// ListFriends returns the profiles of a user's friends.
	ListFriends(ctx context.Context, userID string) ([]domain.Profile, error)

	// CreateMessage persists a message.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// ConversationMessages returns the full history between two users,
	// ordered by created_at ascending.
	ConversationMessages(ctx context.Context, userID, friendID string) ([]domain.Message, error)

	// UpsertPresence records a heartbeat for a user. last_seen never moves
	// backwards.
	UpsertPresence(ctx context.Context, userID, activeChatWith string, seenAt time.Time) error

	// GetPresence retrieves a user's presence record. Returns (nil, nil) when
	// no heartbeat has been recorded.
	GetPresence(ctx context.Context, userID string) (*domain.Presence, error)

	// ClearStaleActiveChats clears active_chat_with pointers whose last_seen
	// is older than the cutoff, and returns how many were cleared.
	ClearStaleActiveChats(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
