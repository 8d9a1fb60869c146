package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pairchat/pairchat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		access_code TEXT NOT NULL UNIQUE,
		avatar_url TEXT,
		password_hash TEXT,
		lock_password_hash TEXT,
		app_locked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS friend_requests (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(sender_id, recipient_id)
	);
	CREATE INDEX IF NOT EXISTS idx_friend_requests_recipient ON friend_requests(recipient_id);

	CREATE TABLE IF NOT EXISTS friendships (
		user_id TEXT NOT NULL,
		friend_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, friend_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL,
		attachment_ref TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, created_at);

	CREATE TABLE IF NOT EXISTS presence (
		user_id TEXT PRIMARY KEY,
		last_seen INTEGER NOT NULL,
		active_chat_with TEXT
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, access_code, avatar_url, password_hash, lock_password_hash, app_locked, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var avatarURL, passwordHash, lockHash sql.NullString
	var appLocked int
	var createdAt, updatedAt int64

	err := row.Scan(
		&user.ID, &user.Name, &user.AccessCode, &avatarURL,
		&passwordHash, &lockHash, &appLocked, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.AvatarURL = avatarURL.String
	user.PasswordHash = passwordHash.String
	user.LockPasswordHash = lockHash.String
	user.AppLocked = appLocked != 0
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByAccessCode retrieves a user by access code.
func (s *SQLiteStore) GetUserByAccessCode(ctx context.Context, code string, fold bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE access_code = ?`
	if fold {
		query = `SELECT ` + userColumns + ` FROM users WHERE access_code = ? COLLATE NOCASE`
	}
	return scanUser(s.db.QueryRowContext(ctx, query, code))
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, name, access_code, avatar_url, password_hash, lock_password_hash, app_locked, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.AccessCode,
		nullable(user.AvatarURL), nullable(user.PasswordHash), nullable(user.LockPasswordHash),
		boolToInt(user.AppLocked), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser overwrites the mutable fields of a user record.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
	UPDATE users SET
		name = ?, access_code = ?, avatar_url = ?,
		password_hash = ?, lock_password_hash = ?, app_locked = ?, updated_at = ?
	WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		user.Name, user.AccessCode, nullable(user.AvatarURL),
		nullable(user.PasswordHash), nullable(user.LockPasswordHash),
		boolToInt(user.AppLocked), time.Now().Unix(), user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// SetAppLocked updates only the app_locked flag for a user.
func (s *SQLiteStore) SetAppLocked(ctx context.Context, userID string, locked bool) error {
	query := `UPDATE users SET app_locked = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, boolToInt(locked), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("set app_locked: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("SetAppLocked affected 0 rows", "user_id", userID)
	}
	return nil
}

// ListUsers returns all users.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer closeRows(rows, "users")

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user and all dependent rows.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM friend_requests WHERE sender_id = ? OR recipient_id = ?`,
		`DELETE FROM friendships WHERE user_id = ? OR friend_id = ?`,
		`DELETE FROM messages WHERE sender_id = ? OR recipient_id = ?`,
		`DELETE FROM presence WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	}
	args := [][]any{
		{userID},
		{userID, userID},
		{userID, userID},
		{userID, userID},
		{userID},
		{userID},
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, args[i]...); err != nil {
			return fmt.Errorf("delete user rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

// CreateSession persists a login session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, session.Token, session.UserID, session.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	query := `SELECT token, user_id, created_at FROM sessions WHERE token = ?`
	row := s.db.QueryRowContext(ctx, query, token)

	var session domain.Session
	var createdAt int64
	err := row.Scan(&session.Token, &session.UserID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteSession removes a session by token.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteInactiveSessions removes sessions whose user's presence last_seen is
// older than the cutoff. Sessions for users with no presence row at all are
// kept: they have not completed a first heartbeat yet.
func (s *SQLiteStore) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
	DELETE FROM sessions WHERE user_id IN (
		SELECT user_id FROM presence WHERE last_seen < ?
	)`
	result, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete inactive sessions: %w", err)
	}
	return result.RowsAffected()
}

// CreateFriendRequest inserts a pending friend request.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) error {
	query := `INSERT INTO friend_requests (id, sender_id, recipient_id, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, req.ID, req.SenderID, req.RecipientID, req.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create friend request: %w", err)
	}
	return nil
}

// GetFriendRequest retrieves a request by id.
func (s *SQLiteStore) GetFriendRequest(ctx context.Context, id string) (*domain.FriendRequest, error) {
	query := `SELECT id, sender_id, recipient_id, created_at FROM friend_requests WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var req domain.FriendRequest
	var createdAt int64
	err := row.Scan(&req.ID, &req.SenderID, &req.RecipientID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan friend request row: %w", err)
	}

	req.CreatedAt = time.Unix(createdAt, 0)
	return &req, nil
}

// IncomingFriendRequests returns pending requests addressed to a user.
func (s *SQLiteStore) IncomingFriendRequests(ctx context.Context, recipientID string) ([]*domain.FriendRequest, error) {
	query := `
	SELECT r.id, r.sender_id, r.recipient_id, r.created_at, u.name, u.avatar_url
	FROM friend_requests r
	JOIN users u ON u.id = r.sender_id
	WHERE r.recipient_id = ?
	ORDER BY r.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query incoming friend requests: %w", err)
	}
	defer closeRows(rows, "friend requests")

	var requests []*domain.FriendRequest
	for rows.Next() {
		var req domain.FriendRequest
		var createdAt int64
		var name string
		var avatarURL sql.NullString

		if err := rows.Scan(&req.ID, &req.SenderID, &req.RecipientID, &createdAt, &name, &avatarURL); err != nil {
			return nil, fmt.Errorf("scan friend request row: %w", err)
		}

		req.CreatedAt = time.Unix(createdAt, 0)
		req.Sender = &domain.Profile{ID: req.SenderID, Name: name, AvatarURL: avatarURL.String}
		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return requests, nil
}

// DeleteFriendRequest removes a request by id.
func (s *SQLiteStore) DeleteFriendRequest(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM friend_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

// AddFriendship records the friendship in both directions.
func (s *SQLiteStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	query := `
	INSERT INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?), (?, ?, ?)
	ON CONFLICT(user_id, friend_id) DO NOTHING`

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, query, userID, friendID, now, friendID, userID, now)
	if err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	return nil
}

// AreFriends reports whether two users are friends.
func (s *SQLiteStore) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	query := `SELECT COUNT(1) FROM friendships WHERE user_id = ? AND friend_id = ?`
	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, friendID).Scan(&count); err != nil {
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return count > 0, nil
}

// ListFriends returns the profiles of a user's friends.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID string) ([]domain.Profile, error) {
	query := `
	SELECT u.id, u.name, u.avatar_url
	FROM friendships f
	JOIN users u ON u.id = f.friend_id
	WHERE f.user_id = ?
	ORDER BY u.name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer closeRows(rows, "friends")

	var friends []domain.Profile
	for rows.Next() {
		var p domain.Profile
		var avatarURL sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &avatarURL); err != nil {
			return nil, fmt.Errorf("scan friend row: %w", err)
		}
		p.AvatarURL = avatarURL.String
		friends = append(friends, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return friends, nil
}

// CreateMessage persists a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	query := `
	INSERT INTO messages (id, sender_id, recipient_id, content, kind, attachment_ref, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.RecipientID, msg.Content,
		string(msg.Kind), nullable(msg.AttachmentRef), msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ConversationMessages returns the full history between two users.
func (s *SQLiteStore) ConversationMessages(ctx context.Context, userID, friendID string) ([]domain.Message, error) {
	query := `
	SELECT id, sender_id, recipient_id, content, kind, attachment_ref, created_at
	FROM messages
	WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
	ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID, friendID, friendID, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var attachmentRef sql.NullString
		var kind string
		var createdAt int64

		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &kind, &attachmentRef, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Kind = domain.MessageKind(kind)
		msg.AttachmentRef = attachmentRef.String
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// UpsertPresence records a heartbeat for a user. A heartbeat carrying an
// older timestamp than the stored one updates active_chat_with but never
// regresses last_seen.
func (s *SQLiteStore) UpsertPresence(ctx context.Context, userID, activeChatWith string, seenAt time.Time) error {
	query := `
	INSERT INTO presence (user_id, last_seen, active_chat_with) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		last_seen = MAX(presence.last_seen, excluded.last_seen),
		active_chat_with = excluded.active_chat_with`

	_, err := s.db.ExecContext(ctx, query, userID, seenAt.UnixMilli(), nullable(activeChatWith))
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// GetPresence retrieves a user's presence record.
func (s *SQLiteStore) GetPresence(ctx context.Context, userID string) (*domain.Presence, error) {
	query := `SELECT user_id, last_seen, active_chat_with FROM presence WHERE user_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var p domain.Presence
	var lastSeen int64
	var activeChatWith sql.NullString
	err := row.Scan(&p.UserID, &lastSeen, &activeChatWith)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan presence row: %w", err)
	}

	p.LastSeen = time.UnixMilli(lastSeen)
	p.ActiveChatWith = activeChatWith.String
	return &p, nil
}

// ClearStaleActiveChats clears active_chat_with pointers for stale records.
func (s *SQLiteStore) ClearStaleActiveChats(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE presence SET active_chat_with = NULL WHERE active_chat_with IS NOT NULL AND last_seen < ?`
	result, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("clear stale active chats: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "rows", what, "error", err)
	}
}
