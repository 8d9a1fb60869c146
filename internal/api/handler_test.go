//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/avatars"
	"github.com/pairchat/pairchat/internal/config"
	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
	"github.com/pairchat/pairchat/internal/stickers"
	"github.com/pairchat/pairchat/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad input")

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "bad input" {
		t.Errorf("Expected error message, got %v", got)
	}
}

type testServer struct {
	repo   store.Repository
	hub    *realtime.Hub
	router chi.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	repo, err := store.NewSQLite(filepath.Join(dir, "api.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	avatarStore, err := avatars.NewStore(filepath.Join(dir, "avatars"))
	if err != nil {
		t.Fatalf("Failed to create avatar store: %v", err)
	}

	cfg := &config.Config{
		Port:       "8080",
		DBPath:     filepath.Join(dir, "api.db"),
		AvatarDir:  filepath.Join(dir, "avatars"),
		AdminCode:  "admin-code",
		SessionTTL: time.Hour,
		Sticker:    config.StickerConfig{BaseURL: "http://127.0.0.1:0", Limit: 10},
	}

	hub := realtime.NewHub()
	handler := NewHandler(repo, hub, cfg, stickers.NewService(cfg.Sticker), avatarStore)

	r := chi.NewRouter()
	r.Use(auth.Middleware(repo, cfg.SessionTTL))
	handler.RegisterRoutes(r)

	return &testServer{repo: repo, hub: hub, router: r}
}

func (ts *testServer) seedUser(t *testing.T, id, code, password string) {
	t.Helper()
	now := time.Now()
	user := &domain.User{ID: id, Name: "User " + id, AccessCode: code, CreatedAt: now, UpdatedAt: now}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		user.PasswordHash = hash
	}
	if err := ts.repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

// login performs a real login and returns the session cookie.
func (ts *testServer) login(t *testing.T, code, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"access_code": code, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("Expected a session cookie on login")
	return nil
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Rainbow-Fox-42", "hunter2")
	ts.seedUser(t, "ghost", "Ghost-Code-1", "")

	w := ts.do(t, http.MethodPost, "/api/login", map[string]string{"access_code": "nope", "password": "x"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unknown code, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/login", map[string]string{"access_code": "Rainbow-Fox-42", "password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}

	// A user without a password set cannot log in even with an empty guess.
	w = ts.do(t, http.MethodPost, "/api/login", map[string]string{"access_code": "Ghost-Code-1", "password": "x"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for passwordless user, got %d", w.Code)
	}
	var errBody map[string]string
	decodeBody(t, w, &errBody)
	if errBody["error"] != "password not set for this user" {
		t.Errorf("Expected explicit passwordless message, got %q", errBody["error"])
	}

	// Access code lookup falls back to case-insensitive.
	cookie := ts.login(t, "rainbow-fox-42", "hunter2")

	w = ts.do(t, http.MethodGet, "/api/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /api/me, got %d", w.Code)
	}
	var me struct {
		User struct {
			ID          string `json:"id"`
			HasPassword bool   `json:"has_password"`
		} `json:"user"`
	}
	decodeBody(t, w, &me)
	if me.User.ID != "alice" || !me.User.HasPassword {
		t.Errorf("Expected alice with has_password, got %+v", me.User)
	}

	// Login records an initial heartbeat.
	p, err := ts.repo.GetPresence(context.Background(), "alice")
	if err != nil || p == nil {
		t.Errorf("Expected presence recorded on login, got %+v (%v)", p, err)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/me", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without session, got %d", w.Code)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")
	ts.seedUser(t, "bob", "B-1", "pw")
	aliceCookie := ts.login(t, "A-1", "pw")
	bobCookie := ts.login(t, "B-1", "pw")

	// Self-befriending is rejected.
	w := ts.do(t, http.MethodPost, "/api/friend-requests", map[string]string{"recipient_id": "alice"}, aliceCookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for self request, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/friend-requests", map[string]string{"recipient_id": "nobody"}, aliceCookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown recipient, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/friend-requests", map[string]string{"recipient_id": "bob"}, aliceCookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for friend request, got %d: %s", w.Code, w.Body.String())
	}

	// Repeat is a conflict.
	w = ts.do(t, http.MethodPost, "/api/friend-requests", map[string]string{"recipient_id": "bob"}, aliceCookie)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate request, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/friend-requests/incoming", nil, bobCookie)
	var incoming struct {
		Requests []struct {
			ID     string `json:"id"`
			Sender struct {
				Name string `json:"name"`
			} `json:"sender"`
		} `json:"requests"`
	}
	decodeBody(t, w, &incoming)
	if len(incoming.Requests) != 1 || incoming.Requests[0].Sender.Name != "User alice" {
		t.Fatalf("Expected 1 incoming request from alice, got %+v", incoming.Requests)
	}
	reqID := incoming.Requests[0].ID

	// Only the recipient can act on the request.
	w = ts.do(t, http.MethodPost, "/api/friend-requests/"+reqID+"/accept", nil, aliceCookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for non-recipient accept, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/friend-requests/"+reqID+"/accept", nil, bobCookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for accept, got %d", w.Code)
	}

	for _, c := range []*http.Cookie{aliceCookie, bobCookie} {
		w = ts.do(t, http.MethodGet, "/api/friends", nil, c)
		var friends struct {
			Friends []domain.Profile `json:"friends"`
		}
		decodeBody(t, w, &friends)
		if len(friends.Friends) != 1 {
			t.Errorf("Expected 1 friend, got %+v", friends.Friends)
		}
	}

	// Accepting again 404s: the request is gone.
	w = ts.do(t, http.MethodPost, "/api/friend-requests/"+reqID+"/accept", nil, bobCookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for consumed request, got %d", w.Code)
	}

	// Re-requesting an existing friend conflicts.
	w = ts.do(t, http.MethodPost, "/api/friend-requests", map[string]string{"recipient_id": "bob"}, aliceCookie)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for already-friends, got %d", w.Code)
	}
}

func TestMessages(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")
	ts.seedUser(t, "bob", "B-1", "pw")
	aliceCookie := ts.login(t, "A-1", "pw")
	bobCookie := ts.login(t, "B-1", "pw")

	w := ts.do(t, http.MethodPost, "/api/messages", map[string]string{"recipient_id": "bob"}, aliceCookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty content, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/messages", map[string]string{"recipient_id": "bob", "content": "x", "kind": "video"}, aliceCookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid kind, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/messages", map[string]string{"recipient_id": "bob", "content": "hello"}, aliceCookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var posted struct {
		Message domain.Message `json:"message"`
	}
	decodeBody(t, w, &posted)
	if posted.Message.SenderID != "alice" || posted.Message.Kind != domain.KindText {
		t.Errorf("Expected text message attributed to alice, got %+v", posted.Message)
	}

	// A sticker reply from bob.
	w = ts.do(t, http.MethodPost, "/api/messages", map[string]string{"recipient_id": "alice", "kind": "sticker", "attachment_ref": "sticker-7"}, bobCookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for sticker, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/messages?friend_id=bob", nil, aliceCookie)
	var history struct {
		Messages []domain.Message `json:"messages"`
	}
	decodeBody(t, w, &history)
	if len(history.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history.Messages))
	}
	if history.Messages[0].Content != "hello" {
		t.Errorf("Expected chronological order, got %+v", history.Messages)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")
	cookie := ts.login(t, "A-1", "pw")

	w := ts.do(t, http.MethodPost, "/api/presence", map[string]string{"active_chat_with": "bob"}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for heartbeat, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/presence?user_id=alice", nil, cookie)
	var got struct {
		Presence *domain.Presence `json:"presence"`
	}
	decodeBody(t, w, &got)
	if got.Presence == nil || got.Presence.ActiveChatWith != "bob" {
		t.Errorf("Expected heartbeat attributed to session, got %+v", got.Presence)
	}

	// Unknown user yields a null record, not an error.
	w = ts.do(t, http.MethodGet, "/api/presence?user_id=nobody", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for unknown user, got %d", w.Code)
	}
	got.Presence = nil
	decodeBody(t, w, &got)
	if got.Presence != nil {
		t.Errorf("Expected null presence, got %+v", got.Presence)
	}
}

func TestProfileAndLock(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")
	cookie := ts.login(t, "A-1", "pw")

	// Enabling the lock without a lock password is rejected.
	locked := true
	w := ts.do(t, http.MethodPatch, "/api/profile", map[string]any{"app_locked": locked}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for lock without password, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPatch, "/api/profile", map[string]any{"name": "Alice", "lock_password": "pin"}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for profile update, got %d: %s", w.Code, w.Body.String())
	}
	var updated struct {
		User struct {
			Name    string `json:"name"`
			HasLock bool   `json:"has_lock"`
		} `json:"user"`
	}
	decodeBody(t, w, &updated)
	if updated.User.Name != "Alice" || !updated.User.HasLock {
		t.Errorf("Expected renamed user with lock, got %+v", updated.User)
	}

	w = ts.do(t, http.MethodPost, "/api/lock", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for lock, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/unlock", map[string]string{"password": "wrong"}, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong lock password, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/unlock", map[string]string{"password": "pin"}, cookie)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for unlock, got %d", w.Code)
	}

	user, err := ts.repo.GetUser(context.Background(), "alice")
	if err != nil || user == nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if user.AppLocked {
		t.Error("Expected app unlocked after correct password")
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")

	w := ts.do(t, http.MethodGet, "/api/admin/users", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without admin code, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("X-Admin-Code", "admin-code")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with admin code, got %d", rec.Code)
	}
	var list struct {
		Users []adminUserResponse `json:"users"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(list.Users) != 1 || !list.Users[0].HasPassword {
		t.Errorf("Expected 1 user with has_password, got %+v", list.Users)
	}

	// Clearing the lock password also unlocks.
	body, _ := json.Marshal(map[string]any{"id": "alice", "lock_password": ""})
	req = httptest.NewRequest(http.MethodPatch, "/api/admin/users", bytes.NewReader(body))
	req.Header.Set("X-Admin-Code", "admin-code")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for admin update, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/users?id=alice", nil)
	req.Header.Set("X-Admin-Code", "admin-code")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for admin delete, got %d", rec.Code)
	}

	user, err := ts.repo.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Failed to check user: %v", err)
	}
	if user != nil {
		t.Error("Expected user deleted")
	}
}

func TestStickersFallback(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "A-1", "pw")
	cookie := ts.login(t, "A-1", "pw")

	w := ts.do(t, http.MethodGet, "/api/stickers?q=cats", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from stickers, got %d", w.Code)
	}
	var got struct {
		Stickers []stickers.Sticker `json:"stickers"`
		Source   string             `json:"source"`
	}
	decodeBody(t, w, &got)
	if got.Source != "fallback" {
		t.Errorf("Expected fallback source without API key, got %q", got.Source)
	}
	if len(got.Stickers) == 0 {
		t.Error("Expected built-in stickers")
	}
}
