package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/store"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("Expected distinct tokens")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == "hunter2" {
		t.Error("Expected hash to differ from plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("Expected correct password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("Expected wrong password to fail")
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if got := UserIDFromContext(ctx); got != "" {
		t.Errorf("Expected empty user id, got %q", got)
	}
	ctx = WithUserID(ctx, "u1")
	if got := UserIDFromContext(ctx); got != "u1" {
		t.Errorf("Expected u1, got %q", got)
	}
}

func newAuthTestStore(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedSession(t *testing.T, repo store.Repository, userID, token string, lastSeen time.Time) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	user := &domain.User{ID: userID, Name: userID, AccessCode: "code-" + userID, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := repo.CreateSession(ctx, &domain.Session{Token: token, UserID: userID, CreatedAt: now}); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := repo.UpsertPresence(ctx, userID, "", lastSeen); err != nil {
		t.Fatalf("Failed to upsert presence: %v", err)
	}
}

func TestMiddleware_ValidSession(t *testing.T) {
	repo := newAuthTestStore(t)
	seedSession(t, repo, "alice", "tok-1", time.Now())

	var gotUserID string
	handler := Middleware(repo, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-1"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotUserID != "alice" {
		t.Errorf("Expected alice in context, got %q", gotUserID)
	}
}

func TestMiddleware_InactivityExpiry(t *testing.T) {
	repo := newAuthTestStore(t)
	seedSession(t, repo, "alice", "tok-1", time.Now().Add(-2*time.Hour))

	handler := Middleware(repo, time.Hour)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("Expected expired session to be rejected before the handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-1"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}

	// The stale session is deleted server-side.
	sess, err := repo.GetSession(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Failed to check session: %v", err)
	}
	if sess != nil {
		t.Error("Expected stale session deleted")
	}
}

func TestMiddleware_NoCookiePassesThrough(t *testing.T) {
	repo := newAuthTestStore(t)

	called := false
	handler := Middleware(repo, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := UserIDFromContext(r.Context()); got != "" {
			t.Errorf("Expected unauthenticated context, got %q", got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Expected request to pass through without a cookie")
	}
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(WithUserID(req.Context(), "alice"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 with identity, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Empty configured code disables the admin API entirely.
	handler := RequireAdmin("")(ok)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("X-Admin-Code", "anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with admin API disabled, got %d", w.Code)
	}

	handler = RequireAdmin("s3cret")(ok)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without code, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("X-Admin-Code", "s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 with header code, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/users?admin_code=s3cret", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 with query code, got %d", w.Code)
	}
}
