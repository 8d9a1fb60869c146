// Package auth provides session-cookie authentication primitives.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pairchat/pairchat/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionCookieName = "pairchat_session"
	sessionCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the authenticated user id from the request
// context. Empty when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GenerateToken returns a new opaque session token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SetSessionCookie writes the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		Expires:  time.Now().Add(sessionCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// ClearSessionCookie expires the session cookie on the response.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Middleware authenticates requests via the session cookie and injects the
// user id into the request context. Requests with no valid session pass
// through unauthenticated; handlers decide whether identity is required.
//
// Sessions go stale by inactivity: when the user's own presence heartbeat is
// older than the TTL, the session is rejected and the cookie cleared. A login
// records an initial heartbeat, so a missing presence row also means stale.
func Middleware(repo store.Repository, sessionTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := repo.GetSession(r.Context(), c.Value)
			if err != nil {
				slog.Warn("session lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			presence, err := repo.GetPresence(r.Context(), session.UserID)
			if err != nil {
				slog.Warn("presence lookup failed", "user_id", session.UserID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if presence == nil || time.Since(presence.LastSeen) > sessionTTL {
				if delErr := repo.DeleteSession(r.Context(), session.Token); delErr != nil {
					slog.Warn("failed to delete expired session", "error", delErr)
				}
				ClearSessionCookie(w)
				http.Error(w, `{"error":"session_expired"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), session.UserID)))
		})
	}
}

// RequireUser rejects unauthenticated requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromContext(r.Context()) == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin guards admin endpoints with a shared admin code, passed in the
// X-Admin-Code header or admin_code query parameter. An empty configured code
// disables the admin API.
func RequireAdmin(adminCode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminCode == "" {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			got := r.Header.Get("X-Admin-Code")
			if got == "" {
				got = r.URL.Query().Get("admin_code")
			}
			if got != adminCode {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
