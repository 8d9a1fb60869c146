// Package api provides HTTP handlers for the pairchat API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/avatars"
	"github.com/pairchat/pairchat/internal/config"
	"github.com/pairchat/pairchat/internal/realtime"
	"github.com/pairchat/pairchat/internal/stickers"
	"github.com/pairchat/pairchat/internal/store"
)

// Handler provides the chat API endpoints and their shared dependencies.
type Handler struct {
	repo     store.Repository
	hub      *realtime.Hub
	cfg      *config.Config
	stickers *stickers.Service
	avatars  *avatars.Store
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, hub *realtime.Hub, cfg *config.Config, st *stickers.Service, av *avatars.Store) *Handler {
	return &Handler{repo: repo, hub: hub, cfg: cfg, stickers: st, avatars: av}
}

// RegisterRoutes mounts all API routes on the router. The auth middleware is
// assumed to be installed globally; endpoints that need identity use
// RequireUser.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Get("/api/me", h.Me)
		r.Patch("/api/profile", h.UpdateProfile)
		r.Post("/api/lock", h.Lock)
		r.Post("/api/unlock", h.Unlock)

		r.Get("/api/users/{id}", h.GetUserProfile)
		r.Get("/api/friends", h.ListFriends)
		r.Post("/api/friend-requests", h.CreateFriendRequest)
		r.Get("/api/friend-requests/incoming", h.IncomingFriendRequests)
		r.Post("/api/friend-requests/{id}/accept", h.AcceptFriendRequest)
		r.Post("/api/friend-requests/{id}/reject", h.RejectFriendRequest)

		r.Get("/api/messages", h.GetMessages)
		r.Post("/api/messages", h.PostMessage)

		r.Get("/api/presence", h.GetPresence)
		r.Post("/api/presence", h.PostPresence)

		r.Get("/api/stickers", h.Stickers)
		r.Post("/api/avatar", h.UploadAvatar)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.cfg.AdminCode))

		r.Get("/api/admin/users", h.AdminListUsers)
		r.Patch("/api/admin/users", h.AdminUpdateUser)
		r.Delete("/api/admin/users", h.AdminDeleteUser)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode parses a JSON request body; a missing or malformed body yields the
// zero value rather than an error, with defaults applied by the caller.
func decode(r *http.Request, v interface{}) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(v)
}
