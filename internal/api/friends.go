package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/domain"
)

// GetUserProfile looks up a user's public profile by id, used by the
// add-friend dialog.
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.repo.GetUser(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"user": user.Profile()})
}

// ListFriends returns the caller's friends.
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	friends, err := h.repo.ListFriends(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if friends == nil {
		friends = []domain.Profile{}
	}
	JSON(w, http.StatusOK, map[string]any{"friends": friends})
}

type friendRequestRequest struct {
	RecipientID string `json:"recipient_id"`
}

// CreateFriendRequest sends a friend request to another user.
func (h *Handler) CreateFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req friendRequestRequest
	decode(r, &req)
	if req.RecipientID == "" {
		Error(w, http.StatusBadRequest, "recipient_id required")
		return
	}
	if req.RecipientID == userID {
		Error(w, http.StatusBadRequest, "cannot befriend yourself")
		return
	}

	recipient, err := h.repo.GetUser(r.Context(), req.RecipientID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if recipient == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	already, err := h.repo.AreFriends(r.Context(), userID, req.RecipientID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if already {
		Error(w, http.StatusConflict, "already friends")
		return
	}

	fr := &domain.FriendRequest{
		ID:          uuid.NewString(),
		SenderID:    userID,
		RecipientID: req.RecipientID,
		CreatedAt:   time.Now(),
	}
	if err := h.repo.CreateFriendRequest(r.Context(), fr); err != nil {
		// The unique (sender, recipient) index turns repeats into conflicts.
		Error(w, http.StatusConflict, "request already sent")
		return
	}

	h.hub.PublishInsert("friend_requests", fr, map[string]string{
		"recipient_id": fr.RecipientID,
		"sender_id":    fr.SenderID,
	})

	JSON(w, http.StatusCreated, map[string]any{"request": fr})
}

// IncomingFriendRequests returns pending requests addressed to the caller.
func (h *Handler) IncomingFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	requests, err := h.repo.IncomingFriendRequests(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if requests == nil {
		requests = []*domain.FriendRequest{}
	}
	JSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// AcceptFriendRequest accepts a pending request addressed to the caller and
// returns the new friend's profile.
func (h *Handler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	req, ok := h.ownedFriendRequest(w, r, userID)
	if !ok {
		return
	}

	if err := h.repo.AddFriendship(r.Context(), req.SenderID, req.RecipientID); err != nil {
		slog.Error("Failed to add friendship", "error", err, "request_id", req.ID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if err := h.repo.DeleteFriendRequest(r.Context(), req.ID); err != nil {
		slog.Warn("Failed to delete accepted friend request", "error", err, "request_id", req.ID)
	}

	sender, err := h.repo.GetUser(r.Context(), req.SenderID)
	if err != nil || sender == nil {
		JSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	JSON(w, http.StatusOK, map[string]any{"added_friend": sender.Profile()})
}

// RejectFriendRequest deletes a pending request addressed to the caller.
func (h *Handler) RejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	req, ok := h.ownedFriendRequest(w, r, userID)
	if !ok {
		return
	}

	if err := h.repo.DeleteFriendRequest(r.Context(), req.ID); err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ownedFriendRequest(w http.ResponseWriter, r *http.Request, userID string) (*domain.FriendRequest, bool) {
	id := chi.URLParam(r, "id")
	req, err := h.repo.GetFriendRequest(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return nil, false
	}
	if req == nil || req.RecipientID != userID {
		Error(w, http.StatusNotFound, "request not found")
		return nil, false
	}
	return req, true
}
