package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pairchat/pairchat/internal/auth"
)

type heartbeatRequest struct {
	ActiveChatWith string `json:"active_chat_with"`
}

// PostPresence records a heartbeat for the caller: last_seen now, plus which
// conversation they currently have open. Attribution comes from the session,
// never the payload.
func (h *Handler) PostPresence(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req heartbeatRequest
	decode(r, &req)

	if err := h.repo.UpsertPresence(r.Context(), userID, req.ActiveChatWith, time.Now()); err != nil {
		slog.Warn("Failed to upsert presence", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetPresence returns the presence record for a queried user. A user with no
// recorded heartbeat yields a null record, not an error.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	queried := r.URL.Query().Get("user_id")
	if queried == "" {
		Error(w, http.StatusBadRequest, "user_id required")
		return
	}

	presence, err := h.repo.GetPresence(r.Context(), queried)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"presence": presence})
}
