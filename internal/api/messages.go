package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/domain"
)

// GetMessages returns the full history between the caller and a friend,
// ordered by created_at ascending.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	friendID := r.URL.Query().Get("friend_id")
	if friendID == "" {
		Error(w, http.StatusBadRequest, "friend_id required")
		return
	}

	messages, err := h.repo.ConversationMessages(r.Context(), userID, friendID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type postMessageRequest struct {
	RecipientID   string             `json:"recipient_id"`
	Content       string             `json:"content"`
	Kind          domain.MessageKind `json:"kind"`
	AttachmentRef string             `json:"attachment_ref"`
}

// PostMessage persists a message from the caller and fans it out on the
// realtime channel. The sender is always the session identity.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req postMessageRequest
	decode(r, &req)
	if req.RecipientID == "" {
		Error(w, http.StatusBadRequest, "recipient_id required")
		return
	}
	if req.Kind == "" {
		req.Kind = domain.KindText
	}
	if !req.Kind.Valid() {
		Error(w, http.StatusBadRequest, "invalid kind")
		return
	}
	if req.Content == "" && req.AttachmentRef == "" {
		Error(w, http.StatusBadRequest, "content required")
		return
	}

	msg := &domain.Message{
		ID:            uuid.NewString(),
		SenderID:      userID,
		RecipientID:   req.RecipientID,
		Content:       req.Content,
		Kind:          req.Kind,
		AttachmentRef: req.AttachmentRef,
		CreatedAt:     time.Now(),
	}
	if err := h.repo.CreateMessage(r.Context(), msg); err != nil {
		slog.Error("Failed to persist message", "error", err, "sender_id", userID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}

	// Fan out on both filterable columns: the recipient's subscription and
	// the sender's own cross-device subscription.
	h.hub.PublishInsert("messages", msg, map[string]string{
		"recipient_id": msg.RecipientID,
		"sender_id":    msg.SenderID,
	})

	JSON(w, http.StatusCreated, map[string]any{"message": msg})
}
