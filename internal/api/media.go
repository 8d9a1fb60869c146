package api

import (
	"log/slog"
	"net/http"

	"github.com/pairchat/pairchat/internal/auth"
)

// Stickers handles GET /api/stickers. Provider failures are served from the
// built-in set rather than surfaced to the client.
func (h *Handler) Stickers(w http.ResponseWriter, r *http.Request) {
	results, source := h.stickers.Search(r.Context(), r.URL.Query().Get("q"))
	JSON(w, http.StatusOK, map[string]interface{}{
		"stickers": results,
		"source":   source,
	})
}

// UploadAvatar handles POST /api/avatar. It stores the uploaded image and
// updates the user's avatar URL.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(avatarMemoryLimit); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	avatarURL, err := h.avatars.Save(file, header)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	user.AvatarURL = avatarURL
	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("failed to update avatar", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update avatar")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"avatar_url": avatarURL})
}

// avatarMemoryLimit bounds how much of a multipart upload is buffered in
// memory before spilling to disk.
const avatarMemoryLimit = 1 << 20
