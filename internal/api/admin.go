package api

import (
	"log/slog"
	"net/http"

	"github.com/pairchat/pairchat/internal/auth"
)

type adminUserResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessCode  string `json:"access_code"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	HasPassword bool   `json:"has_password"`
	HasLock     bool   `json:"has_lock"`
	AppLocked   bool   `json:"app_locked"`
}

// AdminListUsers returns every user for the admin panel. Password hashes are
// never exposed, only booleans.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}

	out := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserResponse{
			ID:          u.ID,
			Name:        u.Name,
			AccessCode:  u.AccessCode,
			AvatarURL:   u.AvatarURL,
			HasPassword: u.HasPassword(),
			HasLock:     u.HasLock(),
			AppLocked:   u.AppLocked,
		})
	}
	JSON(w, http.StatusOK, map[string]any{"users": out})
}

type adminUpdateRequest struct {
	ID           string  `json:"id"`
	Password     *string `json:"password"`
	LockPassword *string `json:"lock_password"`
	AppLocked    *bool   `json:"app_locked"`
}

// AdminUpdateUser patches a user's password, lock password, or lock state.
func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	decode(r, &req)
	if req.ID == "" {
		Error(w, http.StatusBadRequest, "id required")
		return
	}
	if req.Password == nil && req.LockPassword == nil && req.AppLocked == nil {
		Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.repo.GetUser(r.Context(), req.ID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Password != nil && *req.Password != "" {
		hash, hashErr := auth.HashPassword(*req.Password)
		if hashErr != nil {
			Error(w, http.StatusInternalServerError, "internal")
			return
		}
		user.PasswordHash = hash
	}
	if req.LockPassword != nil {
		if *req.LockPassword == "" {
			user.LockPasswordHash = ""
			user.AppLocked = false
		} else {
			hash, hashErr := auth.HashPassword(*req.LockPassword)
			if hashErr != nil {
				Error(w, http.StatusInternalServerError, "internal")
				return
			}
			user.LockPasswordHash = hash
		}
	}
	if req.AppLocked != nil {
		user.AppLocked = *req.AppLocked && user.HasLock()
	}

	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("Admin user update failed", "error", err, "user_id", req.ID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AdminDeleteUser removes a user and all dependent rows.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		Error(w, http.StatusBadRequest, "id required")
		return
	}
	if err := h.repo.DeleteUser(r.Context(), id); err != nil {
		slog.Error("Admin user delete failed", "error", err, "user_id", id)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
