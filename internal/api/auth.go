package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/domain"
)

type loginRequest struct {
	AccessCode string `json:"access_code"`
	Password   string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessCode  string `json:"access_code"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	HasPassword bool   `json:"has_password"`
	HasLock     bool   `json:"has_lock"`
	AppLocked   bool   `json:"app_locked"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		AccessCode:  u.AccessCode,
		AvatarURL:   u.AvatarURL,
		HasPassword: u.HasPassword(),
		HasLock:     u.HasLock(),
		AppLocked:   u.AppLocked,
	}
}

// Login verifies an access code + password pair and issues a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	decode(r, &req)

	code := strings.TrimSpace(req.AccessCode)
	if code == "" {
		Error(w, http.StatusBadRequest, "access_code required")
		return
	}
	if req.Password == "" {
		Error(w, http.StatusBadRequest, "password required")
		return
	}

	user, err := h.repo.GetUserByAccessCode(r.Context(), code, false)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if user == nil {
		// Case-insensitive fallback for hand-typed codes.
		user, err = h.repo.GetUserByAccessCode(r.Context(), code, true)
		if err != nil {
			Error(w, http.StatusInternalServerError, "internal")
			return
		}
	}
	if user == nil {
		Error(w, http.StatusUnauthorized, "invalid access code")
		return
	}

	if !user.HasPassword() {
		Error(w, http.StatusUnauthorized, "password not set for this user")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		Error(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := auth.GenerateToken()
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	if err := h.repo.CreateSession(r.Context(), &domain.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("Failed to create session", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}

	// Record an initial heartbeat so the inactivity check has a baseline.
	if err := h.repo.UpsertPresence(r.Context(), user.ID, "", time.Now()); err != nil {
		slog.Warn("Failed to record login heartbeat", "error", err, "user_id", user.ID)
	}

	auth.SetSessionCookie(w, token, h.cfg.IsDevelopment())
	JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// Logout clears the session cookie and deletes the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.SessionCookieName); err == nil && c.Value != "" {
		if delErr := h.repo.DeleteSession(r.Context(), c.Value); delErr != nil {
			slog.Warn("Failed to delete session on logout", "error", delErr)
		}
	}
	auth.ClearSessionCookie(w)
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated user's own profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

type profileRequest struct {
	Name         *string `json:"name"`
	AccessCode   *string `json:"access_code"`
	AvatarURL    *string `json:"avatar_url"`
	Password     *string `json:"password"`
	LockPassword *string `json:"lock_password"`
	AppLocked    *bool   `json:"app_locked"`
}

// UpdateProfile updates the caller's own profile fields.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}

	var req profileRequest
	decode(r, &req)

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.AccessCode != nil && strings.TrimSpace(*req.AccessCode) != "" {
		user.AccessCode = strings.TrimSpace(*req.AccessCode)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Password != nil && *req.Password != "" {
		hash, hashErr := auth.HashPassword(*req.Password)
		if hashErr != nil {
			Error(w, http.StatusInternalServerError, "internal")
			return
		}
		user.PasswordHash = hash
	}
	if req.LockPassword != nil && *req.LockPassword != "" {
		hash, hashErr := auth.HashPassword(*req.LockPassword)
		if hashErr != nil {
			Error(w, http.StatusInternalServerError, "internal")
			return
		}
		user.LockPasswordHash = hash
	}
	if req.AppLocked != nil {
		if *req.AppLocked && !user.HasLock() {
			Error(w, http.StatusBadRequest, "lock password required to enable app lock")
			return
		}
		user.AppLocked = *req.AppLocked
	}

	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("Failed to update profile", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// Lock sets the caller's app-locked flag, used by the client when the app
// loses focus.
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if err := h.repo.SetAppLocked(r.Context(), userID, true); err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"locked": true})
}

type unlockRequest struct {
	Password string `json:"password"`
}

// Unlock verifies the lock password and clears the app-locked flag.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}

	var req unlockRequest
	decode(r, &req)

	if !user.HasLock() || !auth.CheckPassword(user.LockPasswordHash, req.Password) {
		Error(w, http.StatusUnauthorized, "invalid lock password")
		return
	}

	if err := h.repo.SetAppLocked(r.Context(), userID, false); err != nil {
		Error(w, http.StatusInternalServerError, "internal")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"locked": false})
}
