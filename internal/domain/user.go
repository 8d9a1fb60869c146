// Package domain contains core domain types for the pairchat application.
package domain

import (
	"time"
)

// User represents an account in the system. Accounts are identified by an
// opaque id and log in with an access code plus password.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AccessCode       string    `json:"access_code"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	PasswordHash     string    `json:"-"`
	LockPasswordHash string    `json:"-"`
	AppLocked        bool      `json:"app_locked"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasPassword returns true if a login password has been set for the user.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasLock returns true if an app-lock password has been configured.
func (u *User) HasLock() bool {
	return u.LockPasswordHash != ""
}

// Profile is the public view of a user, safe to return to other users.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}
