// Package profile defines the per-user profile entity.
package profile

import (
	"errors"
	"time"
)

// Profile is the single row of user-editable account data. ID equals the
// auth subject identifier, one row per user.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Website   string    `json:"website,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	// ErrNotFound is returned by lookups with no matching row.
	ErrNotFound = errors.New("profile: not found")

	// ErrUsernameTaken is returned when creating or updating onto a
	// username that already belongs to another profile.
	ErrUsernameTaken = errors.New("profile: username is already taken")
)
