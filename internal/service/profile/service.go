// Package profile implements the user-profile workflows.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/storage"
	"github.com/teambase/teambase/pkg/logger"
)

// Service coordinates the profile store.
type Service struct {
	profiles storage.ProfileStore
	logger   *logger.Logger
}

// NewService wires the profile service.
func NewService(profiles storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profile-service")
	}
	return &Service{profiles: profiles, logger: log}
}

// Get loads a profile by user ID.
func (s *Service) Get(ctx context.Context, userID string) (profile.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// GetByUsername loads a profile by its public username.
func (s *Service) GetByUsername(ctx context.Context, username string) (profile.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return profile.Profile{}, profile.ErrNotFound
	}
	return s.profiles.GetProfileByUsername(ctx, username)
}

// UpdateInput carries the mutable profile fields. Nil pointers mean
// "leave as is".
type UpdateInput struct {
	Username  *string
	FullName  *string
	AvatarURL *string
	Website   *string
}

// Upsert creates the profile on first write and patches it afterwards.
// Profiles are keyed by the auth user ID, so the row may not exist yet for
// a user who signed up before ever touching their profile.
func (s *Service) Upsert(ctx context.Context, userID string, in UpdateInput) (profile.Profile, error) {
	if userID == "" {
		return profile.Profile{}, fmt.Errorf("user ID is required")
	}
	if in.Username != nil {
		username, err := normalizeUsername(*in.Username)
		if err != nil {
			return profile.Profile{}, err
		}
		in.Username = &username
	}

	current, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		p := profile.Profile{ID: userID}
		applyPatch(&p, in)
		created, err := s.profiles.CreateProfile(ctx, p)
		if err != nil {
			return profile.Profile{}, err
		}
		s.logger.WithField("user_id", userID).Info("profile created")
		return created, nil
	case err != nil:
		return profile.Profile{}, err
	}

	applyPatch(&current, in)
	return s.profiles.UpdateProfile(ctx, current)
}

// Delete removes a profile.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.profiles.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	s.logger.WithField("user_id", userID).Info("profile deleted")
	return nil
}

// IsUsernameAvailable reports whether a username can still be claimed.
func (s *Service) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return false, err
	}
	_, err = s.profiles.GetProfileByUsername(ctx, username)
	if errors.Is(err, profile.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func applyPatch(p *profile.Profile, in UpdateInput) {
	if in.Username != nil {
		p.Username = *in.Username
	}
	if in.FullName != nil {
		p.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Website != nil {
		p.Website = strings.TrimSpace(*in.Website)
	}
}

// normalizeUsername lowercases and validates a requested username: three or
// more characters, alphanumerics plus hyphen and underscore.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < 3 {
		return "", fmt.Errorf("username must be at least 3 characters")
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("username contains invalid character %q", r)
		}
	}
	return username, nil
}
