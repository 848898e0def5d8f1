// Package storage defines the persistence interfaces the services depend
// on. The supabase implementation is the production backend; the memory
// implementation backs tests and local development.
package storage

import (
	"context"
	"time"

	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/domain/team"
)

// TeamStore persists team rows.
type TeamStore interface {
	CreateTeam(ctx context.Context, t team.Team) (team.Team, error)
	GetTeam(ctx context.Context, id string) (team.Team, error)
	GetTeamBySlug(ctx context.Context, slug string) (team.Team, error)
	// ListTeamsForUser returns the teams the user is a member of.
	ListTeamsForUser(ctx context.Context, userID string) ([]team.Team, error)
	UpdateTeam(ctx context.Context, t team.Team) (team.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// MemberStore persists membership rows.
type MemberStore interface {
	AddMember(ctx context.Context, m team.Member) (team.Member, error)
	GetMember(ctx context.Context, teamID, userID string) (team.Member, error)
	ListMembers(ctx context.Context, teamID string) ([]team.Member, error)
	UpdateMemberRole(ctx context.Context, teamID, userID string, role team.Role) (team.Member, error)
	// RemoveMember deletes a membership row. The removal and the
	// owner-count check are a single atomic step: removing the sole
	// owner-role member fails with team.ErrLastOwner and leaves the row
	// in place.
	RemoveMember(ctx context.Context, teamID, userID string) error
	CountMembers(ctx context.Context, teamID string) (int, error)
	// TeamOwnerID returns the user ID of the team's earliest owner-role
	// member. Team rows do not store owner identity directly.
	TeamOwnerID(ctx context.Context, teamID string) (string, error)
}

// InvitationStore persists invitation rows.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv team.Invitation) (team.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (team.Invitation, error)
	ListInvitations(ctx context.Context, teamID string) ([]team.Invitation, error)
	DeleteInvitation(ctx context.Context, teamID, invitationID string) error
	// AcceptInvitation atomically inserts the membership row and deletes
	// the invitation row. Fails with team.ErrInvitationExpired past
	// expiry and team.ErrAlreadyMember on a duplicate membership; in
	// both cases nothing changes.
	AcceptInvitation(ctx context.Context, token, userID string) (team.Member, error)
	// DeleteExpiredInvitations purges invitations that expired before the
	// given instant and returns how many were removed.
	DeleteExpiredInvitations(ctx context.Context, before time.Time) (int, error)
}

// TierStore reads subscription-tier reference data.
type TierStore interface {
	GetTier(ctx context.Context, name team.Tier) (team.SubscriptionTier, error)
	// ListTiers returns tiers sorted by monthly price ascending,
	// optionally restricted to team plans.
	ListTiers(ctx context.Context, teamPlansOnly bool) ([]team.SubscriptionTier, error)
}

// ProfileStore persists profile rows.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
}

// StatsStore exposes the aggregate counts the metrics job samples.
type StatsStore interface {
	CountTeams(ctx context.Context) (int, error)
	CountAllMembers(ctx context.Context) (int, error)
	CountPendingInvitations(ctx context.Context, now time.Time) (int, error)
}
