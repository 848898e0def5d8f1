// Package team implements the team workflows: creation, membership,
// invitations and subscription changes. All tenant authorization decisions
// live here; handlers only translate HTTP to calls.
package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/storage"
	"github.com/teambase/teambase/pkg/logger"
)

// Action names an operation a user may attempt on a team.
type Action string

const (
	ActionView          Action = "view"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionManageMembers Action = "manage_members"
	ActionInvite        Action = "invite"
	ActionSubscription  Action = "subscription"
)

// minRoleFor maps each action to the weakest role allowed to perform it.
var minRoleFor = map[Action]team.Role{
	ActionView:          team.RoleMember,
	ActionUpdate:        team.RoleAdmin,
	ActionManageMembers: team.RoleAdmin,
	ActionInvite:        team.RoleAdmin,
	ActionDelete:        team.RoleOwner,
	ActionSubscription:  team.RoleOwner,
}

// Service coordinates the team stores.
type Service struct {
	teams       storage.TeamStore
	members     storage.MemberStore
	invitations storage.InvitationStore
	tiers       storage.TierStore
	logger      *logger.Logger
	now         func() time.Time
}

// NewService wires the team service. All stores are required.
func NewService(teams storage.TeamStore, members storage.MemberStore, invitations storage.InvitationStore, tiers storage.TierStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("team-service")
	}
	return &Service{
		teams:       teams,
		members:     members,
		invitations: invitations,
		tiers:       tiers,
		logger:      log,
		now:         time.Now,
	}
}

// CreateInput carries the caller-supplied fields for a new team.
type CreateInput struct {
	Name        string
	Slug        string
	Description string
	LogoURL     string
	IsPersonal  bool
	Metadata    map[string]string
}

// Create makes a team and enrolls the creating user as its owner. If the
// membership insert fails the half-created team is deleted so no orphan row
// survives.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (team.Team, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return team.Team{}, fmt.Errorf("team name is required")
	}
	if userID == "" {
		return team.Team{}, fmt.Errorf("user ID is required")
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	} else {
		slug = Slugify(slug)
	}
	if slug == "" {
		return team.Team{}, fmt.Errorf("team name %q yields an empty slug", name)
	}

	freeTier, err := s.tiers.GetTier(ctx, team.TierFree)
	if err != nil {
		return team.Team{}, fmt.Errorf("load default tier: %w", err)
	}

	t := team.Team{
		Name:             name,
		Slug:             slug,
		Description:      strings.TrimSpace(in.Description),
		LogoURL:          strings.TrimSpace(in.LogoURL),
		IsPersonal:       in.IsPersonal,
		SubscriptionTier: team.TierFree,
		MaxMembers:       freeTier.MaxMembers,
		Metadata:         in.Metadata,
	}
	if in.IsPersonal {
		t.PersonalUserID = userID
	}

	created, err := s.teams.CreateTeam(ctx, t)
	if err != nil {
		return team.Team{}, err
	}

	if _, err := s.members.AddMember(ctx, team.Member{
		TeamID: created.ID,
		UserID: userID,
		Role:   team.RoleOwner,
	}); err != nil {
		// Roll the team back; a team without an owner is unreachable.
		if delErr := s.teams.DeleteTeam(ctx, created.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("team_id", created.ID).Error("failed to roll back orphaned team")
		}
		return team.Team{}, fmt.Errorf("enroll owner: %w", err)
	}

	created.OwnerID = userID
	s.logger.WithFields(map[string]any{
		"team_id": created.ID,
		"slug":    created.Slug,
		"user_id": userID,
	}).Info("team created")
	return created, nil
}

// GetByID loads a team and attaches its derived owner ID.
func (s *Service) GetByID(ctx context.Context, id string) (team.Team, error) {
	t, err := s.teams.GetTeam(ctx, id)
	if err != nil {
		return team.Team{}, err
	}
	return s.attachOwner(ctx, t), nil
}

// GetBySlug loads a team by its URL slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (team.Team, error) {
	t, err := s.teams.GetTeamBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return team.Team{}, err
	}
	return s.attachOwner(ctx, t), nil
}

// ListForUser returns every team the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]team.Team, error) {
	teams, err := s.teams.ListTeamsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i] = s.attachOwner(ctx, teams[i])
	}
	return teams, nil
}

// UpdateInput carries the mutable team fields. Nil pointers mean "leave as is".
type UpdateInput struct {
	Name        *string
	Description *string
	LogoURL     *string
	Metadata    map[string]string
}

// Update applies the patch after an authorization check.
func (s *Service) Update(ctx context.Context, teamID, userID string, in UpdateInput) (team.Team, error) {
	if err := s.Authorize(ctx, teamID, userID, ActionUpdate); err != nil {
		return team.Team{}, err
	}
	t, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return team.Team{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return team.Team{}, fmt.Errorf("team name cannot be empty")
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.LogoURL != nil {
		t.LogoURL = strings.TrimSpace(*in.LogoURL)
	}
	if in.Metadata != nil {
		t.Metadata = in.Metadata
	}
	updated, err := s.teams.UpdateTeam(ctx, t)
	if err != nil {
		return team.Team{}, err
	}
	return s.attachOwner(ctx, updated), nil
}

// Delete removes a team. Personal teams cannot be deleted; they are removed
// with the account they belong to.
func (s *Service) Delete(ctx context.Context, teamID, userID string) error {
	if err := s.Authorize(ctx, teamID, userID, ActionDelete); err != nil {
		return err
	}
	t, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if t.IsPersonal {
		return team.ErrPersonalTeam
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	s.logger.WithFields(map[string]any{"team_id": teamID, "user_id": userID}).Info("team deleted")
	return nil
}

// Members ----------------------------------------------------------------

// ListMembers returns the team roster, oldest membership first.
func (s *Service) ListMembers(ctx context.Context, teamID, userID string) ([]team.Member, error) {
	if err := s.Authorize(ctx, teamID, userID, ActionView); err != nil {
		return nil, err
	}
	return s.members.ListMembers(ctx, teamID)
}

// AddMember enrolls a user directly, subject to the team's member limit.
func (s *Service) AddMember(ctx context.Context, teamID, actorID, newUserID string, role team.Role) (team.Member, error) {
	if err := s.Authorize(ctx, teamID, actorID, ActionManageMembers); err != nil {
		return team.Member{}, err
	}
	if !role.Valid() {
		return team.Member{}, team.ErrInvalidRole
	}
	if err := s.checkMemberLimit(ctx, teamID); err != nil {
		return team.Member{}, err
	}
	m, err := s.members.AddMember(ctx, team.Member{TeamID: teamID, UserID: newUserID, Role: role})
	if err != nil {
		return team.Member{}, err
	}
	s.logger.WithFields(map[string]any{"team_id": teamID, "user_id": newUserID, "role": role}).Info("member added")
	return m, nil
}

// UpdateMemberRole changes a member's role. The store enforces the sole-owner
// demotion guard atomically.
func (s *Service) UpdateMemberRole(ctx context.Context, teamID, actorID, targetUserID string, role team.Role) (team.Member, error) {
	if err := s.Authorize(ctx, teamID, actorID, ActionManageMembers); err != nil {
		return team.Member{}, err
	}
	if !role.Valid() {
		return team.Member{}, team.ErrInvalidRole
	}
	return s.members.UpdateMemberRole(ctx, teamID, targetUserID, role)
}

// RemoveMember removes a user from the team. Members may remove themselves;
// removing anyone else requires the manage-members role. The store rejects
// removing the sole owner.
func (s *Service) RemoveMember(ctx context.Context, teamID, actorID, targetUserID string) error {
	if actorID != targetUserID {
		if err := s.Authorize(ctx, teamID, actorID, ActionManageMembers); err != nil {
			return err
		}
	} else if err := s.Authorize(ctx, teamID, actorID, ActionView); err != nil {
		return err
	}
	if err := s.members.RemoveMember(ctx, teamID, targetUserID); err != nil {
		return err
	}
	s.logger.WithFields(map[string]any{"team_id": teamID, "user_id": targetUserID}).Info("member removed")
	return nil
}

// Invitations ------------------------------------------------------------

// Invite creates an invitation with a fresh token and a seven-day expiry.
func (s *Service) Invite(ctx context.Context, teamID, actorID, email string, role team.Role) (team.Invitation, error) {
	if err := s.Authorize(ctx, teamID, actorID, ActionInvite); err != nil {
		return team.Invitation{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return team.Invitation{}, fmt.Errorf("invalid invitation email %q", email)
	}
	if !role.Valid() {
		return team.Invitation{}, team.ErrInvalidRole
	}
	if err := s.checkMemberLimit(ctx, teamID); err != nil {
		return team.Invitation{}, err
	}

	inv := team.Invitation{
		TeamID:    teamID,
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		CreatedBy: actorID,
		ExpiresAt: s.now().Add(team.InvitationTTL),
	}
	created, err := s.invitations.CreateInvitation(ctx, inv)
	if err != nil {
		return team.Invitation{}, err
	}
	s.logger.WithFields(map[string]any{"team_id": teamID, "email": email}).Info("invitation created")
	return created, nil
}

// ListInvitations returns a team's pending invitations.
func (s *Service) ListInvitations(ctx context.Context, teamID, userID string) ([]team.Invitation, error) {
	if err := s.Authorize(ctx, teamID, userID, ActionInvite); err != nil {
		return nil, err
	}
	return s.invitations.ListInvitations(ctx, teamID)
}

// GetInvitationByToken looks up an invitation for the accept page. Expired
// invitations are reported as such rather than hidden.
func (s *Service) GetInvitationByToken(ctx context.Context, token string) (team.Invitation, error) {
	inv, err := s.invitations.GetInvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return team.Invitation{}, err
	}
	if inv.Expired(s.now()) {
		return inv, team.ErrInvitationExpired
	}
	return inv, nil
}

// AcceptInvitation redeems a token for the calling user. The store performs
// the expiry check, the membership insert and the token burn atomically.
func (s *Service) AcceptInvitation(ctx context.Context, token, userID string) (team.Member, error) {
	if userID == "" {
		return team.Member{}, fmt.Errorf("user ID is required")
	}
	inv, err := s.invitations.GetInvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return team.Member{}, err
	}
	if err := s.checkMemberLimit(ctx, inv.TeamID); err != nil {
		return team.Member{}, err
	}
	m, err := s.invitations.AcceptInvitation(ctx, strings.TrimSpace(token), userID)
	if err != nil {
		return team.Member{}, err
	}
	s.logger.WithFields(map[string]any{"team_id": m.TeamID, "user_id": userID}).Info("invitation accepted")
	return m, nil
}

// DeleteInvitation revokes a pending invitation.
func (s *Service) DeleteInvitation(ctx context.Context, teamID, actorID, invitationID string) error {
	if err := s.Authorize(ctx, teamID, actorID, ActionInvite); err != nil {
		return err
	}
	return s.invitations.DeleteInvitation(ctx, teamID, invitationID)
}

// Subscription -----------------------------------------------------------

// ChangeSubscription moves the team to a new tier and records the billing
// subscription ID. The member cap follows the tier.
func (s *Service) ChangeSubscription(ctx context.Context, teamID, actorID string, tierName team.Tier, subscriptionID string) (team.Team, error) {
	if err := s.Authorize(ctx, teamID, actorID, ActionSubscription); err != nil {
		return team.Team{}, err
	}
	tier, err := s.tiers.GetTier(ctx, tierName)
	if err != nil {
		return team.Team{}, err
	}
	t, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return team.Team{}, err
	}
	t.SubscriptionTier = tier.Name
	t.SubscriptionID = strings.TrimSpace(subscriptionID)
	t.MaxMembers = tier.MaxMembers
	updated, err := s.teams.UpdateTeam(ctx, t)
	if err != nil {
		return team.Team{}, err
	}
	s.logger.WithFields(map[string]any{"team_id": teamID, "tier": tierName}).Info("subscription changed")
	return s.attachOwner(ctx, updated), nil
}

// ListTiers returns plans cheapest first. With teamPlansOnly set,
// personal-only plans are filtered out.
func (s *Service) ListTiers(ctx context.Context, teamPlansOnly bool) ([]team.SubscriptionTier, error) {
	return s.tiers.ListTiers(ctx, teamPlansOnly)
}

// Subscription is a team's current plan alongside the tier reference row.
type Subscription struct {
	Tier           team.Tier             `json:"tier"`
	SubscriptionID string                `json:"subscriptionId,omitempty"`
	MaxMembers     int                   `json:"maxMembers"`
	MemberCount    int                   `json:"memberCount"`
	Plan           team.SubscriptionTier `json:"plan"`
}

// GetSubscription returns the team's plan state. Any member may read it.
func (s *Service) GetSubscription(ctx context.Context, teamID, actorID string) (Subscription, error) {
	if err := s.Authorize(ctx, teamID, actorID, ActionView); err != nil {
		return Subscription{}, err
	}
	t, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Subscription{}, err
	}
	tier, err := s.tiers.GetTier(ctx, t.SubscriptionTier)
	if err != nil {
		return Subscription{}, err
	}
	count, err := s.members.CountMembers(ctx, teamID)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		Tier:           t.SubscriptionTier,
		SubscriptionID: t.SubscriptionID,
		MaxMembers:     t.MaxMembers,
		MemberCount:    count,
		Plan:           tier,
	}, nil
}

// Authorization ----------------------------------------------------------

// Authorize checks that userID holds at least the role the action requires
// in teamID. Non-members get team.ErrForbidden, not a membership leak.
func (s *Service) Authorize(ctx context.Context, teamID, userID string, action Action) error {
	min, ok := minRoleFor[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	m, err := s.members.GetMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, team.ErrNotFound) {
			return team.ErrForbidden
		}
		return err
	}
	if !m.Role.AtLeast(min) {
		return team.ErrForbidden
	}
	return nil
}

// OwnerID returns the team's derived owner.
func (s *Service) OwnerID(ctx context.Context, teamID string) (string, error) {
	return s.members.TeamOwnerID(ctx, teamID)
}

func (s *Service) checkMemberLimit(ctx context.Context, teamID string) error {
	t, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if t.MaxMembers <= 0 {
		return nil
	}
	count, err := s.members.CountMembers(ctx, teamID)
	if err != nil {
		return err
	}
	if count >= t.MaxMembers {
		return team.ErrMemberLimit
	}
	return nil
}

func (s *Service) attachOwner(ctx context.Context, t team.Team) team.Team {
	ownerID, err := s.members.TeamOwnerID(ctx, t.ID)
	if err != nil {
		// A missing owner is a data problem, not a reason to fail the read.
		s.logger.WithError(err).WithField("team_id", t.ID).Warn("team has no owner")
		return t
	}
	t.OwnerID = ownerID
	return t
}

// Slugify turns a display name into a URL slug: lowercase, runs of
// non-alphanumerics collapse to single hyphens, edges trimmed.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
