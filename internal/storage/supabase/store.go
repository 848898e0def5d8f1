// Package supabase adapts the storage interfaces onto the managed Postgres
// REST API. All reads and writes go through the service-role client so row
// access is decided by the application, not by row-level security.
//
// Column names are snake_case on the wire and camelCase in the domain
// structs; the convert package translates at this boundary and nowhere else.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teambase/teambase/internal/convert"
	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/storage"
	supa "github.com/teambase/teambase/internal/supabase"
)

const (
	tableTeams       = "teams"
	tableMembers     = "team_members"
	tableInvitations = "team_invitations"
	tableTiers       = "subscription_tiers"
	tableProfiles    = "profiles"
)

// Store implements every storage interface against the REST API.
type Store struct {
	client *supa.Client
}

var _ storage.TeamStore = (*Store)(nil)
var _ storage.MemberStore = (*Store)(nil)
var _ storage.InvitationStore = (*Store)(nil)
var _ storage.TierStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New wraps a client configured with the service-role key.
func New(client *supa.Client) *Store {
	return &Store{client: client}
}

// decodeRows unmarshals a representation response into dst, converting the
// wire's snake_case keys to the domain's camelCase tags.
func decodeRows(resp *supa.Response, dst any) error {
	if err := convert.UnmarshalCamel(resp.Body, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// firstRow unmarshals the first element of a representation array. PostgREST
// returns arrays for inserts and updates even when one row is affected.
func firstRow(resp *supa.Response, dst any) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return team.ErrNotFound
	}
	return convert.UnmarshalCamel(rows[0], dst)
}

func snakeBody(v any) (json.RawMessage, error) {
	data, err := convert.MarshalSnake(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return json.RawMessage(data), nil
}

// TeamStore --------------------------------------------------------------

func (s *Store) CreateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	t.OwnerID = "" // derived column, never stored
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	body, err := snakeBody(t)
	if err != nil {
		return team.Team{}, err
	}
	resp, err := s.client.From(tableTeams).ExecuteInsert(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return team.Team{}, team.ErrSlugTaken
		}
		return team.Team{}, fmt.Errorf("insert team: %w", err)
	}
	var created team.Team
	if err := firstRow(resp, &created); err != nil {
		return team.Team{}, err
	}
	return created, nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (team.Team, error) {
	resp, err := s.client.From(tableTeams).Eq("id", id).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return team.Team{}, team.ErrNotFound
		}
		return team.Team{}, fmt.Errorf("get team: %w", err)
	}
	var t team.Team
	if err := decodeRows(resp, &t); err != nil {
		return team.Team{}, err
	}
	return t, nil
}

func (s *Store) GetTeamBySlug(ctx context.Context, slug string) (team.Team, error) {
	resp, err := s.client.From(tableTeams).Eq("slug", slug).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return team.Team{}, team.ErrNotFound
		}
		return team.Team{}, fmt.Errorf("get team by slug: %w", err)
	}
	var t team.Team
	if err := decodeRows(resp, &t); err != nil {
		return team.Team{}, err
	}
	return t, nil
}

func (s *Store) ListTeamsForUser(ctx context.Context, userID string) ([]team.Team, error) {
	// Embedded select: teams joined through their membership rows.
	resp, err := s.client.From(tableMembers).
		Select("teams(*)").
		Eq("user_id", userID).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams for user: %w", err)
	}
	var rows []struct {
		Teams team.Team `json:"teams"`
	}
	if err := decodeRows(resp, &rows); err != nil {
		return nil, err
	}
	teams := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.Teams)
	}
	return teams, nil
}

func (s *Store) UpdateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	patch := t
	patch.OwnerID = ""
	patch.UpdatedAt = time.Now().UTC()
	body, err := snakeBody(patch)
	if err != nil {
		return team.Team{}, err
	}
	resp, err := s.client.From(tableTeams).Eq("id", t.ID).ExecuteUpdate(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return team.Team{}, team.ErrSlugTaken
		}
		return team.Team{}, fmt.Errorf("update team: %w", err)
	}
	var updated team.Team
	if err := firstRow(resp, &updated); err != nil {
		return team.Team{}, err
	}
	return updated, nil
}

func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	resp, err := s.client.From(tableTeams).Eq("id", id).ExecuteDelete(ctx)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return team.ErrNotFound
	}
	return nil
}

// MemberStore ------------------------------------------------------------

func (s *Store) AddMember(ctx context.Context, m team.Member) (team.Member, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	body, err := snakeBody(m)
	if err != nil {
		return team.Member{}, err
	}
	resp, err := s.client.From(tableMembers).ExecuteInsert(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return team.Member{}, team.ErrAlreadyMember
		}
		return team.Member{}, fmt.Errorf("insert member: %w", err)
	}
	var created team.Member
	if err := firstRow(resp, &created); err != nil {
		return team.Member{}, err
	}
	return created, nil
}

func (s *Store) GetMember(ctx context.Context, teamID, userID string) (team.Member, error) {
	resp, err := s.client.From(tableMembers).
		Eq("team_id", teamID).
		Eq("user_id", userID).
		Single().
		Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return team.Member{}, team.ErrNotFound
		}
		return team.Member{}, fmt.Errorf("get member: %w", err)
	}
	var m team.Member
	if err := decodeRows(resp, &m); err != nil {
		return team.Member{}, err
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, teamID string) ([]team.Member, error) {
	resp, err := s.client.From(tableMembers).
		Eq("team_id", teamID).
		Order("created_at", true).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var members []team.Member
	if err := decodeRows(resp, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, teamID, userID string, role team.Role) (team.Member, error) {
	resp, err := s.client.RPC(ctx, "update_team_member_role", map[string]any{
		"p_team_id": teamID,
		"p_user_id": userID,
		"p_role":    string(role),
	})
	if err != nil {
		return team.Member{}, mapGuardError(err, "update member role")
	}
	var m team.Member
	if err := decodeRows(resp, &m); err != nil {
		return team.Member{}, err
	}
	return m, nil
}

// RemoveMember calls a server-side function so the sole-owner check and the
// delete happen in one transaction.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := s.client.RPC(ctx, "remove_team_member", map[string]any{
		"p_team_id": teamID,
		"p_user_id": userID,
	})
	if err != nil {
		return mapGuardError(err, "remove member")
	}
	return nil
}

func (s *Store) CountMembers(ctx context.Context, teamID string) (int, error) {
	resp, err := s.client.From(tableMembers).
		Select("id").
		Eq("team_id", teamID).
		Count("exact").
		Limit(1).
		Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return resp.ContentRangeCount(), nil
}

func (s *Store) TeamOwnerID(ctx context.Context, teamID string) (string, error) {
	resp, err := s.client.From(tableMembers).
		Select("user_id").
		Eq("team_id", teamID).
		Eq("role", string(team.RoleOwner)).
		Order("created_at", true).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("get team owner: %w", err)
	}
	var rows []struct {
		UserID string `json:"userId"`
	}
	if err := decodeRows(resp, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", team.ErrNotFound
	}
	return rows[0].UserID, nil
}

// InvitationStore --------------------------------------------------------

func (s *Store) CreateInvitation(ctx context.Context, inv team.Invitation) (team.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()
	body, err := snakeBody(inv)
	if err != nil {
		return team.Invitation{}, err
	}
	resp, err := s.client.From(tableInvitations).ExecuteInsert(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return team.Invitation{}, team.ErrInvitePending
		}
		return team.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	var created team.Invitation
	if err := firstRow(resp, &created); err != nil {
		return team.Invitation{}, err
	}
	return created, nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (team.Invitation, error) {
	resp, err := s.client.From(tableInvitations).Eq("token", token).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return team.Invitation{}, team.ErrNotFound
		}
		return team.Invitation{}, fmt.Errorf("get invitation: %w", err)
	}
	var inv team.Invitation
	if err := decodeRows(resp, &inv); err != nil {
		return team.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) ListInvitations(ctx context.Context, teamID string) ([]team.Invitation, error) {
	resp, err := s.client.From(tableInvitations).
		Eq("team_id", teamID).
		Order("created_at", true).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	var invs []team.Invitation
	if err := decodeRows(resp, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

func (s *Store) DeleteInvitation(ctx context.Context, teamID, invitationID string) error {
	resp, err := s.client.From(tableInvitations).
		Eq("team_id", teamID).
		Eq("id", invitationID).
		ExecuteDelete(ctx)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return team.ErrNotFound
	}
	return nil
}

// AcceptInvitation calls a server-side function so the expiry check, the
// membership insert and the invitation delete happen in one transaction.
func (s *Store) AcceptInvitation(ctx context.Context, token, userID string) (team.Member, error) {
	resp, err := s.client.RPC(ctx, "accept_team_invitation", map[string]any{
		"p_token":   token,
		"p_user_id": userID,
	})
	if err != nil {
		return team.Member{}, mapGuardError(err, "accept invitation")
	}
	var m team.Member
	if err := decodeRows(resp, &m); err != nil {
		return team.Member{}, err
	}
	return m, nil
}

func (s *Store) DeleteExpiredInvitations(ctx context.Context, before time.Time) (int, error) {
	resp, err := s.client.From(tableInvitations).
		Lt("expires_at", before.UTC().Format(time.RFC3339)).
		ExecuteDelete(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return 0, fmt.Errorf("decode rows: %w", err)
	}
	return len(rows), nil
}

// TierStore --------------------------------------------------------------

func (s *Store) GetTier(ctx context.Context, name team.Tier) (team.SubscriptionTier, error) {
	resp, err := s.client.From(tableTiers).Eq("name", string(name)).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return team.SubscriptionTier{}, team.ErrNotFound
		}
		return team.SubscriptionTier{}, fmt.Errorf("get tier: %w", err)
	}
	var tier team.SubscriptionTier
	if err := decodeRows(resp, &tier); err != nil {
		return team.SubscriptionTier{}, err
	}
	return tier, nil
}

func (s *Store) ListTiers(ctx context.Context, teamPlansOnly bool) ([]team.SubscriptionTier, error) {
	q := s.client.From(tableTiers).Order("price_monthly", true)
	if teamPlansOnly {
		q = q.Eq("is_team_plan", "true")
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	var tiers []team.SubscriptionTier
	if err := decodeRows(resp, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// ProfileStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	body, err := snakeBody(p)
	if err != nil {
		return profile.Profile{}, err
	}
	resp, err := s.client.From(tableProfiles).ExecuteInsert(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return profile.Profile{}, profile.ErrUsernameTaken
		}
		return profile.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	var created profile.Profile
	if err := firstRow(resp, &created); err != nil {
		return profile.Profile{}, err
	}
	return created, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	resp, err := s.client.From(tableProfiles).Eq("id", id).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	var p profile.Profile
	if err := decodeRows(resp, &p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (profile.Profile, error) {
	resp, err := s.client.From(tableProfiles).Eq("username", username).Single().Execute(ctx)
	if err != nil {
		if supa.IsNotFound(err) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, fmt.Errorf("get profile by username: %w", err)
	}
	var p profile.Profile
	if err := decodeRows(resp, &p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	patch := p
	patch.UpdatedAt = time.Now().UTC()
	body, err := snakeBody(patch)
	if err != nil {
		return profile.Profile{}, err
	}
	resp, err := s.client.From(tableProfiles).Eq("id", p.ID).ExecuteUpdate(ctx, body)
	if err != nil {
		if supa.IsConflict(err) {
			return profile.Profile{}, profile.ErrUsernameTaken
		}
		return profile.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	var updated profile.Profile
	if err := firstRow(resp, &updated); err != nil {
		if errors.Is(err, team.ErrNotFound) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}
	return updated, nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	resp, err := s.client.From(tableProfiles).Eq("id", id).ExecuteDelete(ctx)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// StatsStore -------------------------------------------------------------

func (s *Store) CountTeams(ctx context.Context) (int, error) {
	resp, err := s.client.From(tableTeams).Select("id").Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("count teams: %w", err)
	}
	return resp.ContentRangeCount(), nil
}

func (s *Store) CountAllMembers(ctx context.Context) (int, error) {
	resp, err := s.client.From(tableMembers).Select("id").Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return resp.ContentRangeCount(), nil
}

func (s *Store) CountPendingInvitations(ctx context.Context, now time.Time) (int, error) {
	resp, err := s.client.From(tableInvitations).
		Select("id").
		Gte("expires_at", now.UTC().Format(time.RFC3339)).
		Count("exact").
		Limit(1).
		Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending invitations: %w", err)
	}
	return resp.ContentRangeCount(), nil
}

// mapGuardError translates errors raised by the guard functions into domain
// sentinels. The functions raise with fixed message prefixes.
func mapGuardError(err error, op string) error {
	var apiErr *supa.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case strings.Contains(msg, "last_owner"):
			return team.ErrLastOwner
		case strings.Contains(msg, "already_member"):
			return team.ErrAlreadyMember
		case strings.Contains(msg, "invitation_expired"):
			return team.ErrInvitationExpired
		case strings.Contains(msg, "not_found") || apiErr.StatusCode == 404:
			return team.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
