// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and primarily intended for tests and local
// development. The guarded operations (sole-owner removal, invitation
// acceptance) are atomic under the store mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/storage"
)

// Store holds all entities behind a single RW mutex.
type Store struct {
	mu          sync.RWMutex
	teams       map[string]team.Team
	teamsBySlug map[string]string
	members     map[string]map[string]team.Member // teamID -> userID -> member
	invitations map[string]team.Invitation        // token -> invitation
	tiers       map[team.Tier]team.SubscriptionTier
	profiles    map[string]profile.Profile
	now         func() time.Time
}

var _ storage.TeamStore = (*Store)(nil)
var _ storage.MemberStore = (*Store)(nil)
var _ storage.InvitationStore = (*Store)(nil)
var _ storage.TierStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New creates an empty store seeded with the default subscription tiers.
func New() *Store {
	s := &Store{
		teams:       make(map[string]team.Team),
		teamsBySlug: make(map[string]string),
		members:     make(map[string]map[string]team.Member),
		invitations: make(map[string]team.Invitation),
		tiers:       make(map[team.Tier]team.SubscriptionTier),
		profiles:    make(map[string]profile.Profile),
		now:         time.Now,
	}
	for _, tier := range DefaultTiers() {
		s.tiers[tier.Name] = tier
	}
	return s
}

// WithClock overrides the store clock. Tests use it to age invitations.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// DefaultTiers returns the built-in subscription-tier reference rows.
func DefaultTiers() []team.SubscriptionTier {
	return []team.SubscriptionTier{
		{Name: team.TierFree, MaxMembers: 3, PriceMonthly: 0, PriceYearly: 0, Features: []string{"core"}, IsTeamPlan: true},
		{Name: team.TierBasic, MaxMembers: 10, PriceMonthly: 9, PriceYearly: 90, Features: []string{"core", "integrations"}, IsTeamPlan: true},
		{Name: team.TierPro, MaxMembers: 25, PriceMonthly: 29, PriceYearly: 290, Features: []string{"core", "integrations", "audit-log"}, IsTeamPlan: true},
		{Name: team.TierEnterprise, MaxMembers: 100, PriceMonthly: 99, PriceYearly: 990, Features: []string{"core", "integrations", "audit-log", "sso"}, IsTeamPlan: true},
	}
}

// TeamStore implementation ----------------------------------------------------

func (s *Store) CreateTeam(_ context.Context, t team.Team) (team.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teamsBySlug[t.Slug]; exists {
		return team.Team{}, team.ErrSlugTaken
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.teams[t.ID] = t
	s.teamsBySlug[t.Slug] = t.ID
	return t, nil
}

func (s *Store) GetTeam(_ context.Context, id string) (team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return team.Team{}, team.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTeamBySlug(_ context.Context, slug string) (team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.teamsBySlug[slug]
	if !ok {
		return team.Team{}, team.ErrNotFound
	}
	return s.teams[id], nil
}

func (s *Store) ListTeamsForUser(_ context.Context, userID string) ([]team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []team.Team
	for teamID, byUser := range s.members {
		if _, ok := byUser[userID]; ok {
			out = append(out, s.teams[teamID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateTeam(_ context.Context, t team.Team) (team.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.teams[t.ID]
	if !ok {
		return team.Team{}, team.ErrNotFound
	}
	if t.Slug != existing.Slug {
		if _, taken := s.teamsBySlug[t.Slug]; taken {
			return team.Team{}, team.ErrSlugTaken
		}
		delete(s.teamsBySlug, existing.Slug)
		s.teamsBySlug[t.Slug] = t.ID
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	s.teams[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[id]
	if !ok {
		return team.ErrNotFound
	}
	delete(s.teams, id)
	delete(s.teamsBySlug, t.Slug)
	delete(s.members, id)
	for token, inv := range s.invitations {
		if inv.TeamID == id {
			delete(s.invitations, token)
		}
	}
	return nil
}

// MemberStore implementation --------------------------------------------------

func (s *Store) AddMember(_ context.Context, m team.Member) (team.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMemberLocked(m)
}

func (s *Store) addMemberLocked(m team.Member) (team.Member, error) {
	if _, ok := s.teams[m.TeamID]; !ok {
		return team.Member{}, team.ErrNotFound
	}
	byUser := s.members[m.TeamID]
	if byUser == nil {
		byUser = make(map[string]team.Member)
		s.members[m.TeamID] = byUser
	}
	if _, exists := byUser[m.UserID]; exists {
		return team.Member{}, team.ErrAlreadyMember
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	byUser[m.UserID] = m
	return m, nil
}

func (s *Store) GetMember(_ context.Context, teamID, userID string) (team.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[teamID][userID]
	if !ok {
		return team.Member{}, team.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context, teamID string) ([]team.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]team.Member, 0, len(s.members[teamID]))
	for _, m := range s.members[teamID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateMemberRole(_ context.Context, teamID, userID string, role team.Role) (team.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[teamID][userID]
	if !ok {
		return team.Member{}, team.ErrNotFound
	}
	// Demoting the sole owner is the same invariant as removing them.
	if m.Role == team.RoleOwner && role != team.RoleOwner && s.ownerCountLocked(teamID) == 1 {
		return team.Member{}, team.ErrLastOwner
	}
	m.Role = role
	m.UpdatedAt = s.now()
	s.members[teamID][userID] = m
	return m, nil
}

func (s *Store) RemoveMember(_ context.Context, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[teamID][userID]
	if !ok {
		return team.ErrNotFound
	}
	if m.Role == team.RoleOwner && s.ownerCountLocked(teamID) == 1 {
		return team.ErrLastOwner
	}
	delete(s.members[teamID], userID)
	return nil
}

func (s *Store) CountMembers(_ context.Context, teamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[teamID]), nil
}

func (s *Store) TeamOwnerID(_ context.Context, teamID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owner team.Member
	found := false
	for _, m := range s.members[teamID] {
		if m.Role != team.RoleOwner {
			continue
		}
		if !found || m.CreatedAt.Before(owner.CreatedAt) {
			owner = m
			found = true
		}
	}
	if !found {
		return "", team.ErrNotFound
	}
	return owner.UserID, nil
}

func (s *Store) ownerCountLocked(teamID string) int {
	count := 0
	for _, m := range s.members[teamID] {
		if m.Role == team.RoleOwner {
			count++
		}
	}
	return count
}

// InvitationStore implementation ----------------------------------------------

func (s *Store) CreateInvitation(_ context.Context, inv team.Invitation) (team.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[inv.TeamID]; !ok {
		return team.Invitation{}, team.ErrNotFound
	}
	for _, existing := range s.invitations {
		if existing.TeamID == inv.TeamID && existing.Email == inv.Email {
			return team.Invitation{}, team.ErrInvitePending
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = s.now()
	s.invitations[inv.Token] = inv
	return inv, nil
}

func (s *Store) GetInvitationByToken(_ context.Context, token string) (team.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invitations[token]
	if !ok {
		return team.Invitation{}, team.ErrNotFound
	}
	return inv, nil
}

func (s *Store) ListInvitations(_ context.Context, teamID string) ([]team.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []team.Invitation
	for _, inv := range s.invitations {
		if inv.TeamID == teamID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteInvitation(_ context.Context, teamID, invitationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, inv := range s.invitations {
		if inv.TeamID == teamID && inv.ID == invitationID {
			delete(s.invitations, token)
			return nil
		}
	}
	return team.ErrNotFound
}

func (s *Store) AcceptInvitation(_ context.Context, token, userID string) (team.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[token]
	if !ok {
		return team.Member{}, team.ErrNotFound
	}
	if inv.Expired(s.now()) {
		return team.Member{}, team.ErrInvitationExpired
	}

	m, err := s.addMemberLocked(team.Member{TeamID: inv.TeamID, UserID: userID, Role: inv.Role})
	if err != nil {
		return team.Member{}, err
	}
	delete(s.invitations, token)
	return m, nil
}

func (s *Store) DeleteExpiredInvitations(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, inv := range s.invitations {
		if inv.ExpiresAt.Before(before) {
			delete(s.invitations, token)
			removed++
		}
	}
	return removed, nil
}

// TierStore implementation ----------------------------------------------------

func (s *Store) GetTier(_ context.Context, name team.Tier) (team.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tier, ok := s.tiers[name]
	if !ok {
		return team.SubscriptionTier{}, team.ErrNotFound
	}
	return tier, nil
}

func (s *Store) ListTiers(_ context.Context, teamPlansOnly bool) ([]team.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []team.SubscriptionTier
	for _, tier := range s.tiers {
		if teamPlansOnly && !tier.IsTeamPlan {
			continue
		}
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceMonthly < out[j].PriceMonthly })
	return out, nil
}

// SetTier inserts or replaces a tier row. Tests use it to vary reference data.
func (s *Store) SetTier(tier team.SubscriptionTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.Name] = tier
}

// ProfileStore implementation -------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Username != "" && s.usernameTakenLocked(p.Username, p.ID) {
		return profile.Profile{}, profile.ErrUsernameTaken
	}
	p.UpdatedAt = s.now()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByUsername(_ context.Context, username string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	if p.Username != "" && s.usernameTakenLocked(p.Username, p.ID) {
		return profile.Profile{}, profile.ErrUsernameTaken
	}
	p.UpdatedAt = s.now()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return profile.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *Store) usernameTakenLocked(username, selfID string) bool {
	for id, p := range s.profiles {
		if id != selfID && p.Username == username {
			return true
		}
	}
	return false
}

// StatsStore implementation ---------------------------------------------------

func (s *Store) CountTeams(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams), nil
}

func (s *Store) CountAllMembers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, byUser := range s.members {
		total += len(byUser)
	}
	return total, nil
}

func (s *Store) CountPendingInvitations(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, inv := range s.invitations {
		if !inv.Expired(now) {
			count++
		}
	}
	return count, nil
}
