// Package team defines the team, membership, invitation and subscription-tier
// entities.
package team

import "time"

// Role is a membership role within a team.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the known membership roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// AtLeast reports whether the role grants the privileges of min. Owners
// outrank admins, admins outrank members.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Tier is a subscription tier name.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether the tier is one of the known subscription tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Team is a tenant: a named group of members sharing a subscription.
// OwnerID is derived from the membership table and attached on reads; the
// backing row does not store it.
type Team struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Description      string            `json:"description,omitempty"`
	LogoURL          string            `json:"logoUrl,omitempty"`
	IsPersonal       bool              `json:"isPersonal"`
	PersonalUserID   string            `json:"personalUserId,omitempty"`
	SubscriptionTier Tier              `json:"subscriptionTier"`
	SubscriptionID   string            `json:"subscriptionId,omitempty"`
	MaxMembers       int               `json:"maxMembers"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	OwnerID          string            `json:"ownerId,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Member binds a user to a team with a role. Unique on (TeamID, UserID).
type Member struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Invitation grants a one-time right to join a team with a pre-assigned
// role. Consumed on acceptance; inert once ExpiresAt has passed.
type Invitation struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Token     string    `json:"token"`
	CreatedBy string    `json:"createdBy"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the invitation can no longer be accepted.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// SubscriptionTier is reference data describing a purchasable plan.
// Read-only from the application's perspective.
type SubscriptionTier struct {
	Name         Tier     `json:"name"`
	MaxMembers   int      `json:"maxMembers"`
	PriceMonthly float64  `json:"priceMonthly"`
	PriceYearly  float64  `json:"priceYearly"`
	Features     []string `json:"features,omitempty"`
	IsTeamPlan   bool     `json:"isTeamPlan"`
}

// InvitationTTL is how long a fresh invitation stays acceptable.
const InvitationTTL = 7 * 24 * time.Hour
