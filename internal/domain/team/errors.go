package team

import "errors"

// Invariant and lookup errors surfaced by the team service and stores. The
// route layer maps these onto HTTP statuses; anything else is treated as a
// storage failure.
var (
	// ErrNotFound is returned by single-row lookups with no matching row.
	ErrNotFound = errors.New("team: not found")

	// ErrLastOwner is returned when a removal would leave a team with no
	// owner-role member.
	ErrLastOwner = errors.New("team: cannot remove the last owner of a team")

	// ErrPersonalTeam is returned when deleting a personal team.
	ErrPersonalTeam = errors.New("team: personal teams cannot be deleted")

	// ErrInvitationExpired is returned when accepting an invitation past
	// its expiry.
	ErrInvitationExpired = errors.New("team: invitation has expired")

	// ErrAlreadyMember is returned when inserting a duplicate membership.
	ErrAlreadyMember = errors.New("team: user is already a member of this team")

	// ErrInvitePending is returned when inviting an email that already has
	// an outstanding invitation for the team.
	ErrInvitePending = errors.New("team: an invitation for this email is already pending")

	// ErrSlugTaken is returned when creating a team with a slug that is
	// already in use.
	ErrSlugTaken = errors.New("team: slug is already taken")

	// ErrInvalidRole is returned for a role outside owner/admin/member.
	ErrInvalidRole = errors.New("team: invalid role")

	// ErrMemberLimit is returned when a team is at its tier's member cap.
	ErrMemberLimit = errors.New("team: member limit reached for subscription tier")

	// ErrForbidden is returned when the acting user lacks the role an
	// operation requires.
	ErrForbidden = errors.New("team: insufficient role for this operation")
)
