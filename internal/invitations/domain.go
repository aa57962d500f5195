package invitations

import "time"

// DefaultTTL is how long an invitation stays acceptable.
const DefaultTTL = 7 * 24 * time.Hour

// Invitation is a pending offer for an email address to join a scope
// with a role. Acceptance turns it into a user-scope assignment.
type Invitation struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	ScopeID    string     `json:"scope_id"`
	RoleID     string     `json:"role_id"`
	Token      string     `json:"-"`
	InvitedBy  string     `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ChangedAt  time.Time  `json:"changed_at"`
}

// Pending reports whether the invitation can still be accepted at t.
func (i Invitation) Pending(t time.Time) bool {
	return i.AcceptedAt == nil && t.Before(i.ExpiresAt)
}
