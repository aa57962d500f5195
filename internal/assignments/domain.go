package assignments

import "time"

// Assignment is the many-to-many edge between a user and a scope. The
// pair (UserID, ScopeID) is the identity; there is no surrogate key.
// RootScopeID caches the root of the scope's tree at assignment time so
// "what firm does this user belong to" needs no tree walk.
type Assignment struct {
	UserID      string    `json:"user_id"`
	ScopeID     string    `json:"scope_id"`
	RoleID      string    `json:"role_id"`
	RootScopeID string    `json:"root_scope_id"`
	CreatedAt   time.Time `json:"created_at"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Target names a desired scope membership for reconciliation.
type Target struct {
	ScopeID string `json:"scope_id"`
	RoleID  string `json:"role_id"`
}
