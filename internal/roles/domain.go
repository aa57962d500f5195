package roles

import "time"

// Reserved owner role identity. The ID is a well-known constant so that
// firm creation and access checks can reference it without a lookup.
const (
	RoleIDOwner   = "role_owner"
	RoleNameOwner = "Owner"
)

// Role grants a named set of permissions within an assigned scope.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Permission is a single named capability attachable to roles.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OwnerPermissions is the fixed set seeded onto the owner role when it
// is first created.
func OwnerPermissions() []Permission {
	return []Permission{
		{ID: "perm_users_view", Name: "users.view", Description: "View users"},
		{ID: "perm_users_edit", Name: "users.edit", Description: "Manage users"},
		{ID: "perm_roles_view", Name: "roles.view", Description: "View roles"},
		{ID: "perm_roles_edit", Name: "roles.edit", Description: "Manage roles"},
		{ID: "perm_scopes_view", Name: "scopes.view", Description: "View organizational scopes"},
		{ID: "perm_scopes_edit", Name: "scopes.edit", Description: "Manage organizational scopes"},
		{ID: "perm_branding_edit", Name: "branding.edit", Description: "Manage scope branding"},
		{ID: "perm_assignments_edit", Name: "assignments.edit", Description: "Manage user scope assignments"},
	}
}
