package scopes

import "time"

// Reserved scope identifiers. Both records must exist before anything
// references them and are exempt from normal mutation.
const (
	// ScopeIDSuperAdmin is the global-access scope with no parent.
	ScopeIDSuperAdmin = "scope_super_admin"
	// ScopeIDDefaultSystem is the scope used when multi-tenancy is disabled.
	ScopeIDDefaultSystem = "scope_default_system"

	SuperAdminScopeName    = "Super Admin"
	DefaultSystemScopeName = "Default System"
)

// Scope is a node in the organizational hierarchy. Level is a free-text
// display tag; inheritance follows only the parent/child pointers.
type Scope struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Level    string  `json:"level"`
	ParentID *string `json:"parent_id"`

	LogoURL        *string `json:"logo_url"`
	PrimaryColor   *string `json:"primary_color"`
	SecondaryColor *string `json:"secondary_color"`
	Tagline        *string `json:"tagline"`

	CreatedAt time.Time `json:"created_at"`
	ChangedAt time.Time `json:"changed_at"`
}

// HasBranding reports whether at least one branding field is set.
func (s Scope) HasBranding() bool {
	return s.LogoURL != nil || s.PrimaryColor != nil || s.SecondaryColor != nil || s.Tagline != nil
}

// Branding carries the four display-identity fields of a scope.
type Branding struct {
	LogoURL        *string `json:"logo_url,omitempty" validate:"omitempty,max=500"`
	PrimaryColor   *string `json:"primary_color,omitempty" validate:"omitempty,hexcolor,len=7"`
	SecondaryColor *string `json:"secondary_color,omitempty" validate:"omitempty,hexcolor,len=7"`
	Tagline        *string `json:"tagline,omitempty" validate:"omitempty,max=200"`
}

// IsSystemScope reports whether id names one of the reserved scopes.
func IsSystemScope(id string) bool {
	return id == ScopeIDSuperAdmin || id == ScopeIDDefaultSystem
}

// TreeNode is a scope with its children nested for display.
type TreeNode struct {
	Scope
	Children []*TreeNode `json:"children"`
}

// ScopeUpdate describes a partial update. Pointer fields left nil are
// untouched; branding fields and the parent clear only when the matching
// Set flag is raised with a nil value.
type ScopeUpdate struct {
	Name  *string
	Level *string

	ParentID  *string
	SetParent bool

	LogoURL           *string
	SetLogoURL        bool
	PrimaryColor      *string
	SetPrimaryColor   bool
	SecondaryColor    *string
	SetSecondaryColor bool
	Tagline           *string
	SetTagline        bool
}

// BrandingPatch is a partial branding update; only fields with the Set
// flag raised are merged into the record.
type BrandingPatch struct {
	LogoURL           *string
	SetLogoURL        bool
	PrimaryColor      *string
	SetPrimaryColor   bool
	SecondaryColor    *string
	SetSecondaryColor bool
	Tagline           *string
	SetTagline        bool
}
