package access

import (
	"context"
	"sort"

	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/scopes"
)

// AssignmentSource lists a user's direct assignments. Implemented by the
// assignments service.
type AssignmentSource interface {
	UserScopes(ctx context.Context, userID string) ([]assignments.Assignment, error)
}

// ScopeWalker collects descendants of a scope. Implemented by the scopes
// service.
type ScopeWalker interface {
	Descendants(ctx context.Context, id string) ([]scopes.Scope, error)
}

// Decision is the outcome of an access check. ViaScopeID names the
// assignment that granted access: the target itself for an exact match,
// or the assigned ancestor for inherited access.
type Decision struct {
	Granted    bool   `json:"granted"`
	ViaScopeID string `json:"via_scope_id,omitempty"`
}

// EffectiveScopes is a user's direct assignments plus the deduplicated
// level tags of every scope reachable downward from them.
type EffectiveScopes struct {
	Direct          []assignments.Assignment `json:"direct_scopes"`
	InheritedLevels []string                 `json:"inherited_scope_levels"`
}

// Service resolves scope access through the hierarchy: a user assigned
// at a scope implicitly reaches every descendant. Access never flows
// upward, and the level tag plays no part in the decision.
type Service struct {
	assignments AssignmentSource
	scopes      ScopeWalker
}

// NewService builds a Service instance.
func NewService(assignments AssignmentSource, scopes ScopeWalker) *Service {
	return &Service{assignments: assignments, scopes: scopes}
}

// CheckAccess determines whether the user reaches the target scope via an
// exact or ancestor assignment. When several assignments grant access the
// first one in the user's assignment list wins; there is no
// closest-ancestor preference.
func (s *Service) CheckAccess(ctx context.Context, userID, targetScopeID string) (Decision, error) {
	direct, err := s.assignments.UserScopes(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	for _, a := range direct {
		if a.ScopeID == targetScopeID || a.ScopeID == scopes.ScopeIDSuperAdmin {
			return Decision{Granted: true, ViaScopeID: a.ScopeID}, nil
		}
	}

	for _, a := range direct {
		descendants, err := s.scopes.Descendants(ctx, a.ScopeID)
		if err != nil {
			return Decision{}, err
		}
		for _, d := range descendants {
			if d.ID == targetScopeID {
				return Decision{Granted: true, ViaScopeID: a.ScopeID}, nil
			}
		}
	}

	return Decision{Granted: false}, nil
}

// EffectiveScopes returns the user's raw assignments and the union of
// level tags found anywhere below them, deduplicated across assignments.
func (s *Service) EffectiveScopes(ctx context.Context, userID string) (EffectiveScopes, error) {
	direct, err := s.assignments.UserScopes(ctx, userID)
	if err != nil {
		return EffectiveScopes{}, err
	}

	levels := make(map[string]struct{})
	for _, a := range direct {
		descendants, err := s.scopes.Descendants(ctx, a.ScopeID)
		if err != nil {
			return EffectiveScopes{}, err
		}
		for _, d := range descendants {
			if d.Level == "" {
				continue
			}
			levels[d.Level] = struct{}{}
		}
	}

	inherited := make([]string, 0, len(levels))
	for level := range levels {
		inherited = append(inherited, level)
	}
	sort.Strings(inherited)

	return EffectiveScopes{Direct: direct, InheritedLevels: inherited}, nil
}
