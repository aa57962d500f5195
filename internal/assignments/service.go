package assignments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// ScopeDirectory resolves scopes and their roots for assignment writes.
// Implemented by the scopes service.
type ScopeDirectory interface {
	Get(ctx context.Context, id string) (scopes.Scope, error)
	RootID(ctx context.Context, id string) (string, error)
}

// Service manages user-scope assignments. Assign and Remove are
// idempotent so onboarding and reconciliation flows are replay-safe.
type Service struct {
	repo   Repository
	scopes ScopeDirectory
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, scopes ScopeDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		scopes: scopes,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Assign grants a role to the user at a scope. An existing assignment for
// the pair is returned unchanged, even when a different role is passed:
// role changes do not flow through re-assignment.
func (s *Service) Assign(ctx context.Context, userID, scopeID, roleID string) (Assignment, error) {
	existing, err := s.repo.Find(ctx, userID, scopeID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Assignment{}, s.storageErr("assign: find", err, userID, scopeID)
	}

	if _, err := s.scopes.Get(ctx, scopeID); err != nil {
		return Assignment{}, err
	}
	rootID, err := s.scopes.RootID(ctx, scopeID)
	if err != nil {
		return Assignment{}, err
	}

	now := s.now()
	a := Assignment{
		UserID:      userID,
		ScopeID:     scopeID,
		RoleID:      roleID,
		RootScopeID: rootID,
		CreatedAt:   now,
		ChangedAt:   now,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost the race against a concurrent assign for the same pair.
			won, findErr := s.repo.Find(ctx, userID, scopeID)
			if findErr != nil {
				return Assignment{}, s.storageErr("assign: reread after conflict", findErr, userID, scopeID)
			}
			return won, nil
		}
		return Assignment{}, s.storageErr("assign: insert", err, userID, scopeID)
	}
	return a, nil
}

// Remove deletes the assignment if present. Removing an absent pair is a
// success with a nil removed record.
func (s *Service) Remove(ctx context.Context, userID, scopeID string) (*Assignment, error) {
	existing, err := s.repo.Find(ctx, userID, scopeID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageErr("remove: find", err, userID, scopeID)
	}
	if err := s.repo.Delete(ctx, userID, scopeID); err != nil {
		return nil, s.storageErr("remove: delete", err, userID, scopeID)
	}
	return &existing, nil
}

// Reconcile replaces the user's assignment set with the target set via a
// minimal diff: add missing, remove extras, leave the intersection
// untouched (role differences within unchanged scopes are ignored).
// Returns the full post-reconciliation list.
func (s *Service) Reconcile(ctx context.Context, userID string, targets []Target) ([]Assignment, error) {
	current, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storageErr("reconcile: list", err, userID, "")
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, a := range current {
		currentSet[a.ScopeID] = struct{}{}
	}
	targetSet := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		targetSet[t.ScopeID] = struct{}{}
	}

	for _, t := range targets {
		if _, ok := currentSet[t.ScopeID]; ok {
			continue
		}
		if _, err := s.Assign(ctx, userID, t.ScopeID, t.RoleID); err != nil {
			return nil, err
		}
	}
	for _, a := range current {
		if _, ok := targetSet[a.ScopeID]; ok {
			continue
		}
		if _, err := s.Remove(ctx, userID, a.ScopeID); err != nil {
			return nil, err
		}
	}

	return s.UserScopes(ctx, userID)
}

// UserScopes returns the user's direct assignments, empty when none.
func (s *Service) UserScopes(ctx context.Context, userID string) ([]Assignment, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storageErr("user scopes", err, userID, "")
	}
	if list == nil {
		list = []Assignment{}
	}
	return list, nil
}

// ScopeUsers returns the assignments attached to a scope, empty when none.
func (s *Service) ScopeUsers(ctx context.Context, scopeID string) ([]Assignment, error) {
	list, err := s.repo.ListByScope(ctx, scopeID)
	if err != nil {
		return nil, s.storageErr("scope users", err, "", scopeID)
	}
	if list == nil {
		list = []Assignment{}
	}
	return list, nil
}

// UserHasAnyScope reports whether the user holds at least one assignment.
func (s *Service) UserHasAnyScope(ctx context.Context, userID string) (bool, error) {
	exists, err := s.repo.ExistsForUser(ctx, userID)
	if err != nil {
		return false, s.storageErr("has any scope", err, userID, "")
	}
	return exists, nil
}

func (s *Service) storageErr(op string, err error, userID, scopeID string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrNotFound
	}
	s.logger.Error("assignments: storage failure",
		slog.String("op", op), slog.Any("error", err),
		slog.String("user_id", userID), slog.String("scope_id", scopeID))
	return shared.ErrStorage
}
