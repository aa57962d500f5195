package roles

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Service handles role business logic.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns a role by ID.
func (s *Service) Get(ctx context.Context, id string) (Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, s.storageErr("roles.get", err, "role_id", id)
	}
	return role, nil
}

// List returns all roles ordered by name.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storageErr("roles.list", err)
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// Permissions returns the permissions attached to a role.
func (s *Service) Permissions(ctx context.Context, roleID string) ([]Permission, error) {
	if _, err := s.Get(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := s.repo.ListPermissions(ctx, roleID)
	if err != nil {
		return nil, s.storageErr("roles.permissions", err, "role_id", roleID)
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// EnsureOwnerRole makes sure the reserved owner role exists and returns
// it. Permission seeding is best effort: a failure there is logged but
// does not fail the call, since the role itself is what assignment
// records reference.
func (s *Service) EnsureOwnerRole(ctx context.Context) (Role, error) {
	role, err := s.repo.Get(ctx, RoleIDOwner)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, s.storageErr("roles.ensure_owner", err)
	}

	now := s.now().UTC()
	role = Role{
		ID:          RoleIDOwner,
		Name:        RoleNameOwner,
		Description: "Full control over the firm and everything beneath it",
		CreatedAt:   now,
		ChangedAt:   now,
	}
	if err := s.repo.Insert(ctx, role); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost a creation race; the winner's row is authoritative.
			existing, getErr := s.repo.Get(ctx, RoleIDOwner)
			if getErr != nil {
				return Role{}, s.storageErr("roles.ensure_owner", getErr)
			}
			return existing, nil
		}
		return Role{}, s.storageErr("roles.ensure_owner", err)
	}

	s.seedOwnerPermissions(ctx)
	return role, nil
}

func (s *Service) seedOwnerPermissions(ctx context.Context) {
	for _, perm := range OwnerPermissions() {
		if err := s.repo.EnsurePermission(ctx, perm); err != nil {
			s.logger.Warn("seed owner permission", slog.String("permission", perm.Name), slog.Any("error", err))
			continue
		}
		if err := s.repo.AttachPermission(ctx, RoleIDOwner, perm.ID); err != nil {
			s.logger.Warn("attach owner permission", slog.String("permission", perm.Name), slog.Any("error", err))
		}
	}
}

func (s *Service) storageErr(op string, err error, kv ...string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrNotFound
	}
	attrs := []any{slog.Any("error", err)}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.String(kv[i], kv[i+1]))
	}
	s.logger.Error(op, attrs...)
	return shared.ErrStorage
}
