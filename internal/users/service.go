package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, s.storageErr("users.get", err, "user_id", id)
	}
	return user, nil
}

// GetByEmail returns a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return User{}, s.storageErr("users.get_by_email", err)
	}
	return user, nil
}

// EmailByID resolves a user's email address. Used by onboarding to
// check for pending invitations.
func (s *Service) EmailByID(ctx context.Context, id string) (string, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// List returns a page of users with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	users, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, s.storageErr("users.list", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, shared.NewPagination(page, perPage, total), nil
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
