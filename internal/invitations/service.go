package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
	"github.com/hazo-app/hazo-auth/jobs"
)

// ScopeDirectory resolves scopes referenced by invitations.
type ScopeDirectory interface {
	Get(ctx context.Context, id string) (scopes.Scope, error)
}

// Assigner creates the assignment an accepted invitation stands for.
type Assigner interface {
	Assign(ctx context.Context, userID, scopeID, roleID string) (assignments.Assignment, error)
}

// Mailer enqueues transactional email. Satisfied by jobs.Client.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Service handles the invitation lifecycle.
type Service struct {
	repo        Repository
	scopes      ScopeDirectory
	assignments Assigner
	mailer      Mailer
	logger      *slog.Logger
	validate    *validator.Validate
	baseURL     string
	ttl         time.Duration
	now         func() time.Time
}

// NewService builds Service instance. Mailer may be nil, in which case
// invitations are created without sending email.
func NewService(repo Repository, sc ScopeDirectory, as Assigner, mailer Mailer, logger *slog.Logger, baseURL string) *Service {
	return &Service{
		repo:        repo,
		scopes:      sc,
		assignments: as,
		mailer:      mailer,
		logger:      logger,
		validate:    validator.New(),
		baseURL:     strings.TrimRight(baseURL, "/"),
		ttl:         DefaultTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvitation collects the inputs for Create.
type CreateInvitation struct {
	Email     string `validate:"required,email"`
	ScopeID   string `validate:"required"`
	RoleID    string `validate:"required"`
	InvitedBy string
}

// Create issues an invitation and enqueues the notification email. A
// mail enqueue failure is logged but does not fail the call; the
// invitation is already persisted and the token can be re-sent.
func (s *Service) Create(ctx context.Context, in CreateInvitation) (Invitation, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return Invitation{}, invitationFieldError(err)
	}

	scope, err := s.scopes.Get(ctx, in.ScopeID)
	if err != nil {
		return Invitation{}, err
	}

	now := s.now()
	inv := Invitation{
		ID:        uuid.NewString(),
		Email:     in.Email,
		ScopeID:   scope.ID,
		RoleID:    in.RoleID,
		Token:     uuid.NewString(),
		InvitedBy: in.InvitedBy,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		ChangedAt: now,
	}
	if err := s.repo.Insert(ctx, inv); err != nil {
		return Invitation{}, s.storageErr("invitations.create", err, "scope_id", scope.ID)
	}

	s.sendInvitationMail(ctx, inv, scope.Name)
	return inv, nil
}

// Accept turns an invitation token into a scope assignment for the
// accepting user. Accepting the same invitation twice is safe: the
// underlying assignment is idempotent and the accepted marker is only
// set once.
func (s *Service) Accept(ctx context.Context, token, userID string) (assignments.Assignment, error) {
	inv, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return assignments.Assignment{}, shared.ErrNotFound
		}
		return assignments.Assignment{}, s.storageErr("invitations.accept", err)
	}

	now := s.now()
	if inv.AcceptedAt == nil && !now.Before(inv.ExpiresAt) {
		return assignments.Assignment{}, shared.ErrInvitationExpired
	}

	assignment, err := s.assignments.Assign(ctx, userID, inv.ScopeID, inv.RoleID)
	if err != nil {
		return assignments.Assignment{}, err
	}

	if inv.AcceptedAt == nil {
		if err := s.repo.MarkAccepted(ctx, inv.ID, now); err != nil {
			// The assignment exists; re-accepting remains safe, so the
			// marker failure is not surfaced to the accepting user.
			s.logger.Warn("mark invitation accepted",
				slog.String("invitation_id", inv.ID), slog.Any("error", err))
		}
	}
	return assignment, nil
}

// HasPending reports whether the email has an unaccepted, unexpired
// invitation. Used by onboarding to sequence the flow.
func (s *Service) HasPending(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	pending, err := s.repo.HasPendingByEmail(ctx, email, s.now())
	if err != nil {
		return false, s.storageErr("invitations.has_pending", err)
	}
	return pending, nil
}

// ListByScope returns invitations issued for a scope, newest first.
func (s *Service) ListByScope(ctx context.Context, scopeID string) ([]Invitation, error) {
	invs, err := s.repo.ListByScope(ctx, scopeID)
	if err != nil {
		return nil, s.storageErr("invitations.list", err, "scope_id", scopeID)
	}
	if invs == nil {
		invs = []Invitation{}
	}
	return invs, nil
}

func (s *Service) sendInvitationMail(ctx context.Context, inv Invitation, scopeName string) {
	if s.mailer == nil {
		return
	}
	payload := jobs.SendEmailPayload{
		To:      inv.Email,
		Subject: fmt.Sprintf("You have been invited to join %s", scopeName),
		Body: fmt.Sprintf(
			"You have been invited to join %s.\n\nAccept the invitation here: %s/invitations/accept?token=%s\n\nThis invitation expires on %s.",
			scopeName, s.baseURL, inv.Token, inv.ExpiresAt.Format("January 2, 2006"),
		),
	}
	if _, err := s.mailer.EnqueueSendEmail(ctx, payload); err != nil {
		s.logger.Warn("enqueue invitation email",
			slog.String("invitation_id", inv.ID), slog.Any("error", err))
	}
}

func (s *Service) storageErr(op string, err error, kv ...string) error {
	attrs := []any{slog.Any("error", err)}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.String(kv[i], kv[i+1]))
	}
	s.logger.Error(op, attrs...)
	return shared.ErrStorage
}

func invitationFieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return &shared.ValidationError{Field: "email", Message: "A valid email address is required"}
		case "ScopeID":
			return &shared.ValidationError{Field: "scope_id", Message: "Scope ID is required"}
		case "RoleID":
			return &shared.ValidationError{Field: "role_id", Message: "Role ID is required"}
		}
	}
	return &shared.ValidationError{Field: "invitation", Message: "Invalid invitation"}
}
