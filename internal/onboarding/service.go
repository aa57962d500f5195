package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/roles"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Onboarding status values consumed by the UI to sequence the flow.
const (
	StatusHasScope          = "has_scope"
	StatusPendingInvitation = "pending_invitation"
	StatusNeedsFirm         = "needs_firm"
)

// ScopeOrchestrator is the slice of the scope service that firm
// creation needs.
type ScopeOrchestrator interface {
	Create(ctx context.Context, in scopes.CreateScope) (scopes.Scope, error)
	Delete(ctx context.Context, id, actorID string) error
	EnsureDefaultSystem(ctx context.Context) (scopes.Scope, error)
}

// RoleEnsurer resolves the reserved owner role, creating it if needed.
type RoleEnsurer interface {
	EnsureOwnerRole(ctx context.Context) (roles.Role, error)
}

// Assigner is the slice of the assignment service used here.
type Assigner interface {
	Assign(ctx context.Context, userID, scopeID, roleID string) (assignments.Assignment, error)
	UserHasAnyScope(ctx context.Context, userID string) (bool, error)
}

// InvitationDirectory reports whether an email has a pending invitation.
type InvitationDirectory interface {
	HasPending(ctx context.Context, email string) (bool, error)
}

// UserEmails resolves a user's email address by ID.
type UserEmails interface {
	EmailByID(ctx context.Context, id string) (string, error)
}

// Service orchestrates firm creation and onboarding status.
type Service struct {
	scopes       ScopeOrchestrator
	roles        RoleEnsurer
	assignments  Assigner
	invitations  InvitationDirectory
	users        UserEmails
	logger       *slog.Logger
	multiTenancy bool
}

// NewService builds Service instance. Invitations and users may be nil
// when the status endpoint is not exposed.
func NewService(sc ScopeOrchestrator, rl RoleEnsurer, as Assigner, inv InvitationDirectory, us UserEmails, logger *slog.Logger, multiTenancy bool) *Service {
	return &Service{
		scopes:       sc,
		roles:        rl,
		assignments:  as,
		invitations:  inv,
		users:        us,
		logger:       logger,
		multiTenancy: multiTenancy,
	}
}

// CreateFirmInput collects the inputs for CreateFirm.
type CreateFirmInput struct {
	UserID            string
	FirmName          string
	OrgStructureLabel string
}

// FirmResult is the outcome of a successful firm creation.
type FirmResult struct {
	Scope      scopes.Scope           `json:"scope"`
	Assignment assignments.Assignment `json:"assignment"`
}

// CreateFirm creates a new root scope and assigns its creator the owner
// role. The two writes are not transactional: if the assignment fails,
// the freshly created scope is deleted best-effort and the assignment
// failure is reported.
//
// With multi-tenancy disabled, no firm scope is created; the creator is
// assigned into the default system scope instead.
func (s *Service) CreateFirm(ctx context.Context, in CreateFirmInput) (FirmResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return FirmResult{}, &shared.ValidationError{Field: "user_id", Message: "User ID is required"}
	}

	ownerRole, err := s.roles.EnsureOwnerRole(ctx)
	if err != nil {
		return FirmResult{}, err
	}

	if !s.multiTenancy {
		return s.assignDefaultSystem(ctx, in.UserID, ownerRole.ID)
	}

	if strings.TrimSpace(in.FirmName) == "" {
		return FirmResult{}, &shared.ValidationError{Field: "firm_name", Message: "Firm name is required"}
	}

	scope, err := s.scopes.Create(ctx, scopes.CreateScope{
		Name:    in.FirmName,
		Level:   in.OrgStructureLabel,
		ActorID: in.UserID,
	})
	if err != nil {
		return FirmResult{}, err
	}

	assignment, err := s.assignments.Assign(ctx, in.UserID, scope.ID, ownerRole.ID)
	if err != nil {
		// Compensate for the scope created above. Deletion failure is
		// logged only; the assignment error stays the reported one.
		if delErr := s.scopes.Delete(ctx, scope.ID, in.UserID); delErr != nil {
			s.logger.Error("rollback firm scope",
				slog.String("scope_id", scope.ID),
				slog.String("user_id", in.UserID),
				slog.Any("error", delErr))
		}
		return FirmResult{}, err
	}

	return FirmResult{Scope: scope, Assignment: assignment}, nil
}

func (s *Service) assignDefaultSystem(ctx context.Context, userID, roleID string) (FirmResult, error) {
	scope, err := s.scopes.EnsureDefaultSystem(ctx)
	if err != nil {
		return FirmResult{}, err
	}
	assignment, err := s.assignments.Assign(ctx, userID, scope.ID, roleID)
	if err != nil {
		return FirmResult{}, err
	}
	return FirmResult{Scope: scope, Assignment: assignment}, nil
}

// Status reports where a user stands in the onboarding flow.
func (s *Service) Status(ctx context.Context, userID string) (string, error) {
	hasScope, err := s.assignments.UserHasAnyScope(ctx, userID)
	if err != nil {
		return "", err
	}
	if hasScope {
		return StatusHasScope, nil
	}
	if s.invitations != nil && s.users != nil {
		email, err := s.users.EmailByID(ctx, userID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", err
		}
		if email != "" {
			pending, err := s.invitations.HasPending(ctx, email)
			if err != nil {
				return "", err
			}
			if pending {
				return StatusPendingInvitation, nil
			}
		}
	}
	return StatusNeedsFirm, nil
}
