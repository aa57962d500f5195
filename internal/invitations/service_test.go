package invitations

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
	"github.com/hazo-app/hazo-auth/jobs"
)

type memoryRepo struct {
	byToken map[string]Invitation
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byToken: map[string]Invitation{}}
}

func (m *memoryRepo) Insert(_ context.Context, inv Invitation) error {
	m.byToken[inv.Token] = inv
	return nil
}

func (m *memoryRepo) GetByToken(_ context.Context, token string) (Invitation, error) {
	inv, ok := m.byToken[token]
	if !ok {
		return Invitation{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) MarkAccepted(_ context.Context, id string, at time.Time) error {
	for token, inv := range m.byToken {
		if inv.ID == id {
			inv.AcceptedAt = &at
			inv.ChangedAt = at
			m.byToken[token] = inv
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) HasPendingByEmail(_ context.Context, email string, now time.Time) (bool, error) {
	for _, inv := range m.byToken {
		if inv.Email == email && inv.Pending(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) ListByScope(_ context.Context, scopeID string) ([]Invitation, error) {
	var out []Invitation
	for _, inv := range m.byToken {
		if inv.ScopeID == scopeID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type stubScopes struct{}

func (stubScopes) Get(_ context.Context, id string) (scopes.Scope, error) {
	if id != "scope-law-firm" {
		return scopes.Scope{}, shared.ErrNotFound
	}
	return scopes.Scope{ID: id, Name: "Harvey & Associates"}, nil
}

type countingAssigner struct {
	calls map[string]int
}

func (c *countingAssigner) Assign(_ context.Context, userID, scopeID, roleID string) (assignments.Assignment, error) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[userID+"|"+scopeID]++
	return assignments.Assignment{UserID: userID, ScopeID: scopeID, RoleID: roleID, RootScopeID: scopeID}, nil
}

type recordingMailer struct {
	sent []jobs.SendEmailPayload
}

func (m *recordingMailer) EnqueueSendEmail(_ context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo Repository, mailer Mailer, as Assigner) *Service {
	svc := NewService(repo, stubScopes{}, as, mailer, testLogger(), "https://app.example.com")
	return svc
}

func TestCreateIssuesTokenAndSendsEmail(t *testing.T) {
	repo := newMemoryRepo()
	mailer := &recordingMailer{}
	svc := newTestService(repo, mailer, &countingAssigner{})

	inv, err := svc.Create(context.Background(), CreateInvitation{
		Email:     "Jess@Example.com",
		ScopeID:   "scope-law-firm",
		RoleID:    "role-associate",
		InvitedBy: "user-owner",
	})
	require.NoError(t, err)
	require.Equal(t, "jess@example.com", inv.Email)
	require.NotEmpty(t, inv.Token)
	require.True(t, inv.ExpiresAt.After(time.Now()))

	require.Len(t, mailer.sent, 1)
	require.Equal(t, "jess@example.com", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "Harvey & Associates")
	require.Contains(t, mailer.sent[0].Body, inv.Token)
}

func TestCreateRejectsInvalidEmail(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, &countingAssigner{})
	_, err := svc.Create(context.Background(), CreateInvitation{
		Email: "not-an-email", ScopeID: "scope-law-firm", RoleID: "role-associate",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
}

func TestCreateRejectsUnknownScope(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, &countingAssigner{})
	_, err := svc.Create(context.Background(), CreateInvitation{
		Email: "jess@example.com", ScopeID: "scope-missing", RoleID: "role-associate",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAcceptAssignsAndIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	as := &countingAssigner{}
	svc := newTestService(repo, nil, as)

	inv, err := svc.Create(context.Background(), CreateInvitation{
		Email: "jess@example.com", ScopeID: "scope-law-firm", RoleID: "role-associate",
	})
	require.NoError(t, err)

	first, err := svc.Accept(context.Background(), inv.Token, "user-jess")
	require.NoError(t, err)
	require.Equal(t, "scope-law-firm", first.ScopeID)
	require.Equal(t, "role-associate", first.RoleID)

	second, err := svc.Accept(context.Background(), inv.Token, "user-jess")
	require.NoError(t, err)
	require.Equal(t, first.ScopeID, second.ScopeID)

	stored, err := repo.GetByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	require.NotNil(t, stored.AcceptedAt)
}

func TestAcceptRejectsExpiredInvitation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, &countingAssigner{})

	inv, err := svc.Create(context.Background(), CreateInvitation{
		Email: "jess@example.com", ScopeID: "scope-law-firm", RoleID: "role-associate",
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return inv.ExpiresAt.Add(time.Hour) }
	_, err = svc.Accept(context.Background(), inv.Token, "user-jess")
	require.ErrorIs(t, err, shared.ErrInvitationExpired)
}

func TestAcceptUnknownToken(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, &countingAssigner{})
	_, err := svc.Accept(context.Background(), "no-such-token", "user-jess")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHasPendingClearsAfterAccept(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, &countingAssigner{})

	inv, err := svc.Create(context.Background(), CreateInvitation{
		Email: "jess@example.com", ScopeID: "scope-law-firm", RoleID: "role-associate",
	})
	require.NoError(t, err)

	pending, err := svc.HasPending(context.Background(), "jess@example.com")
	require.NoError(t, err)
	require.True(t, pending)

	_, err = svc.Accept(context.Background(), inv.Token, "user-jess")
	require.NoError(t, err)

	pending, err = svc.HasPending(context.Background(), "jess@example.com")
	require.NoError(t, err)
	require.False(t, pending)
}
