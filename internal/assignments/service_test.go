package assignments

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
	_ "github.com/hazo-app/hazo-auth/testing"
)

type pairKey struct {
	userID, scopeID string
}

// memRepo is an in-memory Repository preserving insertion order.
type memRepo struct {
	byPair map[pairKey]Assignment
	order  []pairKey

	// When set, the next Insert reports a unique violation, mimicking a
	// concurrent writer that won the race.
	conflictWith *Assignment
}

func newMemRepo() *memRepo {
	return &memRepo{byPair: map[pairKey]Assignment{}}
}

func (m *memRepo) Find(_ context.Context, userID, scopeID string) (Assignment, error) {
	a, ok := m.byPair[pairKey{userID, scopeID}]
	if !ok {
		return Assignment{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string) ([]Assignment, error) {
	var out []Assignment
	for _, k := range m.order {
		if k.userID == userID {
			out = append(out, m.byPair[k])
		}
	}
	return out, nil
}

func (m *memRepo) ListByScope(_ context.Context, scopeID string) ([]Assignment, error) {
	var out []Assignment
	for _, k := range m.order {
		if k.scopeID == scopeID {
			out = append(out, m.byPair[k])
		}
	}
	return out, nil
}

func (m *memRepo) Insert(_ context.Context, a Assignment) error {
	if m.conflictWith != nil {
		won := *m.conflictWith
		m.conflictWith = nil
		m.store(won)
		return shared.ErrAlreadyExists
	}
	key := pairKey{a.UserID, a.ScopeID}
	if _, ok := m.byPair[key]; ok {
		return shared.ErrAlreadyExists
	}
	m.store(a)
	return nil
}

func (m *memRepo) store(a Assignment) {
	key := pairKey{a.UserID, a.ScopeID}
	if _, ok := m.byPair[key]; !ok {
		m.order = append(m.order, key)
	}
	m.byPair[key] = a
}

func (m *memRepo) Delete(_ context.Context, userID, scopeID string) error {
	key := pairKey{userID, scopeID}
	delete(m.byPair, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memRepo) ExistsForUser(_ context.Context, userID string) (bool, error) {
	for k := range m.byPair {
		if k.userID == userID {
			return true, nil
		}
	}
	return false, nil
}

// stubScopes resolves a fixed two-level tree: every known scope maps to
// its root.
type stubScopes struct {
	roots map[string]string
}

func (s *stubScopes) Get(_ context.Context, id string) (scopes.Scope, error) {
	if _, ok := s.roots[id]; !ok {
		return scopes.Scope{}, shared.ErrNotFound
	}
	return scopes.Scope{ID: id}, nil
}

func (s *stubScopes) RootID(_ context.Context, id string) (string, error) {
	root, ok := s.roots[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	return root, nil
}

func newTestService(repo Repository) *Service {
	sc := &stubScopes{roots: map[string]string{
		"scope-firm": "scope-firm",
		"scope-lit":  "scope-firm",
		"scope-corp": "scope-firm",
	}}
	return NewService(repo, sc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAssignRecordsRootScope(t *testing.T) {
	svc := newTestService(newMemRepo())

	a, err := svc.Assign(context.Background(), "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)
	require.Equal(t, "scope-firm", a.RootScopeID)
	require.Equal(t, "role_owner", a.RoleID)
	require.False(t, a.CreatedAt.IsZero())
}

func TestAssignIsIdempotentAndKeepsOriginalRole(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	first, err := svc.Assign(ctx, "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)

	// A second assign with a different role returns the existing record
	// untouched; role changes never flow through re-assignment.
	second, err := svc.Assign(ctx, "user-1", "scope-lit", "role_other")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "role_owner", second.RoleID)
}

func TestAssignRejectsUnknownScope(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.Assign(context.Background(), "user-1", "scope-missing", "role_owner")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignReturnsWinnerAfterInsertRace(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	repo.conflictWith = &Assignment{
		UserID: "user-1", ScopeID: "scope-lit", RoleID: "role_other",
		RootScopeID: "scope-firm",
	}

	got, err := svc.Assign(context.Background(), "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)
	require.Equal(t, "role_other", got.RoleID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Assign(ctx, "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)

	removed, err := svc.Remove(ctx, "user-1", "scope-lit")
	require.NoError(t, err)
	require.NotNil(t, removed)
	require.Equal(t, "scope-lit", removed.ScopeID)

	// Removing an absent pair succeeds with no record.
	removed, err = svc.Remove(ctx, "user-1", "scope-lit")
	require.NoError(t, err)
	require.Nil(t, removed)
}

func TestReconcileAppliesMinimalDiff(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	kept, err := svc.Assign(ctx, "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)
	_, err = svc.Assign(ctx, "user-1", "scope-corp", "role_owner")
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, "user-1", []Target{
		{ScopeID: "scope-lit", RoleID: "role_other"},
		{ScopeID: "scope-firm", RoleID: "role_owner"},
	})
	require.NoError(t, err)
	require.Len(t, result, 2)

	byScope := map[string]Assignment{}
	for _, a := range result {
		byScope[a.ScopeID] = a
	}
	// scope-corp was dropped, scope-firm added.
	require.NotContains(t, byScope, "scope-corp")
	require.Contains(t, byScope, "scope-firm")
	// The surviving assignment is untouched: same role, same timestamps.
	require.Equal(t, kept, byScope["scope-lit"])
}

func TestReconcileToEmptyRemovesEverything(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Assign(ctx, "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, "user-1", nil)
	require.NoError(t, err)
	require.Empty(t, result)

	has, err := svc.UserHasAnyScope(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, has)
}

func TestUserScopesAndScopeUsers(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Assign(ctx, "user-1", "scope-lit", "role_owner")
	require.NoError(t, err)
	_, err = svc.Assign(ctx, "user-2", "scope-lit", "role_owner")
	require.NoError(t, err)

	mine, err := svc.UserScopes(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	members, err := svc.ScopeUsers(ctx, "scope-lit")
	require.NoError(t, err)
	require.Len(t, members, 2)

	// Unknown IDs yield empty lists, not errors.
	none, err := svc.UserScopes(ctx, "user-ghost")
	require.NoError(t, err)
	require.Empty(t, none)
}
