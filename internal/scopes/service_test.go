package scopes

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazo-app/hazo-auth/internal/shared"
	_ "github.com/hazo-app/hazo-auth/testing"
)

// memRepo is an in-memory Repository keeping insertion order for
// deterministic child listings.
type memRepo struct {
	scopes map[string]Scope
	order  []string
}

func newMemRepo() *memRepo {
	return &memRepo{scopes: map[string]Scope{}}
}

func (m *memRepo) Get(_ context.Context, id string) (Scope, error) {
	s, ok := m.scopes[id]
	if !ok {
		return Scope{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) GetByName(_ context.Context, name string) (Scope, error) {
	for _, id := range m.order {
		if m.scopes[id].Name == name {
			return m.scopes[id], nil
		}
	}
	return Scope{}, shared.ErrNotFound
}

func (m *memRepo) ListChildren(_ context.Context, parentID string) ([]Scope, error) {
	var out []Scope
	for _, id := range m.order {
		s := m.scopes[id]
		if s.ParentID != nil && *s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) ListRoots(_ context.Context) ([]Scope, error) {
	var out []Scope
	for _, id := range m.order {
		if m.scopes[id].ParentID == nil {
			out = append(out, m.scopes[id])
		}
	}
	return out, nil
}

func (m *memRepo) Insert(_ context.Context, scope Scope) error {
	if _, ok := m.scopes[scope.ID]; ok {
		return shared.ErrAlreadyExists
	}
	m.scopes[scope.ID] = scope
	m.order = append(m.order, scope.ID)
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, upd ScopeUpdate, changedAt time.Time) (Scope, error) {
	s, ok := m.scopes[id]
	if !ok {
		return Scope{}, shared.ErrNotFound
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	if upd.Level != nil {
		s.Level = *upd.Level
	}
	if upd.SetParent {
		s.ParentID = upd.ParentID
	}
	if upd.SetLogoURL {
		s.LogoURL = upd.LogoURL
	}
	if upd.SetPrimaryColor {
		s.PrimaryColor = upd.PrimaryColor
	}
	if upd.SetSecondaryColor {
		s.SecondaryColor = upd.SecondaryColor
	}
	if upd.SetTagline {
		s.Tagline = upd.Tagline
	}
	s.ChangedAt = changedAt
	m.scopes[id] = s
	return s, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.scopes[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.scopes, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

// seedChain creates root -> mid -> leaf and returns their IDs.
func seedChain(t *testing.T, svc *Service) (string, string, string) {
	t.Helper()
	ctx := context.Background()
	root, err := svc.Create(ctx, CreateScope{Name: "Harvey & Associates", Level: "Law Firm"})
	require.NoError(t, err)
	mid, err := svc.Create(ctx, CreateScope{Name: "Litigation", Level: "Department", ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateScope{Name: "Appeals", Level: "Team", ParentID: &mid.ID})
	require.NoError(t, err)
	return root.ID, mid.ID, leaf.ID
}

func TestCreateNormalizesAndValidatesName(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	scope, err := svc.Create(ctx, CreateScope{Name: "  Pearson Hardman  ", Level: "Law Firm"})
	require.NoError(t, err)
	require.Equal(t, "Pearson Hardman", scope.Name)
	require.Nil(t, scope.ParentID)

	_, err = svc.Create(ctx, CreateScope{Name: "   "})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	svc := newTestService(newMemRepo())
	missing := "scope-missing"
	_, err := svc.Create(context.Background(), CreateScope{Name: "Orphan", ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, _, _ := seedChain(t, svc)

	_, err := svc.Update(context.Background(), rootID, ScopeUpdate{ParentID: &rootID, SetParent: true}, "")
	require.ErrorIs(t, err, shared.ErrSelfParent)
}

func TestUpdateRejectsCycle(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, _, leafID := seedChain(t, svc)

	// Re-parenting the root under its own leaf would close a loop.
	_, err := svc.Update(context.Background(), rootID, ScopeUpdate{ParentID: &leafID, SetParent: true}, "")
	require.ErrorIs(t, err, shared.ErrCycle)
}

func TestUpdateReparentsWithinTree(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, _, leafID := seedChain(t, svc)
	ctx := context.Background()

	moved, err := svc.Update(ctx, leafID, ScopeUpdate{ParentID: &rootID, SetParent: true}, "")
	require.NoError(t, err)
	require.Equal(t, rootID, *moved.ParentID)

	ancestors, err := svc.Ancestors(ctx, leafID)
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	require.Equal(t, rootID, ancestors[0].ID)
}

func TestSystemScopesAreImmutable(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()
	_, err := svc.EnsureSuperAdmin(ctx)
	require.NoError(t, err)
	_, err = svc.EnsureDefaultSystem(ctx)
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(ctx, ScopeIDSuperAdmin, ScopeUpdate{Name: &name}, "")
	require.ErrorIs(t, err, shared.ErrSystemScope)

	require.ErrorIs(t, svc.Delete(ctx, ScopeIDDefaultSystem, ""), shared.ErrSystemScope)

	_, err = svc.UpdateBranding(ctx, ScopeIDSuperAdmin, BrandingPatch{}, "")
	require.ErrorIs(t, err, shared.ErrSystemScope)
}

func TestEnsureSystemScopeIsIdempotent(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	first, err := svc.EnsureSuperAdmin(ctx)
	require.NoError(t, err)
	second, err := svc.EnsureSuperAdmin(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, ScopeIDSuperAdmin, first.ID)
	require.Equal(t, SuperAdminScopeName, first.Name)
}

func TestAncestorsOrderedParentFirst(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, midID, leafID := seedChain(t, svc)

	ancestors, err := svc.Ancestors(context.Background(), leafID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	require.Equal(t, midID, ancestors[0].ID)
	require.Equal(t, rootID, ancestors[1].ID)
}

func TestAncestorsTruncatesOnDanglingParent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	rootID, midID, leafID := seedChain(t, svc)
	ctx := context.Background()

	// Simulate an out-of-band delete leaving a dangling parent pointer.
	delete(repo.scopes, rootID)

	ancestors, err := svc.Ancestors(ctx, leafID)
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	require.Equal(t, midID, ancestors[0].ID)

	// RootID falls back to the last reachable ancestor.
	got, err := svc.RootID(ctx, leafID)
	require.NoError(t, err)
	require.Equal(t, midID, got)
}

func TestDescendantsCollectsWholeSubtree(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, midID, leafID := seedChain(t, svc)
	ctx := context.Background()

	other, err := svc.Create(ctx, CreateScope{Name: "Corporate", Level: "Department", ParentID: &rootID})
	require.NoError(t, err)

	descendants, err := svc.Descendants(ctx, rootID)
	require.NoError(t, err)
	ids := make(map[string]bool, len(descendants))
	for _, d := range descendants {
		ids[d.ID] = true
	}
	require.Len(t, descendants, 3)
	require.True(t, ids[midID])
	require.True(t, ids[leafID])
	require.True(t, ids[other.ID])

	// Leaves have no descendants.
	none, err := svc.Descendants(ctx, leafID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRootIDResolvesThroughChain(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, _, leafID := seedChain(t, svc)
	ctx := context.Background()

	got, err := svc.RootID(ctx, leafID)
	require.NoError(t, err)
	require.Equal(t, rootID, got)

	got, err = svc.RootID(ctx, rootID)
	require.NoError(t, err)
	require.Equal(t, rootID, got)
}

func TestTreeNestsChildrenAndSkipsSystemRoots(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()
	_, err := svc.EnsureSuperAdmin(ctx)
	require.NoError(t, err)
	rootID, midID, leafID := seedChain(t, svc)

	tree, err := svc.Tree(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, rootID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, midID, tree[0].Children[0].ID)
	require.Len(t, tree[0].Children[0].Children, 1)
	require.Equal(t, leafID, tree[0].Children[0].Children[0].ID)

	// Subtree request starts at the named scope.
	sub, err := svc.Tree(ctx, &midID)
	require.NoError(t, err)
	require.Len(t, sub, 1)
	require.Equal(t, midID, sub[0].ID)
}

func TestDeleteRemovesScope(t *testing.T) {
	svc := newTestService(newMemRepo())
	rootID, _, leafID := seedChain(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, leafID, ""))
	_, err := svc.Get(ctx, leafID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Get(ctx, rootID)
	require.NoError(t, err)
}
