package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	_ "github.com/hazo-app/hazo-auth/testing"
)

type fakeAssignments struct {
	byUser map[string][]assignments.Assignment
}

func (f *fakeAssignments) UserScopes(_ context.Context, userID string) ([]assignments.Assignment, error) {
	return f.byUser[userID], nil
}

// fakeTree walks a parent-pointer map the way the scope store does.
type fakeTree struct {
	parents map[string]string // child -> parent
	levels  map[string]string
}

func (f *fakeTree) Descendants(_ context.Context, id string) ([]scopes.Scope, error) {
	var out []scopes.Scope
	var walk func(string)
	walk = func(cur string) {
		for child, parent := range f.parents {
			if parent != cur {
				continue
			}
			out = append(out, scopes.Scope{ID: child, Level: f.levels[child]})
			walk(child)
		}
	}
	walk(id)
	return out, nil
}

// newFirmTree builds firm -> {litigation -> appeals, corporate}.
func newFirmTree() *fakeTree {
	return &fakeTree{
		parents: map[string]string{
			"scope-lit":     "scope-firm",
			"scope-corp":    "scope-firm",
			"scope-appeals": "scope-lit",
		},
		levels: map[string]string{
			"scope-lit":     "Department",
			"scope-corp":    "Department",
			"scope-appeals": "Team",
		},
	}
}

func assigned(scopeIDs ...string) []assignments.Assignment {
	out := make([]assignments.Assignment, 0, len(scopeIDs))
	for _, id := range scopeIDs {
		out = append(out, assignments.Assignment{UserID: "user-1", ScopeID: id, RoleID: "role_owner"})
	}
	return out
}

func TestCheckAccessExactAssignment(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-lit"),
	}}, newFirmTree())

	d, err := svc.CheckAccess(context.Background(), "user-1", "scope-lit")
	require.NoError(t, err)
	require.True(t, d.Granted)
	require.Equal(t, "scope-lit", d.ViaScopeID)
}

func TestCheckAccessInheritsDownward(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-firm"),
	}}, newFirmTree())
	ctx := context.Background()

	for _, target := range []string{"scope-lit", "scope-corp", "scope-appeals"} {
		d, err := svc.CheckAccess(ctx, "user-1", target)
		require.NoError(t, err)
		require.True(t, d.Granted, target)
		require.Equal(t, "scope-firm", d.ViaScopeID)
	}
}

func TestCheckAccessNeverFlowsUpOrSideways(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-lit"),
	}}, newFirmTree())
	ctx := context.Background()

	// Parent of the assignment: denied.
	d, err := svc.CheckAccess(ctx, "user-1", "scope-firm")
	require.NoError(t, err)
	require.False(t, d.Granted)
	require.Empty(t, d.ViaScopeID)

	// Sibling: denied.
	d, err = svc.CheckAccess(ctx, "user-1", "scope-corp")
	require.NoError(t, err)
	require.False(t, d.Granted)
}

func TestCheckAccessDeniesUserWithoutAssignments(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{}}, newFirmTree())

	d, err := svc.CheckAccess(context.Background(), "user-ghost", "scope-lit")
	require.NoError(t, err)
	require.False(t, d.Granted)
}

func TestCheckAccessSuperAdminReachesEverything(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"admin": assigned(scopes.ScopeIDSuperAdmin),
	}}, newFirmTree())
	ctx := context.Background()

	for _, target := range []string{"scope-firm", "scope-appeals", "scope-unrelated"} {
		d, err := svc.CheckAccess(ctx, "admin", target)
		require.NoError(t, err)
		require.True(t, d.Granted, target)
		require.Equal(t, scopes.ScopeIDSuperAdmin, d.ViaScopeID)
	}
}

func TestCheckAccessFirstAssignmentWins(t *testing.T) {
	// Both assignments reach the target; the list order decides which one
	// is reported, with exact matches checked before inherited ones.
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-firm", "scope-appeals"),
	}}, newFirmTree())

	d, err := svc.CheckAccess(context.Background(), "user-1", "scope-appeals")
	require.NoError(t, err)
	require.True(t, d.Granted)
	require.Equal(t, "scope-appeals", d.ViaScopeID)

	svc = NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-firm", "scope-lit"),
	}}, newFirmTree())
	d, err = svc.CheckAccess(context.Background(), "user-1", "scope-appeals")
	require.NoError(t, err)
	require.True(t, d.Granted)
	require.Equal(t, "scope-firm", d.ViaScopeID)
}

func TestEffectiveScopesDeduplicatesLevels(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-firm"),
	}}, newFirmTree())

	eff, err := svc.EffectiveScopes(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, eff.Direct, 1)
	// Two departments collapse into a single level tag, sorted output.
	require.Equal(t, []string{"Department", "Team"}, eff.InheritedLevels)
}

func TestEffectiveScopesSkipsEmptyLevels(t *testing.T) {
	tree := newFirmTree()
	tree.levels["scope-corp"] = ""
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{
		"user-1": assigned("scope-lit"),
	}}, tree)

	eff, err := svc.EffectiveScopes(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"Team"}, eff.InheritedLevels)
}

func TestEffectiveScopesEmptyForUnassignedUser(t *testing.T) {
	svc := NewService(&fakeAssignments{byUser: map[string][]assignments.Assignment{}}, newFirmTree())

	eff, err := svc.EffectiveScopes(context.Background(), "user-ghost")
	require.NoError(t, err)
	require.Empty(t, eff.Direct)
	require.Empty(t, eff.InheritedLevels)
}
