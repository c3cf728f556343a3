package perm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgbase/orgbase/pkg/auth"
)

// fakeSource is an in-memory membership graph for evaluator tests.
type fakeSource struct {
	orgs     map[string]*Org
	managers map[string][]Manager
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		orgs:     make(map[string]*Org),
		managers: make(map[string][]Manager),
	}
}

func (f *fakeSource) addOrg(id string, partOf *string) {
	f.orgs[id] = &Org{ID: id, PartOf: partOf}
}

func (f *fakeSource) addManager(orgID, userID string, role auth.Role) {
	f.managers[orgID] = append(f.managers[orgID], Manager{UserID: userID, Role: role})
}

func (f *fakeSource) Organization(_ context.Context, id string) (*Org, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, ErrOrgNotFound
	}
	return org, nil
}

func (f *fakeSource) LocalManagers(_ context.Context, orgID string) ([]Manager, error) {
	return f.managers[orgID], nil
}

func ptr(s string) *string { return &s }

func TestEffectiveManagers(t *testing.T) {
	ctx := context.Background()

	t.Run("missing organization", func(t *testing.T) {
		e := NewEvaluator(newFakeSource())
		_, err := e.EffectiveManagers(ctx, "nope")
		assert.ErrorIs(t, err, ErrOrgNotFound)
	})

	t.Run("root with direct managers only", func(t *testing.T) {
		src := newFakeSource()
		src.addOrg("a", nil)
		src.addManager("a", "u1", auth.RoleOwner)
		src.addManager("a", "u2", auth.RoleEventViewer)

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, "a")
		require.NoError(t, err)
		require.Len(t, managers, 2)
		assert.Nil(t, managers[0].SourceOrg)
		assert.Nil(t, managers[1].SourceOrg)
	})

	t.Run("child inherits from root tagged with parent", func(t *testing.T) {
		// Root organization A has confirmed owner U1; child B has no
		// direct managers. B's view contains U1 tagged with A.
		src := newFakeSource()
		src.addOrg("a", nil)
		src.addOrg("b", ptr("a"))
		src.addManager("a", "u1", auth.RoleOwner)

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, "b")
		require.NoError(t, err)
		require.Len(t, managers, 1)
		assert.Equal(t, "u1", managers[0].UserID)
		assert.Equal(t, auth.RoleOwner, managers[0].Role)
		require.NotNil(t, managers[0].SourceOrg)
		assert.Equal(t, "a", *managers[0].SourceOrg)
	})

	t.Run("first tag is preserved down the chain", func(t *testing.T) {
		// a <- b <- c: a's owner enters b's view tagged "a" and must keep
		// that tag in c's view rather than being re-tagged "b".
		src := newFakeSource()
		src.addOrg("a", nil)
		src.addOrg("b", ptr("a"))
		src.addOrg("c", ptr("b"))
		src.addManager("a", "u1", auth.RoleOwner)
		src.addManager("b", "u2", auth.RoleAdministrator)

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, "c")
		require.NoError(t, err)
		require.Len(t, managers, 2)

		assert.Equal(t, "u2", managers[0].UserID)
		assert.Equal(t, "b", *managers[0].SourceOrg)

		assert.Equal(t, "u1", managers[1].UserID)
		assert.Equal(t, "a", *managers[1].SourceOrg)
	})

	t.Run("local entries precede inherited ones", func(t *testing.T) {
		src := newFakeSource()
		src.addOrg("a", nil)
		src.addOrg("b", ptr("a"))
		src.addManager("a", "u1", auth.RoleOwner)
		src.addManager("b", "u2", auth.RoleOwner)

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, "b")
		require.NoError(t, err)
		require.Len(t, managers, 2)
		assert.Equal(t, "u2", managers[0].UserID)
		assert.Nil(t, managers[0].SourceOrg)
		assert.Equal(t, "u1", managers[1].UserID)
	})

	t.Run("no deduplication across levels", func(t *testing.T) {
		// The same user holds different roles on both levels; both
		// entries survive and the caller decides precedence.
		src := newFakeSource()
		src.addOrg("a", nil)
		src.addOrg("b", ptr("a"))
		src.addManager("a", "u1", auth.RoleOwner)
		src.addManager("b", "u1", auth.RoleEventViewer)

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, "b")
		require.NoError(t, err)
		require.Len(t, managers, 2)
		assert.Equal(t, auth.RoleEventViewer, managers[0].Role)
		assert.Equal(t, auth.RoleOwner, managers[1].Role)
	})

	t.Run("chain of depth d yields d+1 groups", func(t *testing.T) {
		src := newFakeSource()
		const depth = 16
		src.addOrg("org-0", nil)
		src.addManager("org-0", "user-0", auth.RoleOwner)
		for i := 1; i <= depth; i++ {
			src.addOrg(fmt.Sprintf("org-%d", i), ptr(fmt.Sprintf("org-%d", i-1)))
			src.addManager(fmt.Sprintf("org-%d", i), fmt.Sprintf("user-%d", i), auth.RoleOwner)
		}

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, fmt.Sprintf("org-%d", depth))
		require.NoError(t, err)
		assert.Len(t, managers, depth+1)

		// Each inherited entry keeps the ancestor it was first inherited
		// from: user-i entered at org-(i+1), tagged org-i.
		for i, m := range managers {
			want := depth - i
			assert.Equal(t, fmt.Sprintf("user-%d", want), m.UserID)
			if i == 0 {
				assert.Nil(t, m.SourceOrg)
			} else {
				require.NotNil(t, m.SourceOrg)
				assert.Equal(t, fmt.Sprintf("org-%d", want), *m.SourceOrg)
			}
		}
	})

	t.Run("traversal stops at depth cap", func(t *testing.T) {
		src := newFakeSource()
		total := MaxDepth + 4
		src.addOrg("org-0", nil)
		src.addManager("org-0", "user-0", auth.RoleOwner)
		for i := 1; i <= total; i++ {
			src.addOrg(fmt.Sprintf("org-%d", i), ptr(fmt.Sprintf("org-%d", i-1)))
			src.addManager(fmt.Sprintf("org-%d", i), fmt.Sprintf("user-%d", i), auth.RoleOwner)
		}

		managers, err := NewEvaluator(src).EffectiveManagers(ctx, fmt.Sprintf("org-%d", total))
		require.NoError(t, err)
		assert.Len(t, managers, MaxDepth+1)
	})
}

func TestCanManage(t *testing.T) {
	ctx := context.Background()

	buildHierarchy := func() *fakeSource {
		src := newFakeSource()
		src.addOrg("root", nil)
		src.addOrg("child", ptr("root"))
		src.addManager("root", "owner-1", auth.RoleOwner)
		src.addManager("root", "admin-1", auth.RoleAdministrator)
		src.addManager("root", "viewer-1", auth.RoleEventViewer)
		return src
	}

	t.Run("owner can manage everywhere", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		actor := auth.Actor{ID: "owner-1", Scope: auth.ScopeUser}

		for _, orgID := range []string{"root", "child"} {
			for _, action := range []Action{ActionInviteManager, ActionUpdateManagerRole, ActionDeleteManager} {
				ok, err := e.CanManage(ctx, actor, orgID, action)
				require.NoError(t, err)
				assert.True(t, ok, "owner on %s/%s", orgID, action)
			}
		}
	})

	t.Run("administrator denied at root, allowed below", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		actor := auth.Actor{ID: "admin-1", Scope: auth.ScopeUser}

		ok, err := e.CanManage(ctx, actor, "root", ActionInviteManager)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = e.CanManage(ctx, actor, "child", ActionInviteManager)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("event roles never manage", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		actor := auth.Actor{ID: "viewer-1", Scope: auth.ScopeUser}

		for _, orgID := range []string{"root", "child"} {
			ok, err := e.CanManage(ctx, actor, orgID, ActionDeleteManager)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("non-manager denied", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		ok, err := e.CanManage(ctx, auth.Actor{ID: "stranger", Scope: auth.ScopeUser}, "child", ActionInviteManager)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("admin scope bypasses role checks", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		ok, err := e.CanManage(ctx, auth.Actor{ID: "a-9", Scope: auth.ScopeAdmin}, "root", ActionDeleteManager)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing organization is an error, not a denial", func(t *testing.T) {
		e := NewEvaluator(buildHierarchy())
		_, err := e.CanManage(ctx, auth.Actor{ID: "owner-1", Scope: auth.ScopeUser}, "ghost", ActionInviteManager)
		assert.ErrorIs(t, err, ErrOrgNotFound)
	})
}
