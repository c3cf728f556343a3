package orgs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/perm"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func orgRow(id, name, slug string, partOf *string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "description", "website", "email",
		"slug", "tier", "part_of", "created_by", "created_at", "updated_at"}).
		AddRow(id, name, "", "", "", slug, "free", partOf, "u1", now, now)
}

func edgeRow(id, userID, orgID string, role auth.Role, confirmed bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "org_id", "role", "confirmed",
		"public", "created_at", "updated_at"}).
		AddRow(id, userID, orgID, role, confirmed, false, now, now)
}

func TestGetOrganization(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, description, website, email, slug, tier, part_of").
			WithArgs("o1").
			WillReturnRows(orgRow("o1", "Acme", "acme-1a2b3c4d", nil))

		org, err := store.GetOrganization(context.Background(), "o1")
		require.NoError(t, err)
		assert.Equal(t, "Acme", org.Name)
		assert.Nil(t, org.PartOf)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, description, website, email, slug, tier, part_of").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "website",
				"email", "slug", "tier", "part_of", "created_by", "created_at", "updated_at"}))

		_, err := store.GetOrganization(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInsertOrganization(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("fills timestamps", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("INSERT INTO organizations").
			WithArgs("o1", "Acme", "", "", "", "acme-1a2b3c4d", TierFree, nil, "u1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		org := &Organization{ID: "o1", Name: "Acme", Slug: "acme-1a2b3c4d", Tier: TierFree, CreatedBy: "u1"}
		require.NoError(t, store.InsertOrganization(context.Background(), org))
		assert.Equal(t, now, org.CreatedAt)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO organizations").
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.InsertOrganization(context.Background(), &Organization{ID: "o2", Name: "Acme", Slug: "taken", Tier: TierFree})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "slug", verr.Field)
	})
}

func TestInsertEdge(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("created", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("INSERT INTO manage_edges").
			WithArgs("e1", "u1", "o1", auth.RoleEventManager, false, false).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		edge := &ManageEdge{ID: "e1", UserID: "u1", OrgID: "o1", Role: auth.RoleEventManager}
		require.NoError(t, store.InsertEdge(context.Background(), edge))
	})

	t.Run("duplicate pair", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO manage_edges").
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.InsertEdge(context.Background(), &ManageEdge{ID: "e2", UserID: "u1", OrgID: "o1", Role: auth.RoleOwner})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestDeleteEdge(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM manage_edges").
			WithArgs("e1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.DeleteEdge(context.Background(), "e1"))
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM manage_edges").
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.DeleteEdge(context.Background(), "ghost"), ErrEdgeNotFound)
	})
}

func TestLocalManagers(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT user_id, role FROM manage_edges").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).
			AddRow("u1", auth.RoleOwner).
			AddRow("u2", auth.RoleEventViewer))

	managers, err := store.LocalManagers(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, managers, 2)
	assert.Equal(t, perm.Manager{UserID: "u1", Role: auth.RoleOwner}, managers[0])
	assert.Equal(t, perm.Manager{UserID: "u2", Role: auth.RoleEventViewer}, managers[1])
}

func TestOrganizationSource(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("maps to hierarchy view", func(t *testing.T) {
		parent := "root"
		mock.ExpectQuery("SELECT id, part_of FROM organizations").
			WithArgs("child").
			WillReturnRows(sqlmock.NewRows([]string{"id", "part_of"}).AddRow("child", parent))

		org, err := store.Organization(context.Background(), "child")
		require.NoError(t, err)
		require.NotNil(t, org.PartOf)
		assert.Equal(t, "root", *org.PartOf)
	})

	t.Run("missing org", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, part_of FROM organizations").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "part_of"}))

		_, err := store.Organization(context.Background(), "ghost")
		assert.ErrorIs(t, err, perm.ErrOrgNotFound)
	})
}
