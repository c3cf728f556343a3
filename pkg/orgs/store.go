package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/orgbase/orgbase/pkg/perm"
	"github.com/orgbase/orgbase/pkg/storage/postgres"
)

const uniqueViolation = "23505"

// PostgresStore runs membership graph queries on a DBTX, so the same store
// code serves both plain reads and transactional mutations.
type PostgresStore struct {
	q postgres.DBTX
}

// NewPostgresStore creates a store reading and writing through db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// WithTx returns a store bound to the transaction.
func (s *PostgresStore) WithTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const orgColumns = `id, name, description, website, email, slug, tier, part_of, created_by, created_at, updated_at`

// GetOrganization retrieves an organization by ID.
func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.scanOrg(s.q.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE id = $1
	`, id))
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *PostgresStore) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.scanOrg(s.q.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE slug = $1
	`, slug))
}

func (s *PostgresStore) scanOrg(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.Description, &org.Website, &org.Email,
		&org.Slug, &org.Tier, &org.PartOf, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// InsertOrganization persists a new organization and fills in timestamps.
func (s *PostgresStore) InsertOrganization(ctx context.Context, org *Organization) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO organizations (id, name, description, website, email, slug, tier, part_of, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, org.ID, org.Name, org.Description, org.Website, org.Email, org.Slug, org.Tier,
		org.PartOf, org.CreatedBy).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &ValidationError{Field: "slug", Reason: "already taken"}
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// UpdateOrganization writes the full mutable row of an organization.
func (s *PostgresStore) UpdateOrganization(ctx context.Context, org *Organization) error {
	err := s.q.QueryRowContext(ctx, `
		UPDATE organizations
		SET name = $1, description = $2, website = $3, email = $4, slug = $5,
		    tier = $6, part_of = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`, org.Name, org.Description, org.Website, org.Email, org.Slug, org.Tier,
		org.PartOf, org.ID).Scan(&org.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &ValidationError{Field: "slug", Reason: "already taken"}
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// GetOrganizationForUpdate loads an organization with a row lock.
func (s *PostgresStore) GetOrganizationForUpdate(ctx context.Context, id string) (*Organization, error) {
	return s.scanOrg(s.q.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE id = $1 FOR UPDATE
	`, id))
}

// DeleteOrganization removes an organization; incoming manage edges cascade
// at the schema level.
func (s *PostgresStore) DeleteOrganization(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Organization implements perm.Source with the minimal hierarchy view.
func (s *PostgresStore) Organization(ctx context.Context, id string) (*perm.Org, error) {
	org := &perm.Org{}
	err := s.q.QueryRowContext(ctx, `
		SELECT id, part_of FROM organizations WHERE id = $1
	`, id).Scan(&org.ID, &org.PartOf)
	if err == sql.ErrNoRows {
		return nil, perm.ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// LocalManagers implements perm.Source: the confirmed manage edges directly
// on the organization, oldest first.
func (s *PostgresStore) LocalManagers(ctx context.Context, orgID string) ([]perm.Manager, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT user_id, role FROM manage_edges
		WHERE org_id = $1 AND confirmed = TRUE
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	defer rows.Close()

	var managers []perm.Manager
	for rows.Next() {
		var m perm.Manager
		if err := rows.Scan(&m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan manager: %w", err)
		}
		managers = append(managers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read managers: %w", err)
	}
	return managers, nil
}

// UserExists reports whether a user account exists. Invites resolve the
// invited user first so no dangling edge is ever persisted.
func (s *PostgresStore) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return exists, nil
}

const edgeColumns = `id, user_id, org_id, role, confirmed, public, created_at, updated_at`

// GetEdge retrieves a manage edge by ID.
func (s *PostgresStore) GetEdge(ctx context.Context, id string) (*ManageEdge, error) {
	return s.scanEdge(s.q.QueryRowContext(ctx, `
		SELECT `+edgeColumns+` FROM manage_edges WHERE id = $1
	`, id))
}

// GetEdgeForUpdate loads a manage edge with a row lock. Concurrent
// transitions on the same edge serialize here; the loser of a delete race
// sees ErrEdgeNotFound.
func (s *PostgresStore) GetEdgeForUpdate(ctx context.Context, id string) (*ManageEdge, error) {
	return s.scanEdge(s.q.QueryRowContext(ctx, `
		SELECT `+edgeColumns+` FROM manage_edges WHERE id = $1 FOR UPDATE
	`, id))
}

func (s *PostgresStore) scanEdge(row *sql.Row) (*ManageEdge, error) {
	edge := &ManageEdge{}
	err := row.Scan(&edge.ID, &edge.UserID, &edge.OrgID, &edge.Role, &edge.Confirmed,
		&edge.Public, &edge.CreatedAt, &edge.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manage edge: %w", err)
	}
	return edge, nil
}

// InsertEdge persists a new manage edge. A duplicate (user, organization)
// pair surfaces as ErrConflict.
func (s *PostgresStore) InsertEdge(ctx context.Context, edge *ManageEdge) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO manage_edges (id, user_id, org_id, role, confirmed, public)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, edge.ID, edge.UserID, edge.OrgID, edge.Role, edge.Confirmed, edge.Public).
		Scan(&edge.CreatedAt, &edge.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to create manage edge: %w", err)
	}
	return nil
}

// UpdateEdge writes the mutable fields of a manage edge.
func (s *PostgresStore) UpdateEdge(ctx context.Context, edge *ManageEdge) error {
	err := s.q.QueryRowContext(ctx, `
		UPDATE manage_edges SET role = $1, confirmed = $2, public = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, edge.Role, edge.Confirmed, edge.Public, edge.ID).Scan(&edge.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrEdgeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update manage edge: %w", err)
	}
	return nil
}

// DeleteEdge removes a manage edge.
func (s *PostgresStore) DeleteEdge(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM manage_edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete manage edge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

// ListEdges returns all manage edges on an organization, confirmed or not,
// oldest first.
func (s *PostgresStore) ListEdges(ctx context.Context, orgID string) ([]*ManageEdge, error) {
	return s.listEdges(ctx, `
		SELECT `+edgeColumns+` FROM manage_edges WHERE org_id = $1 ORDER BY created_at ASC
	`, orgID)
}

// ListEdgesForUser returns all manage edges held by a user, oldest first.
func (s *PostgresStore) ListEdgesForUser(ctx context.Context, userID string) ([]*ManageEdge, error) {
	return s.listEdges(ctx, `
		SELECT `+edgeColumns+` FROM manage_edges WHERE user_id = $1 ORDER BY created_at ASC
	`, userID)
}

func (s *PostgresStore) listEdges(ctx context.Context, query string, arg interface{}) ([]*ManageEdge, error) {
	rows, err := s.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list manage edges: %w", err)
	}
	defer rows.Close()

	var edges []*ManageEdge
	for rows.Next() {
		edge := &ManageEdge{}
		if err := rows.Scan(&edge.ID, &edge.UserID, &edge.OrgID, &edge.Role, &edge.Confirmed,
			&edge.Public, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manage edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manage edges: %w", err)
	}
	return edges, nil
}
