package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orgbase/orgbase/pkg/audit"
	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/perm"
)

// Service is the organization and membership lifecycle interface.
type Service interface {
	CreateOrganization(ctx context.Context, actor auth.Actor, req CreateOrgRequest) (*Organization, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	UpdateOrganization(ctx context.Context, actor auth.Actor, id string, req UpdateOrgRequest) (*Organization, error)
	DeleteOrganization(ctx context.Context, actor auth.Actor, id string) error

	EffectiveManagers(ctx context.Context, actor auth.Actor, orgID string) ([]perm.EffectiveManager, error)

	ListEdges(ctx context.Context, actor auth.Actor, orgID string) ([]*ManageEdge, error)
	ListUserEdges(ctx context.Context, actor auth.Actor, userID string) ([]*ManageEdge, error)
	Invite(ctx context.Context, actor auth.Actor, orgID, userID string, role auth.Role) (*ManageEdge, error)
	Accept(ctx context.Context, actor auth.Actor, edgeID string) (*ManageEdge, error)
	Deny(ctx context.Context, actor auth.Actor, edgeID string) error
	Revoke(ctx context.Context, actor auth.Actor, edgeID string) error
	UpdateEdgeRole(ctx context.Context, actor auth.Actor, edgeID string, role auth.Role) (*ManageEdge, error)
	SetEdgeVisibility(ctx context.Context, actor auth.Actor, edgeID string, public bool) (*ManageEdge, error)
}

// PostgresService implements Service. Every mutation is one transaction:
// permission check, state change, and audit entries commit together or not
// at all.
type PostgresService struct {
	db       *sql.DB
	store    *PostgresStore
	recorder *audit.Recorder
}

// NewPostgresService creates a PostgresService.
func NewPostgresService(db *sql.DB, recorder *audit.Recorder) *PostgresService {
	return &PostgresService{
		db:       db,
		store:    NewPostgresStore(db),
		recorder: recorder,
	}
}

func (s *PostgresService) withTx(ctx context.Context, fn func(store *PostgresStore, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.store.WithTx(tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateOrganization creates an organization and, for user-scope actors,
// atomically relates the creator as a confirmed owner.
func (s *PostgresService) CreateOrganization(ctx context.Context, actor auth.Actor, req CreateOrgRequest) (*Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	slug := req.Slug
	if slug != "" && !actor.IsAdmin() {
		// New organizations start on the free tier; custom slugs come
		// with business and enterprise.
		return nil, &ValidationError{Field: "slug", Reason: "custom slugs require a business or enterprise tier"}
	}
	if slug == "" {
		slug = generateSlug(name)
	}

	org := &Organization{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		Website:     req.Website,
		Email:       req.Email,
		Slug:        slug,
		Tier:        TierFree,
		PartOf:      req.PartOf,
		CreatedBy:   actor.ID,
	}

	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		if req.PartOf != nil {
			if err := s.checkParent(ctx, store, actor, org.ID, *req.PartOf); err != nil {
				return err
			}
		}

		if err := store.InsertOrganization(ctx, org); err != nil {
			return err
		}
		if err := s.recorder.RecordCreate(ctx, tx, org.Record()); err != nil {
			return err
		}

		if actor.IsAdmin() {
			return nil
		}
		edge := &ManageEdge{
			ID:        uuid.NewString(),
			UserID:    actor.ID,
			OrgID:     org.ID,
			Role:      auth.RoleOwner,
			Confirmed: true,
		}
		if err := store.InsertEdge(ctx, edge); err != nil {
			return err
		}
		return s.recorder.RecordCreate(ctx, tx, edge.Record())
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganization retrieves an organization by ID.
func (s *PostgresService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *PostgresService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.store.GetOrganizationBySlug(ctx, slug)
}

// UpdateOrganization applies a partial update. Whitelisted field changes are
// logged per field; tier, slug, and parent changes are permission-gated but
// not part of the audit whitelist.
func (s *PostgresService) UpdateOrganization(ctx context.Context, actor auth.Actor, id string, req UpdateOrgRequest) (*Organization, error) {
	var updated *Organization
	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		before, err := store.GetOrganizationForUpdate(ctx, id)
		if err != nil {
			return err
		}

		ev := perm.NewEvaluator(store)
		allowed, err := ev.ManagesOrg(ctx, actor, id)
		if err != nil {
			return mapPermErr(err)
		}
		if !allowed {
			return auth.ErrPermissionDenied
		}

		after := *before
		if req.Name != nil {
			after.Name = strings.TrimSpace(*req.Name)
			if after.Name == "" {
				return &ValidationError{Field: "name", Reason: "must not be empty"}
			}
		}
		if req.Description != nil {
			after.Description = *req.Description
		}
		if req.Website != nil {
			after.Website = *req.Website
		}
		if req.Email != nil {
			after.Email = *req.Email
		}
		if req.Tier != nil {
			if !actor.IsAdmin() {
				return auth.ErrPermissionDenied
			}
			if !req.Tier.Valid() {
				return &ValidationError{Field: "tier", Reason: "unknown tier"}
			}
			after.Tier = *req.Tier
		}
		if req.Slug != nil {
			if !actor.IsAdmin() && !after.Tier.CustomSlugAllowed() {
				return &ValidationError{Field: "slug", Reason: "custom slugs require a business or enterprise tier"}
			}
			if *req.Slug == "" {
				return &ValidationError{Field: "slug", Reason: "must not be empty"}
			}
			after.Slug = *req.Slug
		}
		if req.PartOf != nil {
			if err := s.checkParent(ctx, store, actor, id, *req.PartOf); err != nil {
				return err
			}
			after.PartOf = req.PartOf
		}

		if err := store.UpdateOrganization(ctx, &after); err != nil {
			return err
		}
		if err := s.recorder.RecordUpdate(ctx, tx, after.Record(), before.Snapshot(), after.Snapshot(), OrgLogFields); err != nil {
			return err
		}
		updated = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOrganization removes an organization. Incoming manage edges cascade
// away silently; the single DELETE log entry references the organization.
func (s *PostgresService) DeleteOrganization(ctx context.Context, actor auth.Actor, id string) error {
	return s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		org, err := store.GetOrganizationForUpdate(ctx, id)
		if err != nil {
			return err
		}

		ev := perm.NewEvaluator(store)
		allowed, err := ev.ManagesOrg(ctx, actor, id)
		if err != nil {
			return mapPermErr(err)
		}
		if !allowed {
			return auth.ErrPermissionDenied
		}

		if err := store.DeleteOrganization(ctx, id); err != nil {
			return err
		}
		return s.recorder.RecordDelete(ctx, tx, org.Record())
	})
}

// EffectiveManagers computes the derived managers view for an organization.
// The roster is visible to admins and to the organization's own managers.
func (s *PostgresService) EffectiveManagers(ctx context.Context, actor auth.Actor, orgID string) ([]perm.EffectiveManager, error) {
	ev := perm.NewEvaluator(s.store)
	if !actor.IsAdmin() {
		allowed, err := ev.ManagesOrg(ctx, actor, orgID)
		if err != nil {
			return nil, mapPermErr(err)
		}
		if !allowed {
			return nil, auth.ErrPermissionDenied
		}
	}

	managers, err := ev.EffectiveManagers(ctx, orgID)
	if err != nil {
		return nil, mapPermErr(err)
	}
	return managers, nil
}

// checkParent validates a prospective part_of link: the parent must exist,
// the actor must hold management rights over it, the link must not create a
// cycle, and the resulting chain must stay within the traversal depth cap.
func (s *PostgresService) checkParent(ctx context.Context, store *PostgresStore, actor auth.Actor, orgID, parentID string) error {
	if parentID == orgID {
		return &ValidationError{Field: "part_of", Reason: "organization cannot be part of itself"}
	}

	ev := perm.NewEvaluator(store)
	allowed, err := ev.ManagesOrg(ctx, actor, parentID)
	if err != nil {
		return mapPermErr(err)
	}
	if !allowed {
		return auth.ErrPermissionDenied
	}

	depth := 0
	cur := parentID
	for {
		if cur == orgID {
			return &ValidationError{Field: "part_of", Reason: "hierarchy must stay acyclic"}
		}
		depth++
		if depth > perm.MaxDepth {
			return &ValidationError{Field: "part_of", Reason: fmt.Sprintf("hierarchy depth exceeds %d", perm.MaxDepth)}
		}
		org, err := store.Organization(ctx, cur)
		if err != nil {
			return mapPermErr(err)
		}
		if org.PartOf == nil {
			return nil
		}
		cur = *org.PartOf
	}
}

func mapPermErr(err error) error {
	if errors.Is(err, perm.ErrOrgNotFound) {
		return ErrNotFound
	}
	return err
}
