package orgs

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/perm"
	"github.com/orgbase/orgbase/pkg/users"
)

// ListEdges returns every manage edge of an organization, pending invites
// included. Callers must hold management rights over the organization.
func (s *PostgresService) ListEdges(ctx context.Context, actor auth.Actor, orgID string) ([]*ManageEdge, error) {
	allowed, err := perm.NewEvaluator(s.store).ManagesOrg(ctx, actor, orgID)
	if err != nil {
		return nil, mapPermErr(err)
	}
	if !allowed {
		return nil, auth.ErrPermissionDenied
	}
	return s.store.ListEdges(ctx, orgID)
}

// ListUserEdges returns the manage edges of a user. Users see their own
// edges; admins see anyone's.
func (s *PostgresService) ListUserEdges(ctx context.Context, actor auth.Actor, userID string) ([]*ManageEdge, error) {
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, auth.ErrPermissionDenied
	}
	return s.store.ListEdgesForUser(ctx, userID)
}

// Invite creates an unconfirmed manage edge. The invited user holds no
// management rights until they accept.
func (s *PostgresService) Invite(ctx context.Context, actor auth.Actor, orgID, userID string, role auth.Role) (*ManageEdge, error) {
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}

	edge := &ManageEdge{
		ID:     uuid.NewString(),
		UserID: userID,
		OrgID:  orgID,
		Role:   role,
	}
	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		ev := perm.NewEvaluator(store)
		allowed, err := ev.CanManage(ctx, actor, orgID, perm.ActionInviteManager)
		if err != nil {
			return mapPermErr(err)
		}
		if !allowed {
			return auth.ErrPermissionDenied
		}

		exists, err := store.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return users.ErrNotFound
		}

		if err := store.InsertEdge(ctx, edge); err != nil {
			return err
		}
		return s.recorder.RecordCreate(ctx, tx, edge.Record())
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// Accept confirms a pending invite. Only the invited user, or an admin, can
// accept. Confirmation is one-way.
func (s *PostgresService) Accept(ctx context.Context, actor auth.Actor, edgeID string) (*ManageEdge, error) {
	var accepted *ManageEdge
	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		edge, err := store.GetEdgeForUpdate(ctx, edgeID)
		if err != nil {
			return err
		}
		if edge.UserID != actor.ID && !actor.IsAdmin() {
			return auth.ErrPermissionDenied
		}
		if edge.Confirmed {
			accepted = edge
			return nil
		}

		before := edge.Snapshot()
		edge.Confirmed = true
		if err := store.UpdateEdge(ctx, edge); err != nil {
			return err
		}
		if err := s.recorder.RecordUpdate(ctx, tx, edge.Record(), before, edge.Snapshot(), EdgeLogFields); err != nil {
			return err
		}
		accepted = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// Deny removes a pending invite. Only the invited user can deny; everyone
// else goes through Revoke.
func (s *PostgresService) Deny(ctx context.Context, actor auth.Actor, edgeID string) error {
	return s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		edge, err := store.GetEdgeForUpdate(ctx, edgeID)
		if err != nil {
			return err
		}
		if edge.UserID != actor.ID && !actor.IsAdmin() {
			return auth.ErrPermissionDenied
		}
		if edge.Confirmed {
			return ErrEdgeNotFound
		}
		return s.deleteEdge(ctx, store, tx, edge)
	})
}

// Revoke removes a manage edge. Users can always remove themselves; removing
// anyone else requires management rights over the organization.
func (s *PostgresService) Revoke(ctx context.Context, actor auth.Actor, edgeID string) error {
	return s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		edge, err := store.GetEdgeForUpdate(ctx, edgeID)
		if err != nil {
			return err
		}
		if edge.UserID != actor.ID {
			ev := perm.NewEvaluator(store)
			allowed, err := ev.CanManage(ctx, actor, edge.OrgID, perm.ActionDeleteManager)
			if err != nil {
				return mapPermErr(err)
			}
			if !allowed {
				return auth.ErrPermissionDenied
			}
		}
		return s.deleteEdge(ctx, store, tx, edge)
	})
}

// UpdateEdgeRole changes the role carried by a manage edge.
func (s *PostgresService) UpdateEdgeRole(ctx context.Context, actor auth.Actor, edgeID string, role auth.Role) (*ManageEdge, error) {
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}

	var updated *ManageEdge
	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		edge, err := store.GetEdgeForUpdate(ctx, edgeID)
		if err != nil {
			return err
		}

		ev := perm.NewEvaluator(store)
		allowed, err := ev.CanManage(ctx, actor, edge.OrgID, perm.ActionUpdateManagerRole)
		if err != nil {
			return mapPermErr(err)
		}
		if !allowed {
			return auth.ErrPermissionDenied
		}

		before := edge.Snapshot()
		edge.Role = role
		if err := store.UpdateEdge(ctx, edge); err != nil {
			return err
		}
		if err := s.recorder.RecordUpdate(ctx, tx, edge.Record(), before, edge.Snapshot(), EdgeLogFields); err != nil {
			return err
		}
		updated = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetEdgeVisibility toggles whether a membership shows on the user's public
// profile. Only the edge's own user can change it.
func (s *PostgresService) SetEdgeVisibility(ctx context.Context, actor auth.Actor, edgeID string, public bool) (*ManageEdge, error) {
	var updated *ManageEdge
	err := s.withTx(ctx, func(store *PostgresStore, tx *sql.Tx) error {
		edge, err := store.GetEdgeForUpdate(ctx, edgeID)
		if err != nil {
			return err
		}
		if edge.UserID != actor.ID {
			return auth.ErrPermissionDenied
		}

		before := edge.Snapshot()
		edge.Public = public
		if err := store.UpdateEdge(ctx, edge); err != nil {
			return err
		}
		if err := s.recorder.RecordUpdate(ctx, tx, edge.Record(), before, edge.Snapshot(), EdgeLogFields); err != nil {
			return err
		}
		updated = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresService) deleteEdge(ctx context.Context, store *PostgresStore, tx *sql.Tx, edge *ManageEdge) error {
	if err := store.DeleteEdge(ctx, edge.ID); err != nil {
		return err
	}
	return s.recorder.RecordDelete(ctx, tx, edge.Record())
}
