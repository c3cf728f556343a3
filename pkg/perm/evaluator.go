package perm

import (
	"context"
	"errors"
	"fmt"

	"github.com/orgbase/orgbase/pkg/auth"
)

// MaxDepth caps hierarchy traversal. An organization chain deeper than this
// stops contributing inherited managers rather than recursing further.
const MaxDepth = 16

// ErrOrgNotFound is returned when the organization reference itself does not
// exist. Ordinary authorization denial is a false result, not an error.
var ErrOrgNotFound = errors.New("organization not found")

// Action is a management operation subject to authorization.
type Action string

const (
	ActionInviteManager     Action = "inviteManager"
	ActionUpdateManagerRole Action = "updateManagerRole"
	ActionDeleteManager     Action = "deleteManager"
)

// Org is the slice of organization state the evaluator needs.
type Org struct {
	ID     string
	PartOf *string
}

// Manager is a confirmed manage edge directly on an organization.
type Manager struct {
	UserID string
	Role   auth.Role
}

// EffectiveManager is one entry of the derived managers view. SourceOrg is
// nil for a direct manager; for an inherited manager it is the first ancestor
// organization at which the manager entered the chain. Further ancestors never
// re-tag an entry.
type EffectiveManager struct {
	UserID    string    `json:"user"`
	Role      auth.Role `json:"role"`
	SourceOrg *string   `json:"org,omitempty"`
}

// Source provides read access to the membership graph. Implementations back
// it with a database snapshot; one evaluator call must observe one snapshot.
type Source interface {
	// Organization returns the organization or ErrOrgNotFound.
	Organization(ctx context.Context, id string) (*Org, error)

	// LocalManagers returns the confirmed manage edges directly on the
	// organization, in stable order.
	LocalManagers(ctx context.Context, orgID string) ([]Manager, error)
}

// Evaluator derives effective managers and authorization decisions.
type Evaluator struct {
	source Source
}

// NewEvaluator creates an evaluator over the given source.
func NewEvaluator(source Source) *Evaluator {
	return &Evaluator{source: source}
}

// EffectiveManagers returns the combined manager list for an organization:
// direct managers first (untagged), then the parent's already-combined list
// with previously-untagged entries tagged with the parent's ID. No
// deduplication is performed; the same user may appear multiple times with
// different roles or sources, and consumers decide precedence.
func (e *Evaluator) EffectiveManagers(ctx context.Context, orgID string) ([]EffectiveManager, error) {
	return e.effectiveManagers(ctx, orgID, 0)
}

func (e *Evaluator) effectiveManagers(ctx context.Context, orgID string, depth int) ([]EffectiveManager, error) {
	org, err := e.source.Organization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	local, err := e.source.LocalManagers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load managers of %s: %w", orgID, err)
	}

	managers := make([]EffectiveManager, 0, len(local))
	for _, m := range local {
		managers = append(managers, EffectiveManager{UserID: m.UserID, Role: m.Role})
	}

	if org.PartOf == nil || depth >= MaxDepth {
		return managers, nil
	}

	inherited, err := e.effectiveManagers(ctx, *org.PartOf, depth+1)
	if err != nil {
		return nil, err
	}
	for _, m := range inherited {
		if m.SourceOrg == nil {
			// First ancestor the entry was inherited from; kept for good
			// on the way further down.
			m.SourceOrg = org.PartOf
		}
		managers = append(managers, m)
	}

	return managers, nil
}

// CanManage reports whether the actor may perform the action on the
// organization. All three manager actions share one rule; the action is part
// of the signature because it is re-evaluated per operation, never cached.
// Self-removal from an edge is handled by the membership service, not here.
func (e *Evaluator) CanManage(ctx context.Context, actor auth.Actor, orgID string, action Action) (bool, error) {
	return e.ManagesOrg(ctx, actor, orgID)
}

// ManagesOrg reports whether the actor holds management rights over the
// organization. Owners may act anywhere they are effective managers;
// administrators may act everywhere except at a root organization. Admin-scope
// actors bypass the role check entirely.
func (e *Evaluator) ManagesOrg(ctx context.Context, actor auth.Actor, orgID string) (bool, error) {
	org, err := e.source.Organization(ctx, orgID)
	if err != nil {
		return false, err
	}

	if actor.IsAdmin() {
		return true, nil
	}

	managers, err := e.effectiveManagers(ctx, orgID, 0)
	if err != nil {
		return false, err
	}

	for _, m := range managers {
		if m.UserID != actor.ID {
			continue
		}
		switch m.Role {
		case auth.RoleOwner:
			return true, nil
		case auth.RoleAdministrator:
			if org.PartOf != nil {
				return true, nil
			}
		}
	}

	return false, nil
}
