package orgs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orgbase/orgbase/pkg/auth"
)

var (
	// ErrNotFound is returned when an organization reference does not exist.
	ErrNotFound = errors.New("organization not found")

	// ErrEdgeNotFound is returned when a manage edge does not exist, including
	// when a concurrent transition already removed it.
	ErrEdgeNotFound = errors.New("manage edge not found")

	// ErrConflict is returned when an invite hits the unique (user,
	// organization) constraint.
	ErrConflict = errors.New("manage edge already exists")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Tier is the subscription tier of an organization.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierBusiness, TierEnterprise:
		return true
	}
	return false
}

// CustomSlugAllowed reports whether the tier may choose its own slug.
func (t Tier) CustomSlugAllowed() bool {
	return t == TierBusiness || t == TierEnterprise
}

// Organization is a node of the hierarchy. PartOf links to the single parent
// organization, if any; the managers view is derived, never stored.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	Email       string    `json:"email,omitempty"`
	Slug        string    `json:"slug"`
	Tier        Tier      `json:"tier"`
	PartOf      *string   `json:"part_of,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"updated"`
}

// OrgLogFields is the audit whitelist for organization updates.
var OrgLogFields = []string{"name", "description", "website", "email"}

// Record returns the audit record reference for the organization.
func (o *Organization) Record() string {
	return "organization:" + o.ID
}

// Snapshot returns the loggable view of the organization for diffing.
func (o *Organization) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"name":        o.Name,
		"description": o.Description,
		"website":     o.Website,
		"email":       o.Email,
	}
}

// ManageEdge relates a user to an organization with a role. An edge starts
// unconfirmed (an invitation) and either becomes confirmed or is deleted;
// confirmed never reverts.
type ManageEdge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	OrgID     string    `json:"org"`
	Role      auth.Role `json:"role"`
	Confirmed bool      `json:"confirmed"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// EdgeLogFields is the audit whitelist for manage edge updates.
var EdgeLogFields = []string{"confirmed", "public", "role"}

// Record returns the audit record reference for the edge.
func (e *ManageEdge) Record() string {
	return "manage_edge:" + e.ID
}

// Snapshot returns the loggable view of the edge for diffing.
func (e *ManageEdge) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"confirmed": e.Confirmed,
		"public":    e.Public,
		"role":      e.Role,
	}
}

// CreateOrgRequest carries the fields a caller may set at creation time.
// Slug is optional and tier-gated; PartOf requires management rights on the
// parent.
type CreateOrgRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Website     string  `json:"website,omitempty"`
	Email       string  `json:"email"`
	Slug        string  `json:"slug,omitempty"`
	PartOf      *string `json:"part_of,omitempty"`
}

// UpdateOrgRequest carries a partial organization update; nil fields are left
// untouched.
type UpdateOrgRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
	Email       *string `json:"email,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Tier        *Tier   `json:"tier,omitempty"`
	PartOf      *string `json:"part_of,omitempty"`
}

// generateSlug derives a URL-safe slug from a name plus a short random
// suffix so organizations on tiers without custom slugs never collide.
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	slug = strings.Trim(slug, "-")
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
