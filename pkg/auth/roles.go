package auth

// Role is an organization-level management role carried on a manage edge.
type Role string

const (
	RoleOwner         Role = "owner"         // Full control, including root organizations
	RoleAdministrator Role = "administrator" // Full control below the root
	RoleEventManager  Role = "event_manager" // Can manage events
	RoleEventViewer   Role = "event_viewer"  // Read-only event access
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdministrator, RoleEventManager, RoleEventViewer:
		return true
	}
	return false
}
