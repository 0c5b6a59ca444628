package rbac

// Role names. Keep these stable; they are part of auth contracts and
// of the notification fan-out's role-scoped delivery.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleOperator   = "operator"
)

// SupervisoryRoles receive every call-event notification regardless of target.
func SupervisoryRoles() []string {
	return []string{RoleAdmin, RoleManager, RoleSupervisor}
}

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnown(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleSupervisor, RoleOperator:
		return true
	default:
		return false
	}
}
