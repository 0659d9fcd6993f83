// Package rbac maps the stored role names onto an enumerated role set and
// decides which workflow actions each role may perform.
package rbac

import "strings"

type Role string
type Action string

// Role values are the names stored in the roles table.
const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEvaluator  Role = "Evaluador"
	RoleTeacher    Role = "Profesor"
	RoleUnknown    Role = ""
)

const (
	ActionRegister         Action = "register"
	ActionReadOwn          Action = "read_own"
	ActionReadAll          Action = "read_all"
	ActionRequestEdit      Action = "request_edit"
	ActionEditUnrestricted Action = "edit_unrestricted"
	ActionApproveEdit      Action = "approve_edit"
	ActionListPermissions  Action = "list_permissions"
	ActionDetailForm       Action = "detail_form"
	ActionSendResult       Action = "send_result"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin, RoleEvaluator:
		return action == ActionRegister || action == ActionReadOwn || action == ActionReadAll || action == ActionRequestEdit
	case RoleTeacher:
		return action == ActionRegister || action == ActionReadOwn || action == ActionRequestEdit
	default:
		return false
	}
}

// Parse matches a stored role name case-insensitively. Unrecognised names
// map to RoleUnknown.
func Parse(name string) Role {
	trimmed := strings.TrimSpace(name)
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin, RoleEvaluator, RoleTeacher} {
		if strings.EqualFold(trimmed, string(role)) {
			return role
		}
	}
	return RoleUnknown
}

// Privileged reports whether any of the role names bypasses the edit
// permission workflow.
func Privileged(roleNames []string) bool {
	return CanAny(roleNames, ActionEditUnrestricted)
}

func CanAny(roleNames []string, action Action) bool {
	for _, name := range roleNames {
		if Can(Parse(name), action) {
			return true
		}
	}
	return false
}

// OwnerScoped reports whether role only sees the experiences it authored.
func OwnerScoped(role Role) bool {
	return Can(role, ActionReadOwn) && !Can(role, ActionReadAll)
}
