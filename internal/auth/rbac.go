package auth

import (
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
)

// NormalizeRole maps a role claim onto a known role, case-insensitively.
// Unknown values fall back to the least privileged role.
func NormalizeRole(role string) entities.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case strings.ToLower(string(entities.RoleAdmin)):
		return entities.RoleAdmin
	default:
		return entities.RoleDefaultUser
	}
}

func HasRole(role string, allowed ...entities.Role) bool {
	current := NormalizeRole(role)
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == entities.RoleAdmin
}
