package domain

import "strings"

// rolePriority orders roles from most to least privileged. When a token
// carries several known roles the highest-priority one becomes the account's
// effective role.
var rolePriority = []RoleName{RoleAdmin, RoleManager, RoleEngineer, RoleUser}

// EffectiveRole collapses the raw realm role claims onto a single local role.
// Unknown claims (realm defaults, offline_access and the like) are ignored; no
// recognised claim at all yields RoleUser.
func EffectiveRole(claims []string) RoleName {
	seen := make(map[RoleName]struct{}, len(claims))
	for _, claim := range claims {
		role, err := ParseRole(strings.TrimSpace(claim))
		if err != nil {
			continue
		}
		seen[role] = struct{}{}
	}

	for _, role := range rolePriority {
		if _, ok := seen[role]; ok {
			return role
		}
	}

	return RoleUser
}

// VisibleGroups returns the role groups a viewer is allowed to list in the
// directory. Plain users see nobody but themselves, which is handled outside
// this table.
func VisibleGroups(viewer RoleName) map[RoleName]struct{} {
	switch viewer {
	case RoleAdmin:
		return map[RoleName]struct{}{
			RoleAdmin:    {},
			RoleManager:  {},
			RoleEngineer: {},
		}
	case RoleManager:
		return map[RoleName]struct{}{
			RoleManager:  {},
			RoleEngineer: {},
		}
	case RoleEngineer:
		return map[RoleName]struct{}{
			RoleEngineer: {},
		}
	default:
		return map[RoleName]struct{}{}
	}
}

// CanSeeRelations reports whether the viewer may see department and reporting
// manager details on returned entries. Allow-list semantics: any viewer with a
// non-empty visible group set qualifies, a plain user never does.
func CanSeeRelations(viewer RoleName) bool {
	return len(VisibleGroups(viewer)) > 0
}
