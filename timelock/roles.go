package timelock

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"governance-project/models"
)

// checkRoleInvariants runs after every grant, revoke and renounce. Every
// change must bump the version, and the table may only hold known roles
// with unique members.
func checkRoleInvariants(before, after *models.RoleTable) error {
	changed := !sameMembers(before, after)
	switch {
	case after.Version < before.Version:
		return fmt.Errorf("%w: version went from %d to %d", ErrRoleInvariant, before.Version, after.Version)
	case changed && after.Version == before.Version:
		return fmt.Errorf("%w: membership changed without a version bump", ErrRoleInvariant)
	}
	for role, members := range after.Members {
		if !role.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrRoleInvariant, role)
		}
		seen := make(map[common.Address]struct{}, len(members))
		for _, m := range members {
			if _, dup := seen[m]; dup {
				return fmt.Errorf("%w: %s listed twice for %s", ErrRoleInvariant, m.Hex(), role)
			}
			seen[m] = struct{}{}
		}
	}
	return nil
}

func sameMembers(a, b *models.RoleTable) bool {
	for _, role := range models.AllRoles {
		if len(a.Members[role]) != len(b.Members[role]) {
			return false
		}
		for _, m := range a.Members[role] {
			if !b.Has(role, m) {
				return false
			}
		}
	}
	return true
}
