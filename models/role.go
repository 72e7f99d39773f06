package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role is a named timelock capability
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleProposer  Role = "PROPOSER"
	RoleExecutor  Role = "EXECUTOR"
	RoleCanceller Role = "CANCELLER"
)

// AllRoles lists every known role
var AllRoles = []Role{RoleAdmin, RoleProposer, RoleExecutor, RoleCanceller}

// AnyoneAddress granted the executor role opens execution to every caller
var AnyoneAddress = common.Address{}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ID is the bytes32 role identifier used in calldata. The admin role is the zero hash.
func (r Role) ID() common.Hash {
	if r == RoleAdmin {
		return common.Hash{}
	}
	return crypto.Keccak256Hash([]byte(string(r) + "_ROLE"))
}

// RoleByID maps a calldata role identifier back to its Role
func RoleByID(id common.Hash) (Role, bool) {
	for _, r := range AllRoles {
		if r.ID() == id {
			return r, true
		}
	}
	return "", false
}

// RoleTable is the versioned set of role grants. Version increases on every change.
type RoleTable struct {
	Version uint64                    `json:"version"`
	Members map[Role][]common.Address `json:"members"`
}

func NewRoleTable() *RoleTable {
	return &RoleTable{Members: make(map[Role][]common.Address)}
}

func (t *RoleTable) Has(role Role, account common.Address) bool {
	for _, m := range t.Members[role] {
		if m == account {
			return true
		}
	}
	return false
}

// Add grants role and reports whether the table changed
func (t *RoleTable) Add(role Role, account common.Address) bool {
	if t.Has(role, account) {
		return false
	}
	if t.Members == nil {
		t.Members = make(map[Role][]common.Address)
	}
	t.Members[role] = append(t.Members[role], account)
	t.Version++
	return true
}

// Remove revokes role and reports whether the table changed
func (t *RoleTable) Remove(role Role, account common.Address) bool {
	members := t.Members[role]
	for i, m := range members {
		if m == account {
			t.Members[role] = append(members[:i:i], members[i+1:]...)
			t.Version++
			return true
		}
	}
	return false
}

// Clone returns a deep copy
func (t *RoleTable) Clone() *RoleTable {
	c := &RoleTable{Version: t.Version, Members: make(map[Role][]common.Address, len(t.Members))}
	for role, members := range t.Members {
		c.Members[role] = append([]common.Address(nil), members...)
	}
	return c
}
