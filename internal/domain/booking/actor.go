package booking

import "github.com/google/uuid"

// Role identifies the kind of participant issuing a lifecycle command.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// IsValid returns true if the role is a recognized participant role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated principal behind a lifecycle command.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
