package domain

import "time"

// Role enumerates access levels for helpdesk accounts.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAgent || r == RoleAdmin
}

// CanBeAssignee reports whether tickets may be assigned to accounts of this role.
func (r Role) CanBeAssignee() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is the domain model for every account: customers who file tickets and
// the agents/admins who work them.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
