package auth

import "github.com/spec-kit/helpdesk/internal/domain"

// Policy answers whether a role may perform a ticket mutation. It is pure:
// no state, no side effects, denial is simply false.
type Policy struct{}

// CanMutateStatus reports whether the role may change ticket status.
func (Policy) CanMutateStatus(role domain.Role) bool {
	return role == domain.RoleAgent || role == domain.RoleAdmin
}

// CanReassign reports whether the role may change the ticket assignee.
func (Policy) CanReassign(role domain.Role) bool {
	return role == domain.RoleAgent || role == domain.RoleAdmin
}

// CanMessage reports whether the role may append messages to a ticket it can
// view. Every authenticated role may.
func (Policy) CanMessage(role domain.Role) bool {
	return role.Valid()
}
