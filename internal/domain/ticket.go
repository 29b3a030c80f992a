package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress || s == TicketStatusClosed
}

// CanTransition reports whether a status change is allowed. Every transition
// between known statuses is currently permitted; a tightened policy only
// needs to change this table.
func CanTransition(_, to TicketStatus) bool {
	return to.Valid()
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	return p == TicketPriorityLow || p == TicketPriorityMedium || p == TicketPriorityHigh
}

// Ticket is the aggregate for support requests. Messages is an append-only
// thread in insertion order.
type Ticket struct {
	ID          string         `json:"id"`
	ExternalKey string         `json:"externalKey"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	CreatedBy   string         `json:"createdBy"`
	AssignedTo  *string        `json:"assignedTo"`
	Submitter   string         `json:"submitter,omitempty"`
	Messages    []Message      `json:"messages"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
