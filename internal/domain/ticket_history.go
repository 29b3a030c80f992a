package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee TicketChangeType = "ASSIGNEE_CHANGE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string           `json:"id"`
	TicketID    string           `json:"ticketId"`
	ChangedByID string           `json:"changedBy"`
	ChangeType  TicketChangeType `json:"changeType"`
	OldValue    map[string]any   `json:"oldValue"`
	NewValue    map[string]any   `json:"newValue"`
	CreatedAt   time.Time        `json:"createdAt"`
}
