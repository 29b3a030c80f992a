package dto

import (
	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest is the combined mutation command: all three fields are
// optional and may be present simultaneously.
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus `json:"status"`
	AssignedTo *string              `json:"assignedTo"`
	Message    *string              `json:"message"`
}

// TicketListResponse wraps the visibility-filtered listing.
type TicketListResponse struct {
	Tickets []domain.Ticket `json:"tickets"`
	Total   int             `json:"total"`
}
