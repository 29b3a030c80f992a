package events

import "github.com/spec-kit/helpdesk/internal/domain"

// Type enumerates supported event discriminants.
type Type string

const (
	TypeTicketCreated      Type = "ticket_created"
	TypeTicketStatusUpdate Type = "ticket_status_update"
	TypeTicketAssigned     Type = "ticket_assigned"
	TypeNewMessage         Type = "new_message"
	TypeTicketUpdated      Type = "ticket_updated"
)

// Event is an immutable notification describing a completed ticket mutation.
// The struct is the wire form: it marshals directly to the JSON objects
// delivered to realtime clients.
type Event struct {
	Type     Type                `json:"type"`
	Ticket   *domain.Ticket      `json:"ticket,omitempty"`
	Status   domain.TicketStatus `json:"status,omitempty"`
	Assignee *string             `json:"assignee,omitempty"`
	Message  *domain.Message     `json:"message,omitempty"`
	TicketID string              `json:"ticketId,omitempty"`
	Action   string              `json:"action,omitempty"`
}

// TicketCreated builds the event published after a new ticket is persisted.
func TicketCreated(ticket *domain.Ticket) Event {
	return Event{Type: TypeTicketCreated, Ticket: ticket, Action: "create"}
}

// StatusChanged builds the event published after a status mutation.
func StatusChanged(ticket *domain.Ticket) Event {
	return Event{Type: TypeTicketStatusUpdate, Ticket: ticket, Status: ticket.Status}
}

// Assigned builds the event published after an assignee mutation.
func Assigned(ticket *domain.Ticket) Event {
	return Event{Type: TypeTicketAssigned, Ticket: ticket, Assignee: ticket.AssignedTo}
}

// MessageAppended builds the event published after a thread append.
func MessageAppended(ticket *domain.Ticket, message *domain.Message) Event {
	return Event{Type: TypeNewMessage, Ticket: ticket, Message: message, TicketID: ticket.ID}
}

// TicketUpdated builds the catch-all event published after every successful
// mutation, changed fields or not.
func TicketUpdated(ticket *domain.Ticket) Event {
	return Event{Type: TypeTicketUpdated, Ticket: ticket, Action: "update"}
}
