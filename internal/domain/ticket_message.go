package domain

import "time"

// Message captures one entry in a ticket's conversation thread. Immutable
// once appended.
type Message struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	SenderID  string    `json:"sender"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
