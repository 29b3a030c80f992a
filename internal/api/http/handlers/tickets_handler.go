package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TicketsHandler exposes ticket lifecycle endpoints.
type TicketsHandler struct {
	ticketService *service.TicketService
}

// NewTicketsHandler builds the handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{ticketService: ticketService}
}

// Create opens a new ticket owned by the caller.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := validateCreateTicket(req); err != nil {
		return err
	}

	ticket, err := h.ticketService.CreateTicket(c.Context(), identity, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// List returns tickets visible to the caller.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	limit, offset := pagination(c)
	tickets, err := h.ticketService.ListTickets(c.Context(), identity, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketListResponse{Tickets: tickets, Total: len(tickets)})
}

// Get returns one ticket with its message thread.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.ticketService.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Update applies a combined mutation: status, assignee and message are each
// optional and independently accepted or dropped.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := validateUpdateTicket(req); err != nil {
		return err
	}

	input := service.TicketUpdateInput{
		Status:  req.Status,
		Message: req.Message,
	}
	// An empty assignedTo string means "leave unchanged", matching clients
	// that always serialize the field.
	if req.AssignedTo != nil && strings.TrimSpace(*req.AssignedTo) != "" {
		input.AssignedTo = req.AssignedTo
	}

	result, err := h.ticketService.ApplyUpdate(c.Context(), identity, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(result.Ticket)
}

// History returns the audit trail for a ticket.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	entries, err := h.ticketService.ListHistory(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": entries, "total": len(entries)})
}

func validateCreateTicket(req dto.CreateTicketRequest) error {
	details := map[string]any{}
	if len(strings.TrimSpace(req.Subject)) < 3 {
		details["subject"] = "must be at least 3 characters"
	}
	if len(strings.TrimSpace(req.Description)) < 10 {
		details["description"] = "must be at least 10 characters"
	}
	if req.Priority != "" && !req.Priority.Valid() {
		details["priority"] = "must be one of Low, Medium, High"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}
	return nil
}

func validateUpdateTicket(req dto.UpdateTicketRequest) error {
	details := map[string]any{}
	if req.Status != nil && !req.Status.Valid() {
		details["status"] = "must be one of " + strings.Join(statusNames(), ", ")
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}
	return nil
}

func statusNames() []string {
	return []string{
		string(domain.TicketStatusOpen),
		string(domain.TicketStatusInProgress),
		string(domain.TicketStatusClosed),
	}
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
