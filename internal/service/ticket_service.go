package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows: creation, visibility-scoped
// reads and the update state machine.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	policy     auth.Policy
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput is the mutation command: each field is optional and all
// may be present at once.
type TicketUpdateInput struct {
	Status     *domain.TicketStatus
	AssignedTo *string
	Message    *string
}

// MutationResult reports what a mutation actually did. Fields the requester
// was not allowed to touch are listed in Dropped instead of failing the
// whole command.
type MutationResult struct {
	Ticket          *domain.Ticket
	StatusChanged   bool
	AssigneeChanged bool
	MessageAdded    bool
	Message         *domain.Message
	Dropped         []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket creates a ticket for the requester and announces it.
func (s *TicketService) CreateTicket(ctx context.Context, requester auth.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		CreatedBy:   requester.ID,
		Submitter:   requester.Email,
		Messages:    []domain.Message{},
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.TicketCreated(ticket))
	return ticket, nil
}

// ListTickets returns tickets visible to the requester: customers see their
// own, agents see assigned-or-unassigned, admins see everything.
func (s *TicketService) ListTickets(ctx context.Context, requester auth.Identity, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListVisible(ctx, requester.ID, requester.Role, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches one ticket with its full thread.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ApplyUpdate runs the mutation state machine. Each requested field change
// is independently accepted or dropped: the status and assignee fields are
// policy-gated and no-op when equal to the current value, the message field
// appends to the thread. The ticket is persisted once, then events are
// emitted in fixed order (status, assignee, message) followed by the
// unconditional ticket_updated signal.
func (s *TicketService) ApplyUpdate(ctx context.Context, requester auth.Identity, ticketID string, input TicketUpdateInput) (*MutationResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	result := &MutationResult{Ticket: ticket}
	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo

	if input.Status != nil {
		switch {
		case !s.policy.CanMutateStatus(requester.Role):
			result.Dropped = append(result.Dropped, "status")
		case !domain.CanTransition(ticket.Status, *input.Status):
			result.Dropped = append(result.Dropped, "status")
		case ticket.Status != *input.Status:
			ticket.Status = *input.Status
			result.StatusChanged = true
		}
	}

	if input.AssignedTo != nil && *input.AssignedTo != "" {
		accepted, err := s.resolveAssignee(ctx, requester, *input.AssignedTo)
		if err != nil {
			return nil, err
		}
		switch {
		case !accepted:
			result.Dropped = append(result.Dropped, "assignedTo")
		case oldAssignee == nil || *oldAssignee != *input.AssignedTo:
			assignee := *input.AssignedTo
			ticket.AssignedTo = &assignee
			result.AssigneeChanged = true
		}
	}

	var msg *domain.Message
	if input.Message != nil && strings.TrimSpace(*input.Message) != "" {
		if !s.policy.CanMessage(requester.Role) {
			result.Dropped = append(result.Dropped, "message")
		} else {
			msg = &domain.Message{
				TicketID: ticket.ID,
				SenderID: requester.ID,
				Body:     strings.TrimSpace(*input.Message),
			}
		}
	}

	// One transactional write: the thread append and the ticket row commit
	// together or not at all.
	if err := s.tickets.UpdateWithMessage(ctx, ticket, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if msg != nil {
		ticket.Messages = append(ticket.Messages, *msg)
		result.MessageAdded = true
		result.Message = msg
	}

	if result.StatusChanged {
		s.recordChange(ctx, requester.ID, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus},
			map[string]any{"status": ticket.Status})
	}
	if result.AssigneeChanged {
		s.recordChange(ctx, requester.ID, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assignedTo": oldAssignee},
			map[string]any{"assignedTo": ticket.AssignedTo})
	}

	if result.StatusChanged {
		s.publishEvent(ctx, events.StatusChanged(ticket))
	}
	if result.AssigneeChanged {
		s.publishEvent(ctx, events.Assigned(ticket))
	}
	if result.MessageAdded {
		s.publishEvent(ctx, events.MessageAppended(ticket, result.Message))
	}
	s.publishEvent(ctx, events.TicketUpdated(ticket))

	return result, nil
}

// ListHistory returns the audit trail for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// resolveAssignee reports whether the requested assignee may be applied:
// the requester must hold reassignment rights and the target must exist
// with an assignable role. A target that fails either check drops the field
// rather than failing the command.
func (s *TicketService) resolveAssignee(ctx context.Context, requester auth.Identity, assigneeID string) (bool, error) {
	if !s.policy.CanReassign(requester.Role) {
		return false, nil
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	return assignee.Role.CanBeAssignee(), nil
}

func (s *TicketService) recordChange(ctx context.Context, actorID, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	// Best effort: a failed audit write never rolls back the mutation.
	_ = s.history.Create(ctx, entry)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
