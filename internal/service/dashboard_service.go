package service

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// DashboardService aggregates helpdesk counters for staff views.
type DashboardService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
}

// NewDashboardService builds the service.
func NewDashboardService(tickets repository.TicketRepository, users repository.UserRepository) *DashboardService {
	return &DashboardService{tickets: tickets, users: users}
}

// TicketCounts groups ticket totals by status.
type TicketCounts struct {
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Closed     int64 `json:"closed"`
}

// UserCounts groups account totals.
type UserCounts struct {
	Total  int64 `json:"total"`
	Agents int64 `json:"agents"`
}

// Summary is the dashboard overview payload.
type Summary struct {
	Tickets TicketCounts `json:"tickets"`
	Users   UserCounts   `json:"users"`
}

// AgentRef identifies an agent in stats payloads.
type AgentRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AgentStat reports the assigned-ticket load of one agent.
type AgentStat struct {
	Agent       AgentRef `json:"agent"`
	TicketCount int64    `json:"ticketCount"`
}

// GetSummary computes ticket and account totals.
func (s *DashboardService) GetSummary(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	var err error
	if summary.Tickets.Open, err = s.tickets.CountByStatus(ctx, domain.TicketStatusOpen); err != nil {
		return nil, apperrors.MapError(err)
	}
	if summary.Tickets.InProgress, err = s.tickets.CountByStatus(ctx, domain.TicketStatusInProgress); err != nil {
		return nil, apperrors.MapError(err)
	}
	if summary.Tickets.Closed, err = s.tickets.CountByStatus(ctx, domain.TicketStatusClosed); err != nil {
		return nil, apperrors.MapError(err)
	}
	if summary.Users.Total, err = s.users.CountAll(ctx); err != nil {
		return nil, apperrors.MapError(err)
	}
	if summary.Users.Agents, err = s.users.CountByRole(ctx, domain.RoleAgent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return summary, nil
}

// GetAgentStats computes per-agent assigned-ticket counts.
func (s *DashboardService) GetAgentStats(ctx context.Context) ([]AgentStat, error) {
	agents, err := s.users.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := make([]AgentStat, 0, len(agents))
	for _, agent := range agents {
		count, err := s.tickets.CountByAssignee(ctx, agent.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		stats = append(stats, AgentStat{
			Agent:       AgentRef{ID: agent.ID, Email: agent.Email},
			TicketCount: count,
		})
	}
	return stats, nil
}
