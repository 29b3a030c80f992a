package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AgentService manages agent accounts on behalf of admins.
type AgentService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewAgentService builds the service.
func NewAgentService(users repository.UserRepository, bcryptCost int) *AgentService {
	return &AgentService{users: users, bcryptCost: bcryptCost}
}

// ListAgents returns every agent account.
func (s *AgentService) ListAgents(ctx context.Context) ([]domain.User, error) {
	agents, err := s.users.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// CreateAgent provisions a new agent account.
func (s *AgentService) CreateAgent(ctx context.Context, email, password string) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already in use", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	agent := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAgent,
	}
	if err := s.users.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// DeleteAgent removes an agent account. Non-agent accounts are reported as
// not found rather than deleted.
func (s *AgentService) DeleteAgent(ctx context.Context, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
		}
		return apperrors.MapError(err)
	}
	if user.Role != domain.RoleAgent {
		return apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
