package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AgentsHandler exposes admin-only agent account management.
type AgentsHandler struct {
	agentService *service.AgentService
}

// NewAgentsHandler builds the handler.
func NewAgentsHandler(agentService *service.AgentService) *AgentsHandler {
	return &AgentsHandler{agentService: agentService}
}

// List returns all agent accounts.
func (h *AgentsHandler) List(c *fiber.Ctx) error {
	agents, err := h.agentService.ListAgents(c.Context())
	if err != nil {
		return err
	}
	out := make([]dto.UserResponse, 0, len(agents))
	for i := range agents {
		out = append(out, dto.NewUserResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"agents": out, "total": len(out)})
}

// Create provisions a new agent account.
func (h *AgentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	agent, err := h.agentService.CreateAgent(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(agent))
}

// Delete removes an agent account.
func (h *AgentsHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return apperrors.NewValidationError("missing agent id", nil)
	}
	if err := h.agentService.DeleteAgent(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
