package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/service"
)

// DashboardHandler exposes staff overview endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler builds the handler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Summary returns global ticket and account counters.
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.dashboardService.GetSummary(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// AgentStats returns per-agent assigned ticket loads.
func (h *DashboardHandler) AgentStats(c *fiber.Ctx) error {
	stats, err := h.dashboardService.GetAgentStats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"agents": stats})
}
