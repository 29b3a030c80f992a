package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/ws"
)

// RouterDependencies bundles everything route registration needs.
type RouterDependencies struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware

	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Tickets   *handlers.TicketsHandler
	Agents    *handlers.AgentsHandler
	Dashboard *handlers.DashboardHandler
	Websocket *ws.Handler
}

// RegisterRoutes wires all endpoints onto the app.
func RegisterRoutes(app *fiber.App, deps RouterDependencies) {
	app.Use(RecoverMiddleware(deps.Logger))
	app.Use(observability.RequestLogger(deps.Logger, deps.Metrics))

	app.Get("/health/live", deps.Health.Live)
	app.Get("/health/ready", deps.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", deps.Auth.Register)
	authGroup.Post("/login", deps.Auth.Login)
	authGroup.Post("/logout", deps.AuthMiddleware.Handle, deps.Auth.Logout)
	authGroup.Get("/me", deps.AuthMiddleware.Handle, deps.Auth.Me)

	tickets := app.Group("/tickets", deps.AuthMiddleware.Handle)
	tickets.Post("/", deps.Tickets.Create)
	tickets.Get("/", deps.Tickets.List)
	tickets.Get("/:id", deps.Tickets.Get)
	tickets.Put("/:id", deps.Tickets.Update)
	tickets.Get("/:id/history",
		auth.RequireRole(domain.RoleAgent, domain.RoleAdmin),
		deps.Tickets.History)

	agents := app.Group("/agents",
		deps.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAdmin))
	agents.Get("/", deps.Agents.List)
	agents.Post("/", deps.Agents.Create)
	agents.Delete("/:id", deps.Agents.Delete)

	dashboard := app.Group("/dashboard",
		deps.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	dashboard.Get("/summary", deps.Dashboard.Summary)
	dashboard.Get("/agent-stats", deps.Dashboard.AgentStats)

	// Token checking happens inside the websocket handler itself, the query
	// parameter survives the upgrade while headers may not.
	app.Get("/ws", deps.Websocket.Upgrade, deps.Websocket.Serve())
}
