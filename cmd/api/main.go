package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httpapi "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
	"github.com/spec-kit/helpdesk/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), logger); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := postgres.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	authService := service.NewAuthService(*cfg, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
	})
	agentService := service.NewAgentService(userRepo, cfg.Auth.BcryptCost)
	dashboardService := service.NewDashboardService(ticketRepo, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	hub := ws.NewHub(cfg.Websocket, logger, metrics)
	hub.RegisterHandlers(dispatcher)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httpapi.ErrorHandler(logger, metrics),
		ReadTimeout:  cfg.App.RequestTimeout(),
	})
	app.Use(httpapi.TimeoutMiddleware(cfg.App.RequestTimeout()))

	httpapi.RegisterRoutes(app, httpapi.RouterDependencies{
		Logger:         logger,
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Health:         handlers.NewHealthHandler(postgres, redis, cfg.App.Version),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Agents:         handlers.NewAgentsHandler(agentService),
		Dashboard:      handlers.NewDashboardHandler(dashboardService),
		Websocket:      ws.NewHandler(hub, authService.TokenManager(), logger),
	})

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
