package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.TypeTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.TypeTicketStatusUpdate, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.TypeTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.TypeNewMessage, n.handleNewMessage)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", ticketID(event)))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged",
		zap.String("ticket_id", ticketID(event)),
		zap.String("status", string(event.Status)))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	assignee := ""
	if event.Assignee != nil {
		assignee = *event.Assignee
	}
	n.logger.Info("TicketAssigned",
		zap.String("ticket_id", ticketID(event)),
		zap.String("assignee", assignee))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleNewMessage(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMessageAdded", zap.String("ticket_id", ticketID(event)))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", ticketID(event)),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", ticketID(event)),
		zap.String("event_type", string(event.Type)))
}

func ticketID(event events.Event) string {
	if event.Ticket != nil {
		return event.Ticket.ID
	}
	return event.TicketID
}
