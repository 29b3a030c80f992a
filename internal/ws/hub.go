// Package ws implements the realtime fan-out layer: an authenticated
// connection registry plus a best-effort broadcaster.
//
// Broadcasts are unscoped: every admitted connection receives every event
// regardless of role or ticket visibility. Clients filter by topic before
// rendering, which means connected clients are trusted with data about
// tickets they cannot otherwise read.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// Hub is the process-wide registry of live, authenticated connections. It is
// constructed once at startup and injected wherever events are published;
// its state lives and dies with the server process.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	logger      *zap.Logger
	metrics     *observability.Metrics
	sendTimeout time.Duration
	writeWait   time.Duration
	bufferSize  int
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebsocketConfig, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	bufferSize := cfg.SendBufferSize
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		logger:      logger,
		metrics:     metrics,
		sendTimeout: cfg.SendTimeout(),
		writeWait:   cfg.WriteWait(),
		bufferSize:  bufferSize,
	}
}

// Register admits an authenticated connection into the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("connection registered",
		zap.String("user_id", c.identity.ID),
		zap.String("role", string(c.identity.Role)))
}

// Unregister removes a connection and releases its resources. Safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	if present {
		h.logger.Info("connection unregistered", zap.String("user_id", c.identity.ID))
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// Broadcast serializes the event once and sends the identical payload to
// every connection live at publish time. Delivery is fire-and-forget: a
// stalled or closing peer is skipped, never retried, and never stalls the
// other peers.
func (h *Hub) Broadcast(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	delivered, dropped := 0, 0
	for _, c := range h.snapshot() {
		if c.enqueue(payload, h.sendTimeout) {
			delivered++
		} else {
			dropped++
		}
	}

	h.metrics.RecordBroadcast(string(event.Type), delivered, dropped)
	if dropped > 0 {
		h.logger.Warn("broadcast dropped for slow or closed connections",
			zap.String("type", string(event.Type)),
			zap.Int("delivered", delivered),
			zap.Int("dropped", dropped))
	}
}

// RegisterHandlers subscribes the hub to every ticket event type so that a
// successful mutation reaches all connected clients.
func (h *Hub) RegisterHandlers(dispatcher events.Dispatcher) {
	forward := func(_ context.Context, event events.Event) error {
		h.Broadcast(event)
		return nil
	}
	for _, eventType := range []events.Type{
		events.TypeTicketCreated,
		events.TypeTicketStatusUpdate,
		events.TypeTicketAssigned,
		events.TypeNewMessage,
		events.TypeTicketUpdated,
	} {
		dispatcher.Subscribe(eventType, forward)
	}
}
