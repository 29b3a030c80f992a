// Package wsclient is a small consumer for the realtime ticket event feed.
// It maintains a single websocket connection, routes inbound events onto
// named topics and transparently redials after the link drops.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// TopicTickets carries ticket lifecycle events: created, status change,
	// assignment and the generic updated signal.
	TopicTickets = "tickets"

	defaultReconnectDelay = 2 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// MessagesTopic names the per-ticket message thread topic.
func MessagesTopic(ticketID string) string {
	return fmt.Sprintf("ticket/%s/messages", ticketID)
}

// Event is one routed feed entry. Data holds the full wire payload for
// callers that need more than the routing fields.
type Event struct {
	Type     string
	TicketID string
	Data     []byte
}

// Callback receives events for a subscribed topic.
type Callback func(event Event)

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host:8080/ws.
	URL string
	// Token is appended as the token query parameter for the handshake.
	Token string
	// ReconnectDelay is the fixed pause before each redial attempt.
	// Defaults to two seconds.
	ReconnectDelay time.Duration

	Logger *zap.Logger
}

// Client consumes the event feed. Subscriptions are local state: they
// survive reconnects but no missed events are replayed.
type Client struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[string]map[int]Callback
	nextID int
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// envelope extracts only the routing fields from a wire event.
type envelope struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
	Ticket   *struct {
		ID string `json:"id"`
	} `json:"ticket"`
}

// New builds a client. Connect must be called before events flow.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("wsclient: URL is required")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		logger: opts.Logger,
		subs:   make(map[string]map[int]Callback),
	}, nil
}

// Subscribe registers a callback for a topic and returns its unsubscribe
// function. Subscribing is independent of connection state.
func (c *Client) Subscribe(topic string, cb Callback) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[topic] == nil {
		c.subs[topic] = make(map[int]Callback)
	}
	id := c.nextID
	c.nextID++
	c.subs[topic][id] = cb

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cbs, ok := c.subs[topic]; ok {
			delete(cbs, id)
			if len(cbs) == 0 {
				delete(c.subs, topic)
			}
		}
	}
}

// Connect dials the feed and starts the read loop. The first dial failure is
// returned to the caller; later drops trigger silent redials after the fixed
// delay until Disconnect is called or ctx ends.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return errors.New("wsclient: already connected")
	}
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx, conn)
	return nil
}

// Disconnect stops the read loop and closes the connection. Subscriptions
// stay registered for a future Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("wsclient: invalid URL: %w", err)
	}
	q := target.Query()
	if c.opts.Token != "" {
		q.Set("token", c.opts.Token)
	}
	target.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial: %w", err)
	}
	return conn, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		c.readLoop(ctx, conn)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}

		next, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("reconnect failed", zap.Error(err))
			// Keep the loop running with a closed conn so the next pass
			// sleeps and redials again.
			continue
		}
		c.logger.Info("reconnected")

		c.mu.Lock()
		c.conn = next
		c.mu.Unlock()
		conn = next
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}
		c.dispatch(payload)
	}
}

// dispatch routes one wire event to subscribers. Lifecycle events land on
// the tickets topic, new messages land on the per-ticket thread topic.
func (c *Client) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Debug("dropping unparseable event", zap.Error(err))
		return
	}

	event := Event{Type: env.Type, Data: payload}
	if env.Ticket != nil {
		event.TicketID = env.Ticket.ID
	}
	if event.TicketID == "" {
		event.TicketID = env.TicketID
	}

	switch env.Type {
	case "ticket_created", "ticket_status_update", "ticket_assigned", "ticket_updated":
		c.notify(TopicTickets, event)
	case "new_message":
		if event.TicketID != "" {
			c.notify(MessagesTopic(event.TicketID), event)
		}
	case "welcome":
		c.logger.Debug("feed connected")
	default:
		c.logger.Debug("ignoring unknown event type", zap.String("type", env.Type))
	}
}

func (c *Client) notify(topic string, event Event) {
	c.mu.Lock()
	cbs := make([]Callback, 0, len(c.subs[topic]))
	for _, cb := range c.subs[topic] {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(event)
	}
}
