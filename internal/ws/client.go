package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/spec-kit/helpdesk/internal/auth"
)

// Conn is the socket surface the hub needs. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, data []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client couples one live socket with the identity verified at handshake.
type Client struct {
	identity auth.Identity
	conn     Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(identity auth.Identity, conn Conn, bufferSize int) *Client {
	return &Client{
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
}

// Identity returns the claims the connection was admitted with.
func (c *Client) Identity() auth.Identity {
	return c.identity
}

// enqueue hands a payload to the writer. It gives a momentarily busy peer up
// to timeout to drain, then reports the send as dropped; a closed client
// always reports false.
func (c *Client) enqueue(payload []byte, timeout time.Duration) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}

// writePump drains the send queue onto the socket until the client closes or
// a write fails.
func (c *Client) writePump(writeWait time.Duration) {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump consumes inbound frames until the peer goes away. Clients send
// nothing meaningful today; the read loop exists to detect closure.
func (c *Client) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
