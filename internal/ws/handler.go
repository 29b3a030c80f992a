package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
)

type welcomeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler authenticates inbound connections and runs admitted ones.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewHandler builds the websocket endpoint handler.
func NewHandler(hub *Hub, tokens *auth.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, tokens: tokens, logger: logger}
}

// Upgrade gates the route on a proper websocket upgrade request.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve verifies the token presented as a query parameter before any message
// exchange. A missing, malformed or expired token closes the socket with no
// error payload: the peer learns only that the connection ended. On success
// the welcome acknowledgement is sent and the connection joins the registry.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		token := conn.Query("token")
		identity, err := h.tokens.VerifyToken(token)
		if err != nil {
			h.logger.Warn("rejected websocket connection", zap.Error(err))
			_ = conn.Close()
			return
		}

		welcome, _ := json.Marshal(welcomeMessage{Type: "welcome", Message: "WebSocket connected"})
		_ = conn.SetWriteDeadline(time.Now().Add(h.hub.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			_ = conn.Close()
			return
		}

		client := newClient(identity, conn, h.hub.bufferSize)
		h.hub.Register(client)
		defer h.hub.Unregister(client)

		go client.writePump(h.hub.writeWait)
		client.readPump()
	})
}
