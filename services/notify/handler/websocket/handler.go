package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lapar/orderbell/internal/pkg/constants"
	jwtpkg "github.com/lapar/orderbell/internal/pkg/jwt"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
)

// Handler upgrades websocket connections and runs the per-connection
// message loop.
type Handler struct {
	registry *Registry
	cfg      models.JWTConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler backed by the given registry.
func NewHandler(registry *Registry, cfg models.JWTConfig) *Handler {
	return &Handler{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket handles a new websocket connection on /ws. The
// registry entry lives from upgrade to close.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	h.registry.Add(ws)
	defer h.registry.Remove(ws)

	h.messageLoop(ws)
	return nil
}

// messageLoop reads frames until the connection closes. A single bad
// frame never terminates the connection.
func (h *Handler) messageLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket read error", logger.Err(err))
			}
			return
		}

		if closeRequested := h.handleFrame(conn, msg); closeRequested {
			return
		}
	}
}

// handleFrame interprets one inbound frame. Returns true when the
// client asked to close the connection.
func (h *Handler) handleFrame(conn Conn, msg []byte) bool {
	var frame models.ClientFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Warn("Dropping malformed websocket frame", logger.Err(err))
		return false
	}

	switch frame.Type {
	case constants.TypeAuthenticate:
		h.bindIdentity(conn, &frame)
	case constants.TypePing:
		if err := h.registry.WriteTo(conn, models.ServerFrame{Type: constants.TypePong}); err != nil {
			logger.Warn("Failed to send pong", logger.Err(err))
		}
	case constants.TypeClientDisconnect:
		return true
	default:
		// Unknown frame types are tolerated without a response so
		// newer clients can talk to older servers.
	}
	return false
}

// bindIdentity attaches the asserted identity attributes to the
// connection's registry entry. When a JWT secret is configured and the
// frame carries a token, the token's claims win over the asserted
// fields; an invalid token leaves the connection unbound but open.
func (h *Handler) bindIdentity(conn Conn, frame *models.ClientFrame) {
	identity := frame.Identity()

	if h.cfg.Secret != "" && frame.Token != "" {
		claims, err := jwtpkg.ValidateToken(frame.Token, h.cfg.Secret)
		if err != nil {
			logger.Warn("Token validation failed on authenticate frame", logger.Err(err))
			return
		}
		identity = claims.Identity()
	}

	h.registry.Bind(conn, identity)

	if err := h.registry.WriteTo(conn, models.ServerFrame{
		Type:    constants.TypeAuthenticationSuccess,
		Message: "identity bound",
	}); err != nil {
		logger.Warn("Failed to acknowledge authentication", logger.Err(err))
	}
}
