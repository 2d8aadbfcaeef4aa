package handler

import (
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/lapar/orderbell/internal/pkg/middleware"
	"github.com/lapar/orderbell/internal/pkg/models"
	httpHandler "github.com/lapar/orderbell/services/notify/handler/http"
	wsHandler "github.com/lapar/orderbell/services/notify/handler/websocket"
)

// Handler coordinates all protocol handlers for the notification
// service.
type Handler struct {
	notificationHandler *httpHandler.NotificationHandler
	websocketHandler    *wsHandler.Handler
	cfg                 *models.Config
}

// NewHandler creates and wires the protocol handlers.
func NewHandler(
	notificationHandler *httpHandler.NotificationHandler,
	websocketHandler *wsHandler.Handler,
	cfg *models.Config,
) *Handler {
	return &Handler{
		notificationHandler: notificationHandler,
		websocketHandler:    websocketHandler,
		cfg:                 cfg,
	}
}

// jwtMiddleware validates the Authorization bearer token and copies
// the identity claims onto the Echo context for the handlers.
func (h *Handler) jwtMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(h.cfg.JWT.Secret),
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return
			}
			if userID, ok := claims["user_id"].(float64); ok {
				c.Set("user_id", int64(userID))
			}
			if userType, ok := claims["user_type"].(string); ok {
				c.Set("user_type", userType)
			}
			if restaurantID, ok := claims["restaurant_id"].(float64); ok {
				c.Set("restaurant_id", int64(restaurantID))
			}
		},
	})
}

// RegisterRoutes registers all routes on the Echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Websocket channel; identity is bound post-upgrade by the
	// authenticate frame.
	e.GET("/ws", h.websocketHandler.HandleWebSocket)

	// Persisted notification history for the authenticated caller.
	notifications := e.Group("/notifications", h.jwtMiddleware())
	notifications.GET("", h.notificationHandler.ListNotifications)
	notifications.PUT("/:id/read", h.notificationHandler.MarkRead)

	// Internal operations surface.
	internal := e.Group("/internal", middleware.APIKeyMiddleware(h.cfg.Notify.InternalAPIKey))
	internal.POST("/notifications/broadcast", h.notificationHandler.Broadcast)
	internal.GET("/connections", h.notificationHandler.Stats)
}
