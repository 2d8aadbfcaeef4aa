package http

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lapar/orderbell/internal/pkg/models"
	"github.com/lapar/orderbell/services/notify"
)

// NotificationHandler serves the persisted notification history and
// the internal operations endpoints.
type NotificationHandler struct {
	notifyUC notify.NotifyUC
}

// NewNotificationHandler creates a new notification HTTP handler.
func NewNotificationHandler(notifyUC notify.NotifyUC) *NotificationHandler {
	return &NotificationHandler{notifyUC: notifyUC}
}

// requestScope derives the caller's history scope from the JWT claims
// placed on the context by the auth middleware. Restaurant staff share
// their restaurant's history; everyone else reads their own.
func requestScope(c echo.Context) (string, bool) {
	userType, _ := c.Get("user_type").(string)
	if userType == string(models.UserTypeRestaurantOwner) {
		if restaurantID, ok := c.Get("restaurant_id").(int64); ok {
			return models.RestaurantScope(restaurantID), true
		}
	}
	if userID, ok := c.Get("user_id").(int64); ok {
		return models.UserScope(userID), true
	}
	return "", false
}

// ListNotifications handles GET /notifications
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	scope, ok := requestScope(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing identity claims")
	}

	notifications, err := h.notifyUC.ListNotifications(c.Request().Context(), scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load notifications")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// MarkRead handles PUT /notifications/:id/read
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	scope, ok := requestScope(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing identity claims")
	}

	notificationID := c.Param("id")
	if notificationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notification id is required")
	}

	if err := h.notifyUC.MarkRead(c.Request().Context(), scope, notificationID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to mark notification read")
	}

	return c.NoContent(http.StatusNoContent)
}

// BroadcastRequest is the body of the internal broadcast endpoint.
type BroadcastRequest struct {
	Type         string           `json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Data         interface{}      `json:"data,omitempty"`
	UserID       *int64           `json:"userId,omitempty"`
	UserType     *models.UserType `json:"userType,omitempty"`
	RestaurantID *int64           `json:"restaurantId,omitempty"`
}

// Broadcast handles POST /internal/notifications/broadcast, a manual
// send with an explicit filter for operations use.
func (h *NotificationHandler) Broadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event type is required")
	}

	n := &models.Notification{
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	}
	if req.Data != nil {
		data, err := json.Marshal(req.Data)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid data payload")
		}
		n.Data = data
	}

	delivered, err := h.notifyUC.Broadcast(c.Request().Context(), n, models.Filter{
		UserID:       req.UserID,
		UserType:     req.UserType,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "broadcast failed")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":        n.ID,
		"delivered": delivered,
	})
}

// Stats handles GET /internal/connections
func (h *NotificationHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"connections": h.notifyUC.ConnectionCount(),
	})
}
