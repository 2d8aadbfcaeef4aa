package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lapar/orderbell/internal/pkg/constants"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
	"github.com/lapar/orderbell/services/notify"
)

// NotifyUC routes order-lifecycle notifications to live connections
// and keeps the persisted per-scope history.
type NotifyUC struct {
	broadcaster notify.Broadcaster
	repo        notify.NotificationRepo
}

// NewNotifyUC creates the notification usecase.
func NewNotifyUC(broadcaster notify.Broadcaster, repo notify.NotificationRepo) *NotifyUC {
	return &NotifyUC{
		broadcaster: broadcaster,
		repo:        repo,
	}
}

// newNotificationID builds a process-unique id from the send time and
// a random suffix. Clients use it for de-duplication only.
func newNotificationID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Broadcast assigns id and timestamp when unset, forces the unread
// flag, persists a copy for the filter's scope and fans the event out.
// Delivery is fire-and-forget: the count is for observability only.
func (uc *NotifyUC) Broadcast(ctx context.Context, n *models.Notification, filter models.Filter) (int, error) {
	now := time.Now()
	if n.ID == "" {
		n.ID = newNotificationID(now)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	n.Read = false

	if scope := storageScope(filter); scope != "" {
		if err := uc.repo.Append(ctx, scope, n); err != nil {
			// History is best-effort; the live push still happens.
			logger.Warn("Failed to persist notification",
				logger.String("notification_id", n.ID),
				logger.String("scope", scope),
				logger.Err(err))
		}
	}

	delivered := uc.broadcaster.Broadcast(n, filter)
	return delivered, nil
}

// storageScope maps a delivery filter to the history scope it should
// be recorded under. Restaurant-targeted events are shared by the
// restaurant's staff; user-targeted events belong to that user. An
// unscoped filter is not recorded.
func storageScope(filter models.Filter) string {
	if filter.RestaurantID != nil {
		return models.RestaurantScope(*filter.RestaurantID)
	}
	if filter.UserID != nil {
		return models.UserScope(*filter.UserID)
	}
	return ""
}

// HandleOrderCreated notifies the restaurant's staff about a new
// order.
func (uc *NotifyUC) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	data, err := json.Marshal(models.NewOrderData{
		OrderID:      event.OrderID,
		RestaurantID: event.RestaurantID,
		CustomerID:   event.CustomerID,
		Total:        event.Total,
		Status:       event.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal new order payload: %w", err)
	}

	ownerType := models.UserTypeRestaurantOwner
	_, err = uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventNewOrder,
		Title:   "New order",
		Message: fmt.Sprintf("Order #%d was placed", event.OrderID),
		Data:    data,
	}, models.Filter{
		RestaurantID: &event.RestaurantID,
		UserType:     &ownerType,
	})
	return err
}

// HandleOrderStatus notifies the customer about a status transition.
func (uc *NotifyUC) HandleOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	data, err := json.Marshal(models.OrderStatusData{
		OrderID: event.OrderID,
		Status:  event.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order status payload: %w", err)
	}

	_, err = uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventOrderStatusUpdate,
		Title:   "Order update",
		Message: fmt.Sprintf("Order #%d is now %s", event.OrderID, event.Status),
		Data:    data,
	}, models.Filter{
		UserID: &event.CustomerID,
	})
	return err
}

// HandleDeliveryAssigned notifies both the assigned delivery partner
// and the customer.
func (uc *NotifyUC) HandleDeliveryAssigned(ctx context.Context, event *models.DeliveryAssignedEvent) error {
	data, err := json.Marshal(models.DeliveryAssignmentData{
		OrderID:           event.OrderID,
		DeliveryPartnerID: event.DeliveryPartnerID,
		PickupAddress:     event.PickupAddress,
		DropoffAddress:    event.DropoffAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery payload: %w", err)
	}

	if _, err := uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventDeliveryAssignment,
		Title:   "New delivery",
		Message: fmt.Sprintf("You were assigned order #%d", event.OrderID),
		Data:    data,
	}, models.Filter{
		UserID: &event.DeliveryPartnerID,
	}); err != nil {
		return err
	}

	_, err = uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventDeliveryAssigned,
		Title:   "Delivery on the way",
		Message: fmt.Sprintf("A delivery partner picked up order #%d", event.OrderID),
		Data:    data,
	}, models.Filter{
		UserID: &event.CustomerID,
	})
	return err
}

// HandleOrderDecision notifies the customer about an admin approval
// or rejection, and the restaurant's staff on approval.
func (uc *NotifyUC) HandleOrderDecision(ctx context.Context, event *models.OrderDecisionEvent) error {
	data, err := json.Marshal(models.AdminDecisionData{
		OrderID:  event.OrderID,
		Approved: event.Approved,
		Reason:   event.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal decision payload: %w", err)
	}

	message := fmt.Sprintf("Order #%d was rejected", event.OrderID)
	if event.Approved {
		message = fmt.Sprintf("Order #%d was approved", event.OrderID)
	}

	if _, err := uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventOrderAdminDecision,
		Title:   "Order decision",
		Message: message,
		Data:    data,
	}, models.Filter{
		UserID: &event.CustomerID,
	}); err != nil {
		return err
	}

	if !event.Approved {
		return nil
	}

	ownerType := models.UserTypeRestaurantOwner
	_, err = uc.Broadcast(ctx, &models.Notification{
		Type:    constants.EventOrderApproval,
		Title:   "Order approved",
		Message: fmt.Sprintf("Order #%d cleared review", event.OrderID),
		Data:    data,
	}, models.Filter{
		RestaurantID: &event.RestaurantID,
		UserType:     &ownerType,
	})
	return err
}

// ListNotifications returns the persisted history for a scope.
func (uc *NotifyUC) ListNotifications(ctx context.Context, scope string) ([]models.Notification, error) {
	return uc.repo.List(ctx, scope)
}

// MarkRead marks one persisted notification as read.
func (uc *NotifyUC) MarkRead(ctx context.Context, scope, notificationID string) error {
	return uc.repo.MarkRead(ctx, scope, notificationID)
}

// ConnectionCount reports the number of live connections.
func (uc *NotifyUC) ConnectionCount() int {
	return uc.broadcaster.Count()
}
