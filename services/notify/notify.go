package notify

import (
	"context"

	"github.com/lapar/orderbell/internal/pkg/models"
)

// NotifyUC is the notification usecase consumed by the NATS and HTTP
// handlers.
type NotifyUC interface {
	// order lifecycle events
	HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	HandleOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error
	HandleDeliveryAssigned(ctx context.Context, event *models.DeliveryAssignedEvent) error
	HandleOrderDecision(ctx context.Context, event *models.OrderDecisionEvent) error

	// fan-out to live connections
	Broadcast(ctx context.Context, n *models.Notification, filter models.Filter) (int, error)

	// persisted notification history
	ListNotifications(ctx context.Context, scope string) ([]models.Notification, error)
	MarkRead(ctx context.Context, scope, notificationID string) error

	ConnectionCount() int
}

// NotificationRepo persists per-scope notification history and read
// state. The socket layer never touches it directly.
type NotificationRepo interface {
	Append(ctx context.Context, scope string, n *models.Notification) error
	List(ctx context.Context, scope string) ([]models.Notification, error)
	MarkRead(ctx context.Context, scope, notificationID string) error
}

// Broadcaster delivers one notification to every live connection
// matching the filter and reports how many writes succeeded.
type Broadcaster interface {
	Broadcast(n *models.Notification, filter models.Filter) int
	Count() int
}
