package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/lapar/orderbell/internal/pkg/constants"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
	natspkg "github.com/lapar/orderbell/internal/pkg/nats"
	"github.com/lapar/orderbell/services/notify"
)

// NatsHandler consumes order-lifecycle events published by the order
// services after each mutation is committed, and turns them into
// websocket notifications.
type NatsHandler struct {
	notifyUC   notify.NotifyUC
	natsClient *natspkg.Client
	subs       []*nats.Subscription
}

// NewNatsHandler creates a new NATS event handler.
func NewNatsHandler(notifyUC notify.NotifyUC, natsClient *natspkg.Client) *NatsHandler {
	return &NatsHandler{
		notifyUC:   notifyUC,
		natsClient: natsClient,
	}
}

// InitConsumers subscribes to all order-event subjects.
func (h *NatsHandler) InitConsumers() error {
	subjects := map[string]func([]byte) error{
		constants.SubjectOrderCreated:     h.handleOrderCreated,
		constants.SubjectOrderStatus:      h.handleOrderStatus,
		constants.SubjectDeliveryAssigned: h.handleDeliveryAssigned,
		constants.SubjectOrderDecision:    h.handleOrderDecision,
	}

	for subject, handler := range subjects {
		handler := handler
		subject := subject
		sub, err := h.natsClient.Subscribe(subject, func(msg *nats.Msg) {
			if err := handler(msg.Data); err != nil {
				logger.Error("Error handling order event",
					logger.String("subject", subject),
					logger.Err(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		h.subs = append(h.subs, sub)
	}

	return nil
}

// Drain unsubscribes all consumers.
func (h *NatsHandler) Drain() {
	for _, sub := range h.subs {
		_ = sub.Unsubscribe()
	}
	h.subs = nil
}

func (h *NatsHandler) handleOrderCreated(msg []byte) error {
	var event models.OrderCreatedEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order created event: %w", err)
	}
	return h.notifyUC.HandleOrderCreated(context.Background(), &event)
}

func (h *NatsHandler) handleOrderStatus(msg []byte) error {
	var event models.OrderStatusEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order status event: %w", err)
	}
	return h.notifyUC.HandleOrderStatus(context.Background(), &event)
}

func (h *NatsHandler) handleDeliveryAssigned(msg []byte) error {
	var event models.DeliveryAssignedEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal delivery assigned event: %w", err)
	}
	return h.notifyUC.HandleDeliveryAssigned(context.Background(), &event)
}

func (h *NatsHandler) handleOrderDecision(msg []byte) error {
	var event models.OrderDecisionEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order decision event: %w", err)
	}
	return h.notifyUC.HandleOrderDecision(context.Background(), &event)
}
