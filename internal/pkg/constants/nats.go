package constants

// NATS subjects published by the order services after the underlying
// mutation has been committed.
const (
	SubjectOrderCreated     = "order.created"
	SubjectOrderStatus      = "order.status_updated"
	SubjectDeliveryAssigned = "order.delivery_assigned"
	SubjectOrderDecision    = "order.admin_decision"
)
