package models

// OrderCreatedEvent is published by the order service after a new
// order has been persisted.
type OrderCreatedEvent struct {
	OrderID        int64   `json:"order_id"`
	RestaurantID   int64   `json:"restaurant_id"`
	RestaurantName string  `json:"restaurant_name"`
	CustomerID     int64   `json:"customer_id"`
	Total          float64 `json:"total"`
	Status         string  `json:"status"`
}

// OrderStatusEvent is published whenever an order transitions status
// (accepted, preparing, ready, picked_up, delivered, cancelled).
type OrderStatusEvent struct {
	OrderID      int64  `json:"order_id"`
	RestaurantID int64  `json:"restaurant_id"`
	CustomerID   int64  `json:"customer_id"`
	Status       string `json:"status"`
}

// DeliveryAssignedEvent is published when a delivery partner is
// assigned to an order.
type DeliveryAssignedEvent struct {
	OrderID           int64  `json:"order_id"`
	RestaurantID      int64  `json:"restaurant_id"`
	CustomerID        int64  `json:"customer_id"`
	DeliveryPartnerID int64  `json:"delivery_partner_id"`
	PickupAddress     string `json:"pickup_address"`
	DropoffAddress    string `json:"dropoff_address"`
}

// OrderDecisionEvent is published when an admin approves or rejects
// an order.
type OrderDecisionEvent struct {
	OrderID      int64  `json:"order_id"`
	RestaurantID int64  `json:"restaurant_id"`
	CustomerID   int64  `json:"customer_id"`
	Approved     bool   `json:"approved"`
	Reason       string `json:"reason"`
}
