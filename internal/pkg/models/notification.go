package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lapar/orderbell/internal/pkg/constants"
)

// UserType identifies the role a connected client acts as
type UserType string

const (
	UserTypeCustomer        UserType = "customer"
	UserTypeRestaurantOwner UserType = "restaurant_owner"
	UserTypeDeliveryPartner UserType = "delivery_partner"
	UserTypeAdmin           UserType = "admin"
)

// Identity holds the attributes a connection can be bound to.
// All fields are optional; a nil field stays unbound.
type Identity struct {
	UserID       *int64    `json:"userId,omitempty"`
	UserType     *UserType `json:"userType,omitempty"`
	RestaurantID *int64    `json:"restaurantId,omitempty"`
}

// Filter is a partial identity predicate used to select target
// connections for a notification. Absent fields are wildcards.
type Filter struct {
	UserID       *int64
	UserType     *UserType
	RestaurantID *int64
}

// Empty reports whether no filter field is present. An empty filter
// matches every connection, bound or not.
func (f Filter) Empty() bool {
	return f.UserID == nil && f.UserType == nil && f.RestaurantID == nil
}

// Matches reports whether the identity satisfies every present filter
// field. A present filter field never matches an unbound identity field.
func (f Filter) Matches(id Identity) bool {
	if f.UserID != nil && (id.UserID == nil || *id.UserID != *f.UserID) {
		return false
	}
	if f.UserType != nil && (id.UserType == nil || *id.UserType != *f.UserType) {
		return false
	}
	if f.RestaurantID != nil && (id.RestaurantID == nil || *id.RestaurantID != *f.RestaurantID) {
		return false
	}
	return true
}

// Notification is one event pushed over the socket channel. Data is
// opaque to the router; consumers decode it via DecodeData.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
}

// NewOrderData is the payload for new_order notifications
type NewOrderData struct {
	OrderID      int64   `json:"orderId"`
	RestaurantID int64   `json:"restaurantId"`
	CustomerID   int64   `json:"customerId"`
	Total        float64 `json:"total"`
	Status       string  `json:"status"`
}

// OrderStatusData is the payload for order_status_update notifications
type OrderStatusData struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// DeliveryAssignmentData is the payload for delivery_assignment and
// delivery_assigned notifications
type DeliveryAssignmentData struct {
	OrderID           int64  `json:"orderId"`
	DeliveryPartnerID int64  `json:"deliveryPartnerId"`
	PickupAddress     string `json:"pickupAddress,omitempty"`
	DropoffAddress    string `json:"dropoffAddress,omitempty"`
}

// AdminDecisionData is the payload for order_admin_decision and
// order_approval notifications
type AdminDecisionData struct {
	OrderID  int64  `json:"orderId"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// DecodeData decodes the free-form payload into the typed struct for
// the notification's event type. Unknown event types return the raw
// payload unchanged so consumers can still switch on it.
func (n *Notification) DecodeData() (interface{}, error) {
	if len(n.Data) == 0 {
		return nil, nil
	}

	var dst interface{}
	switch n.Type {
	case constants.EventNewOrder:
		dst = &NewOrderData{}
	case constants.EventOrderStatusUpdate:
		dst = &OrderStatusData{}
	case constants.EventDeliveryAssignment, constants.EventDeliveryAssigned:
		dst = &DeliveryAssignmentData{}
	case constants.EventOrderAdminDecision, constants.EventOrderApproval:
		dst = &AdminDecisionData{}
	default:
		return n.Data, nil
	}

	if err := json.Unmarshal(n.Data, dst); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", n.Type, err)
	}
	return dst, nil
}

// UserScope returns the storage scope key for a customer or delivery
// partner's notification history.
func UserScope(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// RestaurantScope returns the storage scope key shared by a
// restaurant's staff.
func RestaurantScope(restaurantID int64) string {
	return fmt.Sprintf("restaurant:%d", restaurantID)
}
