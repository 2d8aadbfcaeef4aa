package constants

// Client -> server frame types
const (
	TypeAuthenticate     = "authenticate"
	TypePing             = "ping"
	TypeClientDisconnect = "client_disconnect"
)

// Server -> client control frame types
const (
	TypeAuthenticationSuccess = "authentication_success"
	TypePong                  = "pong"
)

// Notification event types
const (
	EventNewOrder           = "new_order"
	EventOrderStatusUpdate  = "order_status_update"
	EventDeliveryAssignment = "delivery_assignment"
	EventDeliveryAssigned   = "delivery_assigned"
	EventOrderAdminDecision = "order_admin_decision"
	EventOrderApproval      = "order_approval"
)
