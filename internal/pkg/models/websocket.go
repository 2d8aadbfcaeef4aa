package models

// ClientFrame represents a message sent from a client to the server
// over the websocket channel.
type ClientFrame struct {
	Type         string    `json:"type"`
	Token        string    `json:"token,omitempty"`
	UserID       *int64    `json:"userId,omitempty"`
	UserType     *UserType `json:"userType,omitempty"`
	RestaurantID *int64    `json:"restaurantId,omitempty"`
	Timestamp    int64     `json:"timestamp,omitempty"`
}

// Identity extracts the identity attributes asserted by the frame.
func (f *ClientFrame) Identity() Identity {
	return Identity{
		UserID:       f.UserID,
		UserType:     f.UserType,
		RestaurantID: f.RestaurantID,
	}
}

// ServerFrame represents a control message sent from the server to a
// client (authentication acknowledgements and pongs). Notification
// events go out as Notification directly.
type ServerFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}
