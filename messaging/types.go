package messaging

// StatusMessage is the envelope published on the status topic for every
// engine event the reporter forwards.
type StatusMessage struct {
	ClientID     string      `json:"client_id"`
	RestaurantID string      `json:"restaurant_id"`
	Type         string      `json:"type"`
	At           string      `json:"at"`
	Data         interface{} `json:"data"`
}

// Heartbeat is the periodic liveness payload published on the
// heartbeat topic.
type Heartbeat struct {
	ClientID      string `json:"client_id"`
	RestaurantID  string `json:"restaurant_id"`
	ClientName    string `json:"client_name"`
	Version       string `json:"client_version"`
	Platform      string `json:"platform"`
	At            string `json:"last_heartbeat_at"`
	IsPrinting    bool   `json:"is_printing"`
	PendingOrders int64  `json:"pending_orders"`
	PrintedCount  int64  `json:"printed_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Command is an inbound instruction from the backoffice, received on
// the command topic.
type Command struct {
	ClientID string `json:"client_id,omitempty"` // empty = broadcast
	Action   string `json:"action"`              // "reprint" or "test_print"
	OrderID  string `json:"order_id,omitempty"`
}
