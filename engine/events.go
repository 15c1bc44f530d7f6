package engine

import "time"

// EventType identifies the kind of event emitted by the SyncEngine.
type EventType int

const (
	// Cycle events
	EventCycleStarted EventType = iota + 1
	EventConnectivityDegraded

	// Per-order outcomes
	EventOrderPrinted
	EventOrderPrintFailed
	EventOrderMarkUnconfirmed

	// Terminal
	EventFatalStopped
)

// Event is the envelope dispatched on the EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// CycleStartedEvent is emitted at the top of every poll cycle.
type CycleStartedEvent struct {
	Cycle int64 `json:"cycle"`
}

// ConnectivityDegradedEvent is emitted when a fetch attempt fails.
// Consecutive counts whole-cycle failures since the last success.
type ConnectivityDegradedEvent struct {
	Detail      string        `json:"detail"`
	Consecutive int           `json:"consecutive"`
	NextRetryIn time.Duration `json:"next_retry_in"`
}

// OrderPrintedEvent is emitted after an order was printed and marked
// on the backend.
type OrderPrintedEvent struct {
	OrderID       string  `json:"order_id"`
	DisplayNumber string  `json:"display_number"`
	Total         float64 `json:"total"`
}

// OrderPrintFailedEvent is emitted when the sink refused the receipt.
// The order stays pending and is retried next cycle.
type OrderPrintFailedEvent struct {
	OrderID       string `json:"order_id"`
	DisplayNumber string `json:"display_number"`
	Detail        string `json:"detail"`
}

// OrderMarkUnconfirmedEvent is emitted when the receipt went to the
// sink but the backend mark failed. The order will reappear next cycle
// and may print again.
type OrderMarkUnconfirmedEvent struct {
	OrderID       string `json:"order_id"`
	DisplayNumber string `json:"display_number"`
	Detail        string `json:"detail"`
}

// FatalStoppedEvent is emitted once when the engine gives up after too
// many consecutive cycle failures.
type FatalStoppedEvent struct {
	Reason      string `json:"reason"`
	Consecutive int    `json:"consecutive"`
}
