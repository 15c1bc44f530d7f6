package messaging

import (
	"encoding/json"
	"log"
	"time"

	"printedge/engine"
	"printedge/store"
)

// StatusReporter forwards engine events to the status topic through the
// outbox, so nothing is lost while the broker is unreachable. It runs
// on the engine's emit path and must only do a cheap local insert.
type StatusReporter struct {
	db           *store.DB
	clientID     string
	restaurantID string
	topic        string
	sub          engine.SubscriberID
}

// NewStatusReporter creates a reporter writing to the given outbox.
func NewStatusReporter(db *store.DB, clientID, restaurantID, topic string) *StatusReporter {
	return &StatusReporter{
		db:           db,
		clientID:     clientID,
		restaurantID: restaurantID,
		topic:        topic,
	}
}

// Wire subscribes the reporter to the engine's order and connectivity
// events.
func (r *StatusReporter) Wire(bus *engine.EventBus) {
	r.sub = bus.SubscribeTypes(r.handle,
		engine.EventOrderPrinted,
		engine.EventOrderPrintFailed,
		engine.EventOrderMarkUnconfirmed,
		engine.EventConnectivityDegraded,
		engine.EventFatalStopped,
	)
}

// Unwire removes the subscription.
func (r *StatusReporter) Unwire(bus *engine.EventBus) {
	bus.Unsubscribe(r.sub)
}

func (r *StatusReporter) handle(evt engine.Event) {
	msg := StatusMessage{
		ClientID:     r.clientID,
		RestaurantID: r.restaurantID,
		Type:         eventName(evt.Type),
		At:           evt.Timestamp.UTC().Format(time.RFC3339),
		Data:         evt.Payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("status reporter: marshal: %v", err)
		return
	}
	if _, err := r.db.EnqueueOutbox(r.topic, data, msg.Type); err != nil {
		log.Printf("status reporter: enqueue: %v", err)
	}
}

func eventName(t engine.EventType) string {
	switch t {
	case engine.EventCycleStarted:
		return "cycle_started"
	case engine.EventConnectivityDegraded:
		return "connectivity_degraded"
	case engine.EventOrderPrinted:
		return "order_printed"
	case engine.EventOrderPrintFailed:
		return "order_print_failed"
	case engine.EventOrderMarkUnconfirmed:
		return "order_mark_unconfirmed"
	case engine.EventFatalStopped:
		return "fatal_stopped"
	default:
		return "unknown"
	}
}
