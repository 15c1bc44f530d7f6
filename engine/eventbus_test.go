package engine

import (
	"testing"
)

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	var got []EventType
	bus.Subscribe(func(evt Event) { got = append(got, evt.Type) })

	bus.EmitType(EventCycleStarted, CycleStartedEvent{Cycle: 1})
	bus.EmitType(EventOrderPrinted, OrderPrintedEvent{OrderID: "o-1"})

	if len(got) != 2 || got[0] != EventCycleStarted || got[1] != EventOrderPrinted {
		t.Errorf("got = %v", got)
	}
}

func TestEventBusTypeFilter(t *testing.T) {
	bus := NewEventBus()
	var printed, all int
	bus.SubscribeTypes(func(Event) { printed++ }, EventOrderPrinted)
	bus.Subscribe(func(Event) { all++ })

	bus.EmitType(EventOrderPrinted, OrderPrintedEvent{})
	bus.EmitType(EventOrderPrintFailed, OrderPrintFailedEvent{})
	bus.EmitType(EventConnectivityDegraded, ConnectivityDegradedEvent{})

	if printed != 1 {
		t.Errorf("filtered subscriber saw %d events, want 1", printed)
	}
	if all != 3 {
		t.Errorf("unfiltered subscriber saw %d events, want 3", all)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	var n int
	id := bus.Subscribe(func(Event) { n++ })

	bus.EmitType(EventCycleStarted, CycleStartedEvent{})
	bus.Unsubscribe(id)
	bus.EmitType(EventCycleStarted, CycleStartedEvent{})

	if n != 1 {
		t.Errorf("subscriber called %d times, want 1", n)
	}
}

func TestEventBusStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	var got Event
	bus.Subscribe(func(evt Event) { got = evt })

	bus.EmitType(EventCycleStarted, CycleStartedEvent{})
	if got.Timestamp.IsZero() {
		t.Error("Emit should stamp a timestamp")
	}
}
