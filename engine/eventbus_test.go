package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/plcman"
)

func TestEventBusDeliversInEmitOrder(t *testing.T) {
	bus := NewEventBus()
	var got []EventType
	bus.Subscribe(func(e Event) { got = append(got, e.Type) })

	target := plcman.Target{Address: "10.1.1.5", Slot: 1}
	bus.Emit(Event{Type: EventScanStarted, Payload: ScanEvent{Target: target}})
	bus.Emit(Event{Type: EventScanCompleted, Payload: ScanEvent{Target: target, TagCount: 3}})
	bus.Emit(Event{Type: EventValuesUpdated, Payload: ValuesEvent{Count: 3}})

	assert.Equal(t, []EventType{EventScanStarted, EventScanCompleted, EventValuesUpdated}, got)
}

func TestEventBusTypeFilter(t *testing.T) {
	bus := NewEventBus()

	// what headless mode listens to
	var polls []ValuesEvent
	bus.SubscribeTypes(func(e Event) {
		polls = append(polls, e.Payload.(ValuesEvent))
	}, EventValuesUpdated, EventPollFailed)

	bus.Emit(Event{Type: EventScanCompleted, Payload: ScanEvent{TagCount: 4}})
	bus.Emit(Event{Type: EventValuesUpdated, Payload: ValuesEvent{Count: 4, Published: 2}})
	bus.Emit(Event{Type: EventThemeChanged, Payload: SystemEvent{Detail: "mono"}})
	bus.Emit(Event{Type: EventPollFailed, Payload: ValuesEvent{Error: "Failed to read PLC tags"}})

	require.Len(t, polls, 2)
	assert.Equal(t, 2, polls[0].Published)
	assert.Equal(t, "Failed to read PLC tags", polls[1].Error)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	id := bus.Subscribe(func(Event) { calls++ })

	bus.Emit(Event{Type: EventSessionChanged})
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventSessionChanged})
	assert.Equal(t, 1, calls)

	assert.NotPanics(t, func() { bus.Unsubscribe(id) })
	assert.NotPanics(t, func() { bus.Unsubscribe(SubscriptionID(999)) })
}

func TestEventBusUnsubscribeFromHandler(t *testing.T) {
	bus := NewEventBus()
	var id SubscriptionID
	calls := 0
	id = bus.Subscribe(func(Event) {
		calls++
		bus.Unsubscribe(id)
	})

	bus.Emit(Event{Type: EventTargetChanged})
	bus.Emit(Event{Type: EventTargetChanged})
	assert.Equal(t, 1, calls)
}

func TestEventBusTimestamps(t *testing.T) {
	bus := NewEventBus()
	var last Event
	bus.Subscribe(func(e Event) { last = e })

	before := time.Now()
	bus.Emit(Event{Type: EventConfigSaved})
	assert.False(t, last.Timestamp.Before(before))

	preset := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	bus.Emit(Event{Type: EventConfigSaved, Timestamp: preset})
	assert.True(t, last.Timestamp.Equal(preset))
}

func TestEventBusConcurrentEmit(t *testing.T) {
	bus := NewEventBus()
	var delivered atomic.Int64
	bus.Subscribe(func(Event) { delivered.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(Event{Type: EventValuesUpdated})
			bus.Emit(Event{Type: EventPollFailed})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), delivered.Load())
}

func TestEventTypeNames(t *testing.T) {
	assert.Equal(t, "scan failed", EventScanFailed.String())
	assert.Equal(t, "kafka connected", EventKafkaConnected.String())
	assert.Equal(t, "unknown", EventType(0).String())
	assert.Equal(t, "unknown", EventType(99).String())
}
