package engine

import (
	"time"

	"signaltap/plcman"
)

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Session events
	EventScanStarted EventType = iota + 1
	EventScanCompleted
	EventScanFailed
	EventValuesUpdated
	EventPollFailed
	EventTargetChanged
	EventSessionChanged

	// Republisher events
	EventMQTTStarted
	EventMQTTStopped
	EventValkeyStarted
	EventValkeyStopped
	EventKafkaConnected
	EventKafkaDisconnected

	// System events
	EventThemeChanged
	EventConfigSaved
)

var eventNames = map[EventType]string{
	EventScanStarted:       "scan started",
	EventScanCompleted:     "scan completed",
	EventScanFailed:        "scan failed",
	EventValuesUpdated:     "values updated",
	EventPollFailed:        "poll failed",
	EventTargetChanged:     "target changed",
	EventSessionChanged:    "session changed",
	EventMQTTStarted:       "mqtt started",
	EventMQTTStopped:       "mqtt stopped",
	EventValkeyStarted:     "valkey started",
	EventValkeyStopped:     "valkey stopped",
	EventKafkaConnected:    "kafka connected",
	EventKafkaDisconnected: "kafka disconnected",
	EventThemeChanged:      "theme changed",
	EventConfigSaved:       "config saved",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// ScanEvent is the payload for scan lifecycle events.
type ScanEvent struct {
	Target    plcman.Target
	SessionID string
	TagCount  int
	Error     string
}

// ValuesEvent is the payload for EventValuesUpdated and EventPollFailed.
type ValuesEvent struct {
	SessionID string
	Count     int
	Published int // messages accepted by the republishers
	Error     string
}

// TargetEvent is the payload for EventTargetChanged.
type TargetEvent struct {
	Old plcman.Target
	New plcman.Target
}

// ServiceEvent is the payload for MQTT/Valkey/Kafka lifecycle events.
type ServiceEvent struct {
	Count int
}

// SystemEvent is the payload for system-level events.
type SystemEvent struct {
	Detail string
}
