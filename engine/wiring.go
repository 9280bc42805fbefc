package engine

import (
	"sync"

	"signaltap/logging"
	"signaltap/plcman"
	"signaltap/tagmsg"
)

// sessionWatcher turns successive snapshots into scan and poll events.
type sessionWatcher struct {
	mu         sync.Mutex
	status     plcman.Status
	sessionID  string
	pollErrors int
}

// observe returns the events implied by moving to s.
func (w *sessionWatcher) observe(s plcman.Snapshot) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	scanEvent := ScanEvent{Target: s.Target, SessionID: s.SessionID, TagCount: len(s.Tags), Error: s.LastError}

	if s.Status != w.status {
		switch {
		case s.Status == plcman.StatusScanning:
			events = append(events, Event{Type: EventScanStarted, Payload: scanEvent})
		case w.status == plcman.StatusScanning && s.Status == plcman.StatusScanFailed:
			events = append(events, Event{Type: EventScanFailed, Payload: scanEvent})
		case w.status == plcman.StatusScanning && s.SessionID == w.sessionID &&
			(s.Status == plcman.StatusPolling || s.Status == plcman.StatusIdle):
			events = append(events, Event{Type: EventScanCompleted, Payload: scanEvent})
		}
	}

	if s.SessionID == w.sessionID && s.PollErrors > w.pollErrors {
		events = append(events, Event{Type: EventPollFailed, Payload: ValuesEvent{
			SessionID: s.SessionID,
			Count:     s.PollErrors,
			Error:     s.LastPollErr,
		}})
	}

	w.status = s.Status
	w.sessionID = s.SessionID
	w.pollErrors = s.PollErrors

	events = append(events, Event{Type: EventSessionChanged, Payload: scanEvent})
	return events
}

// setupSessionHandlers forwards session changes to the event bus and poll
// updates to the republishers.
func setupSessionHandlers(e *Engine) {
	e.plcMan.SetOnChange(func() {
		for _, ev := range e.watcher.observe(e.plcMan.Snapshot()) {
			switch ev.Type {
			case EventScanCompleted:
				p := ev.Payload.(ScanEvent)
				e.logFn("Scan of %s found %d tags", p.Target, p.TagCount)
				e.rememberTarget(p.Target)
			case EventScanFailed:
				p := ev.Payload.(ScanEvent)
				e.logFn("Scan of %s failed: %s", p.Target, p.Error)
			}
			e.Events.Emit(ev)
		}
	})

	e.plcMan.SetOnValues(func(u plcman.Update) {
		published := e.republish(u)
		e.emit(EventValuesUpdated, ValuesEvent{
			SessionID: u.SessionID,
			Count:     len(u.Values),
			Published: published,
		})
	})
}

// republish fans one accepted read out to every running output. The first
// read of a session is forced so consumers see the full tag set.
func (e *Engine) republish(u plcman.Update) int {
	mqttRunning := e.mqttMgr.AnyRunning()
	valkeyRunning := e.valkeyMgr.AnyRunning()
	kafkaRunning := e.kafkaMgr.AnyRunning()
	if !mqttRunning && !valkeyRunning && !kafkaRunning {
		return 0
	}

	msgs := tagmsg.FromUpdate(u)
	logging.DebugLog("engine", "OnValues: %d values, MQTT: %v, Valkey: %v, Kafka: %v",
		len(msgs), mqttRunning, valkeyRunning, kafkaRunning)

	total := 0
	if mqttRunning {
		total += e.mqttMgr.Publish(msgs, u.First)
	}
	if valkeyRunning {
		total += e.valkeyMgr.Publish(msgs, u.First)
	}
	if kafkaRunning {
		total += e.kafkaMgr.Publish(msgs, u.First)
	}
	return total
}
