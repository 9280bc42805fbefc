package engine

import (
	"fmt"
	"sort"

	"signaltap/kafka"
)

// Output kinds
const (
	OutputMQTT   = "MQTT"
	OutputValkey = "Valkey"
	OutputKafka  = "Kafka"
)

// OutputStatus describes one configured republisher.
type OutputStatus struct {
	Kind    string
	Name    string
	Address string
	Enabled bool
	Running bool
	Detail  string // last error or counters, when known
}

// Outputs lists every configured republisher, grouped by kind then name.
func (e *Engine) Outputs() []OutputStatus {
	if e.mqttMgr == nil {
		return nil
	}

	var out []OutputStatus
	for _, p := range e.mqttMgr.List() {
		out = append(out, OutputStatus{
			Kind:    OutputMQTT,
			Name:    p.Name(),
			Address: p.Address(),
			Enabled: p.Config().Enabled,
			Running: p.IsRunning(),
		})
	}
	for _, p := range e.valkeyMgr.List() {
		out = append(out, OutputStatus{
			Kind:    OutputValkey,
			Name:    p.Name(),
			Address: p.Address(),
			Enabled: p.Config().Enabled,
			Running: p.IsRunning(),
		})
	}
	for _, p := range e.kafkaMgr.List() {
		st := OutputStatus{
			Kind:    OutputKafka,
			Name:    p.Name(),
			Address: p.Brokers(),
			Enabled: p.Config().Enabled,
			Running: p.GetStatus() == kafka.StatusConnected,
		}
		if err := p.GetError(); err != nil {
			st.Detail = err.Error()
		} else if sent, failed, _ := p.GetStats(); sent > 0 || failed > 0 {
			st.Detail = formatCounts(sent, failed)
		}
		out = append(out, st)
	}

	order := map[string]int{OutputMQTT: 0, OutputValkey: 1, OutputKafka: 2}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return order[out[i].Kind] < order[out[j].Kind]
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ConnectOutputs starts every enabled republisher in the background.
func (e *Engine) ConnectOutputs() error {
	if e.mqttMgr == nil {
		return ErrNotStarted
	}
	e.StartServices()
	return nil
}

// DisconnectOutputs stops every republisher.
func (e *Engine) DisconnectOutputs() error {
	if e.mqttMgr == nil {
		return ErrNotStarted
	}
	e.stopOutputs()
	e.logFn("All outputs disconnected")
	return nil
}

func (e *Engine) stopOutputs() {
	e.mqttMgr.StopAll()
	e.emit(EventMQTTStopped, ServiceEvent{})
	e.valkeyMgr.StopAll()
	e.emit(EventValkeyStopped, ServiceEvent{})
	e.kafkaMgr.StopAll()
	e.emit(EventKafkaDisconnected, ServiceEvent{})
}

func formatCounts(sent, failed int64) string {
	if failed == 0 {
		return fmt.Sprintf("%d sent", sent)
	}
	return fmt.Sprintf("%d sent, %d failed", sent, failed)
}
