package kafka

import (
	"context"
	"sync"
	"time"

	"signaltap/config"
	"signaltap/logging"
	"signaltap/tagmsg"
)

// Manager manages the producers of all configured clusters.
type Manager struct {
	producers map[string]*Producer
	mu        sync.RWMutex
}

// NewManager creates a new Kafka manager.
func NewManager() *Manager {
	return &Manager{
		producers: make(map[string]*Producer),
	}
}

// LoadFromConfig creates producers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.KafkaConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range cfgs {
		m.producers[cfgs[i].Name] = NewProducer(&cfgs[i])
	}
}

// Get returns a producer by name.
func (m *Manager) Get(name string) *Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producers[name]
}

// List returns all producers.
func (m *Manager) List() []*Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Producer, 0, len(m.producers))
	for _, p := range m.producers {
		result = append(result, p)
	}
	return result
}

// StartAll connects all enabled clusters and returns how many connected.
func (m *Manager) StartAll() int {
	started := 0
	for _, p := range m.List() {
		if !p.config.Enabled || p.GetStatus() == StatusConnected {
			continue
		}
		if err := p.Connect(); err != nil {
			logging.DebugLog("kafka", "Failed to connect %s: %v", p.Name(), err)
			continue
		}
		started++
	}
	return started
}

// StopAll disconnects every cluster.
func (m *Manager) StopAll() {
	for _, p := range m.List() {
		p.Disconnect()
	}
}

// Publish sends msgs to every connected cluster in parallel.
func (m *Manager) Publish(msgs []tagmsg.Message, force bool) int {
	var connected []*Producer
	for _, p := range m.List() {
		if p.GetStatus() == StatusConnected {
			connected = append(connected, p)
		}
	}
	if len(connected) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for _, p := range connected {
		wg.Add(1)
		go func(p *Producer) {
			defer wg.Done()
			n, err := p.Publish(ctx, msgs, force)
			if err != nil {
				logging.DebugLog("kafka", "PUBLISH %s: %v", p.Name(), err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return total
}

// AnyRunning returns true if any cluster is connected.
func (m *Manager) AnyRunning() bool {
	for _, p := range m.List() {
		if p.GetStatus() == StatusConnected {
			return true
		}
	}
	return false
}
