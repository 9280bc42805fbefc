package valkey

import (
	"sync"

	"signaltap/config"
	"signaltap/tagmsg"
)

// Manager fans poll updates out to every configured Valkey server, in config order.
type Manager struct {
	mu         sync.RWMutex
	publishers []*Publisher
}

func NewManager() *Manager {
	return &Manager{}
}

// LoadFromConfig adds one publisher per entry. Publishers hold pointers into
// cfgs, so the slice must outlive the manager.
func (m *Manager) LoadFromConfig(cfgs []config.ValkeyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range cfgs {
		m.publishers = append(m.publishers, NewPublisher(&cfgs[i]))
	}
}

// List returns a snapshot of the publishers.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Publisher(nil), m.publishers...)
}

// StartAll connects the enabled publishers that are not running yet and
// returns how many connected.
func (m *Manager) StartAll() int {
	connected := 0
	for _, pub := range m.List() {
		if !pub.config.Enabled || pub.IsRunning() {
			continue
		}
		if err := pub.Start(); err != nil {
			debugLog("%s: connect to %s failed: %v", pub.Name(), pub.Address(), err)
			continue
		}
		connected++
	}
	return connected
}

func (m *Manager) StopAll() {
	for _, pub := range m.List() {
		pub.Stop()
	}
}

// Publish writes msgs through every running publisher and returns the number
// of keys written. A failing server does not stop the others.
func (m *Manager) Publish(msgs []tagmsg.Message, force bool) int {
	written := 0
	for _, pub := range m.List() {
		if !pub.IsRunning() {
			continue
		}
		n, err := pub.Publish(msgs, force)
		written += n
		if err != nil {
			debugLog("publish failed: %v", err)
		}
	}
	return written
}

// AnyRunning reports whether at least one publisher is connected.
func (m *Manager) AnyRunning() bool {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}
