// Package simulator serves the scan/read HTTP contract backed by an in-memory
// demo controller.
package simulator

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"signaltap/backend"
)

// demoTag is one simulated tag. value is nil for tags the controller refuses to read.
type demoTag struct {
	name  string
	typ   string
	value func(tick uint64) any
}

var recipes = []string{"Idle", "Mixing", "Filling", "Capping"}

func defaultTags() []demoTag {
	return []demoTag{
		{"MotorSpeed", "REAL", func(n uint64) any {
			return math.Round((1500+25*math.Sin(float64(n)/5))*10) / 10
		}},
		{"PumpStatus", "BOOL", func(n uint64) any { return n%4 < 2 }},
		{"Counter", "DINT", func(n uint64) any { return n }},
		{"Recipe", "STRING", func(n uint64) any { return recipes[(n/3)%uint64(len(recipes))] }},
		{"Timer1", "TIMER", func(n uint64) any { return (n * 250) % 5000 }},
		{"TankLevel", "REAL", func(n uint64) any {
			return math.Round((50+40*math.Cos(float64(n)/9))*100) / 100
		}},
		{"AlarmActive", "BOOL", func(n uint64) any { return n%17 == 0 }},
		{"BatchCount", "INT", func(n uint64) any { return n / 10 }},
		{"Program:MainProgram.Step", "DINT", func(n uint64) any { return n % 8 }},
		{"Program:MainProgram.Message", "STRING", func(n uint64) any { return fmt.Sprintf("step %d", n%8) }},
		{"Station2_Fault", "DINT", nil},
	}
}

// ConnectError is returned when the simulated controller is offline.
type ConnectError struct {
	Address string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("Failed to connect to PLC at %s", e.Address)
}

// PLC is a simulated controller. Every read of at least one tag advances
// the tick that drives the demo values.
type PLC struct {
	mu      sync.Mutex
	tags    []demoTag
	byName  map[string]demoTag
	offline map[string]bool
	tick    uint64
	scans   int
	reads   int
	now     func() time.Time
}

// NewPLC creates a simulated controller with the demo tag set. Addresses in
// offline refuse every connection.
func NewPLC(offline ...string) *PLC {
	p := &PLC{
		tags:    defaultTags(),
		byName:  make(map[string]demoTag),
		offline: make(map[string]bool),
		now:     time.Now,
	}
	for _, t := range p.tags {
		p.byName[t.name] = t
	}
	for _, addr := range offline {
		p.offline[strings.TrimSpace(addr)] = true
	}
	return p
}

// SetOffline marks address as unreachable or reachable again.
func (p *PLC) SetOffline(address string, offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offline {
		p.offline[address] = true
	} else {
		delete(p.offline, address)
	}
}

// Stats returns how many scans and reads have been served.
func (p *PLC) Stats() (scans, reads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scans, p.reads
}

// Scan lists every tag the controller at address exposes.
func (p *PLC) Scan(address string, slot int) ([]backend.Tag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline[address] {
		return nil, &ConnectError{Address: address}
	}
	p.scans++

	tags := make([]backend.Tag, 0, len(p.tags))
	for _, t := range p.tags {
		tags = append(tags, backend.Tag{Name: t.name, Type: t.typ})
	}
	return tags, nil
}

// Read returns one result per requested name, in request order. Unknown
// and faulted tags come back Unreadable with status "Error".
func (p *PLC) Read(address string, names []string) ([]backend.TagValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline[address] {
		return nil, &ConnectError{Address: address}
	}
	p.reads++
	if len(names) > 0 {
		p.tick++
	}

	ts := p.now().UTC().Format("2006-01-02T15:04:05.000000")
	out := make([]backend.TagValue, 0, len(names))
	for _, name := range names {
		t, ok := p.byName[name]
		if !ok || t.value == nil {
			out = append(out, backend.TagValue{Name: name, Value: backend.Unreadable, Status: "Error", Timestamp: ts})
			continue
		}
		out = append(out, backend.TagValue{Name: name, Value: t.value(p.tick), Status: "Success", Timestamp: ts})
	}
	return out, nil
}
