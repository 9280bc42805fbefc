package logging

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ring is a logrus hook keeping the most recent formatted entries in memory.
type Ring struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewRing creates a ring holding at most max lines.
func NewRing(max int) *Ring {
	if max <= 0 {
		max = 500
	}
	return &Ring{
		lines: make([]string, 0, max),
		max:   max,
	}
}

// Levels implements logrus.Hook.
func (r *Ring) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (r *Ring) Fire(e *logrus.Entry) error {
	component, _ := e.Data["component"].(string)
	line := fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05.000"), component, e.Message)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
	return nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of buffered lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Clear drops all buffered lines.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = r.lines[:0]
}
