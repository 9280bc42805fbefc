package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DebugLogger provides verbose, component-tagged logging for troubleshooting
// backend round-trips, poll ticks and republishing.
type DebugLogger struct {
	log     *logrus.Logger
	file    *os.File
	mu      sync.Mutex
	closed  bool
	filters map[string]bool // component filters (empty = log all)
}

var (
	globalDebugLogger *DebugLogger
	globalDebugMu     sync.RWMutex
)

// Components known to SignalTap, accepted by SetFilter.
var knownComponents = []string{
	"backend",
	"plcman",
	"engine",
	"mqtt",
	"valkey",
	"kafka",
	"simulator",
	"tui",
	"config",
}

// KnownComponents returns the component names accepted by SetFilter.
func KnownComponents() []string {
	out := make([]string, len(knownComponents))
	copy(out, knownComponents)
	return out
}

// NewDebugLogger creates a debug logger writing to path. The file is truncated
// for each run. An empty path discards output; hooks (such as a Ring) still fire.
func NewDebugLogger(path string) (*DebugLogger, error) {
	var out io.Writer = io.Discard
	var file *os.File
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log file: %w", err)
		}
		file = f
		out = f
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(logrus.DebugLevel)

	logger := &DebugLogger{
		log:     l,
		file:    file,
		filters: make(map[string]bool),
	}
	if file != nil {
		logger.Log("debug", "Debug logging started - %s", time.Now().Format(time.RFC3339))
	}
	return logger, nil
}

// AddHook attaches a logrus hook, e.g. a Ring feeding the TUI.
func (l *DebugLogger) AddHook(h logrus.Hook) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.AddHook(h)
}

// SetFilter restricts logging to a comma-separated list of components.
// "" or "all" logs everything. Matching is case-insensitive.
func (l *DebugLogger) SetFilter(filter string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.filters = make(map[string]bool)
	filter = strings.TrimSpace(strings.ToLower(filter))
	if filter == "" || filter == "all" {
		return
	}

	for _, c := range strings.Split(filter, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		l.filters[c] = true
		// the engine drives all three republishers
		if c == "engine" {
			l.filters["mqtt"] = true
			l.filters["valkey"] = true
			l.filters["kafka"] = true
		}
	}
}

// shouldLog must be called with l.mu held.
func (l *DebugLogger) shouldLog(component string) bool {
	if len(l.filters) == 0 {
		return true
	}
	c := strings.ToLower(component)
	return l.filters[c] || c == "debug"
}

// Log writes a formatted message tagged with component.
func (l *DebugLogger) Log(component, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.shouldLog(component) {
		return
	}
	l.log.WithField("component", component).Debugf(format, args...)
}

// LogError logs err with the operation it happened in.
func (l *DebugLogger) LogError(component, context string, err error) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.shouldLog(component) {
		return
	}
	l.log.WithField("component", component).Warnf("ERROR in %s: %v", context, err)
}

// Close closes the debug log file.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.file == nil {
		return nil
	}
	l.log.WithField("component", "debug").Debug("Debug logging ended")
	return l.file.Close()
}

// SetGlobalDebugLogger sets the logger used by DebugLog and DebugError.
func SetGlobalDebugLogger(logger *DebugLogger) {
	globalDebugMu.Lock()
	defer globalDebugMu.Unlock()
	globalDebugLogger = logger
}

// GetGlobalDebugLogger returns the global debug logger, or nil.
func GetGlobalDebugLogger() *DebugLogger {
	globalDebugMu.RLock()
	defer globalDebugMu.RUnlock()
	return globalDebugLogger
}

// DebugLog logs a message if debug logging is enabled.
func DebugLog(component, format string, args ...interface{}) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.Log(component, format, args...)
	}
}

// DebugError logs an error if debug logging is enabled.
func DebugError(component, context string, err error) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogError(component, context, err)
	}
}
