// Package logging provides the file, debug and in-memory logs used by SignalTap.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// lineFormatter renders "timestamp [component] message" lines.
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(e.Time.Format(timestampFormat))
	if c, ok := e.Data["component"].(string); ok && c != "" {
		sb.WriteString(" [")
		sb.WriteString(c)
		sb.WriteString("]")
	}
	if e.Level <= logrus.WarnLevel {
		sb.WriteString(" ")
		sb.WriteString(strings.ToUpper(e.Level.String()))
	}
	sb.WriteString(" ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

// FileLogger writes log messages to a file.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	file   *os.File
	log    *logrus.Logger
	mu     sync.Mutex
	closed bool
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := logrus.New()
	l.SetOutput(file)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(logrus.InfoLevel)

	return &FileLogger{
		file: file,
		log:  l,
	}, nil
}

// Log writes a formatted message with a timestamp.
func (l *FileLogger) Log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.log.WithTime(time.Now()).Infof(format, args...)
}

// Close closes the log file. Calling it twice is safe.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}
