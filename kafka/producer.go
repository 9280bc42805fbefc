package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"signaltap/config"
	"signaltap/logging"
	"signaltap/tagmsg"
)

// ErrNotConnected is returned when publishing to a disconnected cluster.
var ErrNotConnected = errors.New("kafka cluster not connected")

// ConnectionStatus represents the state of a cluster connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer sends tag values to one cluster.
type Producer struct {
	config  *config.KafkaConfig
	format  tagmsg.Format
	writer  messageWriter
	status  ConnectionStatus
	lastErr error
	mu      sync.RWMutex
	changes *tagmsg.ChangeFilter

	messagesSent  int64
	messagesError int64
	lastSendTime  time.Time
}

// NewProducer creates a producer for cfg. It does not connect.
func NewProducer(cfg *config.KafkaConfig) *Producer {
	return &Producer{
		config:  cfg,
		format:  tagmsg.ParseFormat(cfg.Format),
		status:  StatusDisconnected,
		changes: tagmsg.NewChangeFilter(),
	}
}

// Name returns the configured name.
func (p *Producer) Name() string {
	return p.config.Name
}

// Config returns the cluster configuration.
func (p *Producer) Config() *config.KafkaConfig {
	return p.config
}

// Brokers returns the configured broker list, comma separated.
func (p *Producer) Brokers() string {
	return strings.Join(p.config.Brokers, ",")
}

// GetStatus returns the current connection status.
func (p *Producer) GetStatus() ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// GetError returns the last error.
func (p *Producer) GetError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// GetStats returns producer statistics.
func (p *Producer) GetStats() (sent, errors int64, lastSend time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messagesSent, p.messagesError, p.lastSendTime
}

// Connect checks a broker is reachable and prepares the topic writer.
func (p *Producer) Connect() error {
	p.mu.Lock()
	p.status = StatusConnecting
	p.lastErr = nil
	p.mu.Unlock()

	if len(p.config.Brokers) == 0 {
		return p.fail(fmt.Errorf("no brokers configured"))
	}

	logging.DebugLog("kafka", "CONNECT %s: brokers %v", p.config.Name, p.config.Brokers)

	dialer, err := newDialer(p.config)
	if err != nil {
		return p.fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return p.fail(fmt.Errorf("failed to connect: %w", err))
	}
	conn.Close()

	writer, err := newWriter(p.config)
	if err != nil {
		return p.fail(err)
	}
	p.attach(writer)

	logging.DebugLog("kafka", "CONNECT %s: connected, topic %s", p.config.Name, topicOf(p.config))
	return nil
}

func (p *Producer) fail(err error) error {
	p.mu.Lock()
	p.status = StatusError
	p.lastErr = err
	p.mu.Unlock()
	logging.DebugLog("kafka", "CONNECT %s: FAILED - %v", p.config.Name, err)
	return err
}

func (p *Producer) attach(w messageWriter) {
	p.mu.Lock()
	if p.writer != nil {
		p.writer.Close()
	}
	p.writer = w
	p.status = StatusConnected
	p.mu.Unlock()

	p.changes.Reset()
}

// Disconnect closes the writer.
func (p *Producer) Disconnect() {
	p.mu.Lock()
	writer := p.writer
	p.writer = nil
	p.status = StatusDisconnected
	p.lastErr = nil
	p.mu.Unlock()

	if writer != nil {
		writer.Close()
		logging.DebugLog("kafka", "DISCONNECT %s", p.config.Name)
	}
}

// buildMessages keys each changed value by "{plc}.{tag}" so one tag's
// history stays on one partition.
func (p *Producer) buildMessages(msgs []tagmsg.Message, force bool) ([]kafka.Message, []tagmsg.Message) {
	out := make([]kafka.Message, 0, len(msgs))
	sent := make([]tagmsg.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !p.changes.Changed(msg, force) {
			continue
		}
		payload, err := tagmsg.Encode(p.format, msg)
		if err != nil {
			logging.DebugLog("kafka", "encode %s: %v", msg.Tag, err)
			continue
		}
		out = append(out, kafka.Message{
			Key:   []byte(msg.PLC + "." + msg.Tag),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte(p.format.ContentType())},
				{Key: "session", Value: []byte(msg.Session)},
			},
		})
		sent = append(sent, msg)
	}
	return out, sent
}

// Publish writes changed values (all when force is set) as one batch.
func (p *Producer) Publish(ctx context.Context, msgs []tagmsg.Message, force bool) (int, error) {
	p.mu.RLock()
	writer := p.writer
	connected := p.status == StatusConnected
	p.mu.RUnlock()

	if !connected || writer == nil {
		return 0, ErrNotConnected
	}

	batch, sent := p.buildMessages(msgs, force)
	if len(batch) == 0 {
		return 0, nil
	}

	start := time.Now()
	if err := writer.WriteMessages(ctx, batch...); err != nil {
		p.mu.Lock()
		p.messagesError += int64(len(batch))
		p.lastErr = err
		p.mu.Unlock()
		return 0, fmt.Errorf("kafka batch produce failed: %w", err)
	}

	for _, msg := range sent {
		p.changes.Record(msg)
	}

	p.mu.Lock()
	p.messagesSent += int64(len(batch))
	p.lastSendTime = time.Now()
	p.lastErr = nil
	p.mu.Unlock()

	logging.DebugLog("kafka", "PRODUCE %s: %d msgs in %v", p.config.Name, len(batch), time.Since(start).Round(time.Millisecond))
	return len(batch), nil
}
