// Package valkey republishes polled tag values to Valkey/Redis.
package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"signaltap/config"
	"signaltap/logging"
	"signaltap/tagmsg"
)

// DefaultKeyPrefix prefixes every key when none is configured.
const DefaultKeyPrefix = "signaltap"

func debugLog(format string, args ...interface{}) {
	logging.DebugLog("valkey", format, args...)
}

// joinKey joins key segments with colons, trimming leading/trailing colons
// from each segment to avoid empty key parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// entry is one prepared SET (and optional PUBLISH).
type entry struct {
	msg     tagmsg.Message
	key     string
	channel string // empty when change publishing is off
	payload []byte
}

// Publisher stores tag values in one Valkey server.
type Publisher struct {
	config  *config.ValkeyConfig
	format  tagmsg.Format
	client  *redis.Client
	running bool
	mu      sync.RWMutex
	changes *tagmsg.ChangeFilter
}

// NewPublisher creates a publisher for cfg. It does not connect.
func NewPublisher(cfg *config.ValkeyConfig) *Publisher {
	return &Publisher{
		config:  cfg,
		format:  tagmsg.ParseFormat(cfg.Format),
		changes: tagmsg.NewChangeFilter(),
	}
}

// Name returns the configured name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.ValkeyConfig {
	return p.config
}

// Address returns the server URL.
func (p *Publisher) Address() string {
	scheme := "redis"
	if p.config.UseTLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s", scheme, p.config.Address)
}

func (p *Publisher) prefix() string {
	if p.config.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return p.config.KeyPrefix
}

// TagKey returns the key a tag value is stored under.
func (p *Publisher) TagKey(plc, tag string) string {
	return joinKey(p.prefix(), plc, "tags", tag)
}

// ChangesChannel returns the Pub/Sub channel for a PLC's changes.
func (p *Publisher) ChangesChannel(plc string) string {
	return joinKey(p.prefix(), plc, "changes")
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start connects to the server.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	debugLog("Attempting to connect to Valkey at %s (DB: %d, TLS: %v)", p.config.Address, p.config.Database, p.config.UseTLS)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Valkey at %s: %w", p.config.Address, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	p.changes.Reset()

	debugLog("Connected to Valkey at %s", p.config.Address)
	return nil
}

// Stop disconnects from the server.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// prepare encodes the messages that need publishing.
func (p *Publisher) prepare(msgs []tagmsg.Message, force bool) []entry {
	entries := make([]entry, 0, len(msgs))
	for _, msg := range msgs {
		if !p.changes.Changed(msg, force) {
			continue
		}
		payload, err := tagmsg.Encode(p.format, msg)
		if err != nil {
			debugLog("encode %s: %v", msg.Tag, err)
			continue
		}
		e := entry{msg: msg, key: p.TagKey(msg.PLC, msg.Tag), payload: payload}
		if p.config.PublishChanges {
			e.channel = p.ChangesChannel(msg.PLC)
		}
		entries = append(entries, e)
	}
	return entries
}

// Publish stores changed values (all when force is set) in one pipeline and
// returns how many were written.
func (p *Publisher) Publish(msgs []tagmsg.Message, force bool) (int, error) {
	p.mu.RLock()
	if !p.running || p.client == nil {
		p.mu.RUnlock()
		return 0, nil
	}
	client := p.client
	p.mu.RUnlock()

	entries := p.prepare(msgs, force)
	if len(entries) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := client.Pipeline()
	for _, e := range entries {
		pipe.Set(ctx, e.key, e.payload, p.config.KeyTTL)
		if e.channel != "" {
			pipe.Publish(ctx, e.channel, e.payload)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("valkey %s: %w", p.config.Name, err)
	}

	for _, e := range entries {
		p.changes.Record(e.msg)
	}
	return len(entries), nil
}
