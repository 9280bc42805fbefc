// Package mqtt republishes polled tag values to MQTT brokers.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"signaltap/config"
	"signaltap/logging"
	"signaltap/tagmsg"
)

// DefaultRootTopic prefixes every topic when none is configured.
const DefaultRootTopic = "signaltap"

func logMQTT(format string, args ...interface{}) {
	logging.DebugLog("mqtt", format, args...)
}

// Publisher handles publishing tag values to one MQTT broker.
type Publisher struct {
	config  *config.MQTTConfig
	format  tagmsg.Format
	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex
	changes *tagmsg.ChangeFilter
}

// NewPublisher creates a publisher for cfg. It does not connect.
func NewPublisher(cfg *config.MQTTConfig) *Publisher {
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

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.MQTTConfig {
	return p.config
}

// Address returns the broker URL.
func (p *Publisher) Address() string {
	scheme := "tcp"
	if p.config.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.config.Broker, p.port())
}

func (p *Publisher) port() int {
	if p.config.Port > 0 {
		return p.config.Port
	}
	if p.config.UseTLS {
		return 8883
	}
	return 1883
}

func (p *Publisher) rootTopic() string {
	root := strings.Trim(p.config.RootTopic, "/")
	if root == "" {
		return DefaultRootTopic
	}
	return root
}

// Start connects to the broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.Address())
	if p.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	clientID := p.config.ClientID
	if clientID == "" {
		clientID = "signaltap-" + p.config.Name
	}
	opts.SetClientID(clientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logMQTT("Attempting to connect to MQTT broker %s", p.Address())

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		logMQTT("MQTT connection timeout")
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		logMQTT("MQTT connection error: %v", token.Error())
		return token.Error()
	}

	logMQTT("Connected to MQTT broker %s", p.Address())
	p.attach(client)
	return nil
}

// attach installs a connected client and forgets previously sent values.
func (p *Publisher) attach(client pahomqtt.Client) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	p.changes.Reset()
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	client.Disconnect(500)
	logMQTT("Disconnected from %s", p.Address())
}

// BuildTopic constructs the retained topic for a tag.
func (p *Publisher) BuildTopic(plc, tag string) string {
	return fmt.Sprintf("%s/%s/tags/%s", p.rootTopic(), plc, tag)
}

// Publish sends the messages whose value changed since the last publish
// (all of them when force is set). It returns how many were published.
func (p *Publisher) Publish(msgs []tagmsg.Message, force bool) int {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return 0
	}

	published := 0
	for _, msg := range msgs {
		if !p.changes.Changed(msg, force) {
			continue
		}

		payload, err := tagmsg.Encode(p.format, msg)
		if err != nil {
			logMQTT("encode %s: %v", msg.Tag, err)
			continue
		}

		token := client.Publish(p.BuildTopic(msg.PLC, msg.Tag), 1, true, payload)
		if !token.WaitTimeout(2 * time.Second) {
			logMQTT("publish %s timed out", msg.Tag)
			continue
		}
		if token.Error() != nil {
			logMQTT("publish %s: %v", msg.Tag, token.Error())
			continue
		}

		p.changes.Record(msg)
		published++
	}
	return published
}
