package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/config"
	"signaltap/tagmsg"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes; other Client methods are unused.
type fakeClient struct {
	pahomqtt.Client
	mu           sync.Mutex
	sent         []published
	failTopic    string
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if topic == c.failTopic {
		return doneToken{err: errors.New("not authorized")}
	}
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func runningPublisher(cfg config.MQTTConfig) (*Publisher, *fakeClient) {
	pub := NewPublisher(&cfg)
	client := &fakeClient{}
	pub.attach(client)
	return pub, client
}

func messages(counter float64) []tagmsg.Message {
	return []tagmsg.Message{
		{Session: "s1", PLC: "10.0.0.1", Tag: "Counter", Type: "DINT", Value: counter, Timestamp: "t"},
		{Session: "s1", PLC: "10.0.0.1", Tag: "PumpStatus", Type: "BOOL", Value: true, Timestamp: "t"},
	}
}

func TestBuildTopic(t *testing.T) {
	pub := NewPublisher(&config.MQTTConfig{Name: "plant"})
	assert.Equal(t, "signaltap/10.0.0.1/tags/MotorSpeed", pub.BuildTopic("10.0.0.1", "MotorSpeed"))

	pub = NewPublisher(&config.MQTTConfig{Name: "plant", RootTopic: "/factory/line1/"})
	assert.Equal(t, "factory/line1/10.0.0.1/tags/Counter", pub.BuildTopic("10.0.0.1", "Counter"))
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "tcp://broker:1883", NewPublisher(&config.MQTTConfig{Broker: "broker"}).Address())
	assert.Equal(t, "ssl://broker:8883", NewPublisher(&config.MQTTConfig{Broker: "broker", UseTLS: true}).Address())
	assert.Equal(t, "tcp://broker:1884", NewPublisher(&config.MQTTConfig{Broker: "broker", Port: 1884}).Address())
}

func TestPublishRetainedQoS1(t *testing.T) {
	pub, client := runningPublisher(config.MQTTConfig{Name: "plant"})

	n := pub.Publish(messages(1), false)
	require.Equal(t, 2, n)
	require.Len(t, client.sent, 2)

	first := client.sent[0]
	assert.Equal(t, "signaltap/10.0.0.1/tags/Counter", first.topic)
	assert.Equal(t, byte(1), first.qos)
	assert.True(t, first.retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(first.payload, &body))
	assert.Equal(t, "Counter", body["tag"])
	assert.Equal(t, 1.0, body["value"])
}

func TestPublishOnlyChanges(t *testing.T) {
	pub, client := runningPublisher(config.MQTTConfig{Name: "plant"})

	assert.Equal(t, 2, pub.Publish(messages(1), false))
	assert.Equal(t, 0, pub.Publish(messages(1), false), "unchanged values are skipped")
	assert.Equal(t, 1, pub.Publish(messages(2), false), "only the counter changed")
	assert.Equal(t, 2, pub.Publish(messages(2), true), "force republishes everything")
	assert.Len(t, client.sent, 5)
}

func TestPublishFailureRetriesNextTime(t *testing.T) {
	pub, client := runningPublisher(config.MQTTConfig{Name: "plant"})
	client.failTopic = "signaltap/10.0.0.1/tags/Counter"

	assert.Equal(t, 1, pub.Publish(messages(1), false))

	client.mu.Lock()
	client.failTopic = ""
	client.mu.Unlock()
	assert.Equal(t, 1, pub.Publish(messages(1), false), "failed tag is not recorded as sent")
}

func TestPublishMsgpack(t *testing.T) {
	pub, client := runningPublisher(config.MQTTConfig{Name: "plant", Format: "msgpack"})
	require.Equal(t, 2, pub.Publish(messages(7), false))

	msg, err := tagmsg.Decode(tagmsg.FormatMsgpack, client.sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "Counter", msg.Tag)
	assert.Equal(t, 7.0, msg.Value)
}

func TestStoppedPublisherIgnoresMessages(t *testing.T) {
	pub, client := runningPublisher(config.MQTTConfig{Name: "plant"})
	pub.Stop()
	pub.Stop()

	assert.True(t, client.disconnected)
	assert.False(t, pub.IsRunning())
	assert.Zero(t, pub.Publish(messages(1), false))
}

func TestManager(t *testing.T) {
	m := NewManager()
	m.LoadFromConfig([]config.MQTTConfig{{Name: "a"}, {Name: "b"}})
	require.Len(t, m.List(), 2)
	assert.False(t, m.AnyRunning())
	assert.Zero(t, m.Publish(messages(1), false))

	// disabled publishers are not started
	assert.Zero(t, m.StartAll())

	client := &fakeClient{}
	m.Get("a").attach(client)
	assert.True(t, m.AnyRunning())
	assert.Equal(t, 2, m.Publish(messages(1), false))

	m.StopAll()
	assert.False(t, m.AnyRunning())
	assert.True(t, client.disconnected)
}
