package valkey

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/config"
	"signaltap/tagmsg"
)

func TestJoinKey(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{[]string{"signaltap", "10.0.0.1", "tags", "Counter"}, "signaltap:10.0.0.1:tags:Counter"},
		{[]string{":plant:", "", "plc", "changes"}, "plant:plc:changes"},
		{[]string{"", ""}, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, joinKey(tc.segments...))
	}
}

func TestKeys(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "cache", Address: "localhost:6379"})
	assert.Equal(t, "signaltap:192.168.1.10:tags:MotorSpeed", pub.TagKey("192.168.1.10", "MotorSpeed"))
	assert.Equal(t, "signaltap:192.168.1.10:changes", pub.ChangesChannel("192.168.1.10"))
	assert.Equal(t, "redis://localhost:6379", pub.Address())

	pub = NewPublisher(&config.ValkeyConfig{Name: "cache", Address: "db:6380", KeyPrefix: "plant1:", UseTLS: true})
	assert.Equal(t, "plant1:10.0.0.1:tags:Counter", pub.TagKey("10.0.0.1", "Counter"))
	assert.Equal(t, "rediss://db:6380", pub.Address())
}

func TestPrepare(t *testing.T) {
	msgs := []tagmsg.Message{
		{PLC: "10.0.0.1", Tag: "Counter", Type: "DINT", Value: 5.0},
		{PLC: "10.0.0.1", Tag: "Recipe", Type: "STRING", Value: "A"},
	}

	t.Run("without change channel", func(t *testing.T) {
		pub := NewPublisher(&config.ValkeyConfig{Name: "cache"})
		entries := pub.prepare(msgs, false)
		require.Len(t, entries, 2)
		assert.Equal(t, "signaltap:10.0.0.1:tags:Counter", entries[0].key)
		assert.Empty(t, entries[0].channel)

		var body map[string]any
		require.NoError(t, json.Unmarshal(entries[1].payload, &body))
		assert.Equal(t, "A", body["value"])
	})

	t.Run("with change channel", func(t *testing.T) {
		pub := NewPublisher(&config.ValkeyConfig{Name: "cache", PublishChanges: true})
		entries := pub.prepare(msgs, false)
		require.Len(t, entries, 2)
		assert.Equal(t, "signaltap:10.0.0.1:changes", entries[0].channel)
	})

	t.Run("recorded values are skipped unless forced", func(t *testing.T) {
		pub := NewPublisher(&config.ValkeyConfig{Name: "cache"})
		for _, e := range pub.prepare(msgs, false) {
			pub.changes.Record(e.msg)
		}
		assert.Empty(t, pub.prepare(msgs, false))
		assert.Len(t, pub.prepare(msgs, true), 2)

		changed := append([]tagmsg.Message(nil), msgs...)
		changed[0].Value = 6.0
		entries := pub.prepare(changed, false)
		require.Len(t, entries, 1)
		assert.Equal(t, "Counter", entries[0].msg.Tag)
	})

	t.Run("msgpack", func(t *testing.T) {
		pub := NewPublisher(&config.ValkeyConfig{Name: "cache", Format: "msgpack"})
		entries := pub.prepare(msgs[:1], false)
		require.Len(t, entries, 1)
		decoded, err := tagmsg.Decode(tagmsg.FormatMsgpack, entries[0].payload)
		require.NoError(t, err)
		assert.Equal(t, "Counter", decoded.Tag)
	})
}

func TestStoppedPublisher(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "cache"})
	n, err := pub.Publish([]tagmsg.Message{{PLC: "p", Tag: "t", Value: 1.0}}, true)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, pub.Stop())
}

func TestManagerWithoutRunningPublishers(t *testing.T) {
	m := NewManager()
	m.LoadFromConfig([]config.ValkeyConfig{{Name: "a"}, {Name: "b", Enabled: false}})
	assert.Len(t, m.List(), 2)
	assert.Zero(t, m.StartAll())
	assert.False(t, m.AnyRunning())
	assert.Zero(t, m.Publish([]tagmsg.Message{{PLC: "p", Tag: "t"}}, false))
	m.StopAll()
}
