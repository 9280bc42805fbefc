// Package tagmsg defines the payload republished for each polled tag value.
package tagmsg

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"signaltap/backend"
	"signaltap/plcman"
)

// Message is one tag value as seen by the republishers.
type Message struct {
	Session   string `json:"session" msgpack:"session"`
	PLC       string `json:"plc" msgpack:"plc"`
	Slot      int    `json:"slot" msgpack:"slot"`
	Tag       string `json:"tag" msgpack:"tag"`
	Type      string `json:"type,omitempty" msgpack:"type,omitempty"`
	Value     any    `json:"value" msgpack:"value"`
	Status    string `json:"status,omitempty" msgpack:"status,omitempty"`
	Timestamp string `json:"timestamp" msgpack:"timestamp"`
}

// Format selects the payload encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a config value to a Format; anything unknown is JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatMsgpack)) {
		return FormatMsgpack
	}
	return FormatJSON
}

// ContentType returns the MIME type of the encoding.
func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Encode serializes m.
func Encode(f Format, m Message) ([]byte, error) {
	switch f {
	case FormatMsgpack:
		data, err := msgpack.Marshal(&m)
		if err != nil {
			return nil, fmt.Errorf("msgpack encode %s: %w", m.Tag, err)
		}
		return data, nil
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("json encode %s: %w", m.Tag, err)
		}
		return data, nil
	}
}

// Decode parses data produced by Encode.
func Decode(f Format, data []byte) (Message, error) {
	var m Message
	var err error
	if f == FormatMsgpack {
		err = msgpack.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	return m, err
}

// FromUpdate builds one message per scanned tag that received a value, in
// scan order. Values for names outside the tag set are dropped.
func FromUpdate(u plcman.Update) []Message {
	fallback := u.At.UTC().Format(time.RFC3339Nano)
	msgs := make([]Message, 0, len(u.Tags))
	for _, tag := range u.Tags {
		v, ok := u.Index[tag.Name]
		if !ok {
			continue
		}
		ts := v.Timestamp
		if ts == "" {
			ts = fallback
		}
		msgs = append(msgs, Message{
			Session:   u.SessionID,
			PLC:       u.Target.Address,
			Slot:      u.Target.Slot,
			Tag:       tag.Name,
			Type:      tag.Type,
			Value:     v.Value,
			Status:    v.Status,
			Timestamp: ts,
		})
	}
	return msgs
}

// ChangeFilter remembers the last value sent per PLC/tag so a sink only
// republishes what changed.
type ChangeFilter struct {
	mu   sync.Mutex
	last map[string]string
}

// NewChangeFilter creates an empty filter.
func NewChangeFilter() *ChangeFilter {
	return &ChangeFilter{last: make(map[string]string)}
}

// Changed reports whether m differs from the last value recorded for its
// PLC/tag. force always reports true.
func (f *ChangeFilter) Changed(m Message, force bool) bool {
	key := m.PLC + "/" + m.Tag
	value := backend.FormatValue(m.Value)

	f.mu.Lock()
	defer f.mu.Unlock()
	last, exists := f.last[key]
	return force || !exists || last != value
}

// Record stores m as the last value sent.
func (f *ChangeFilter) Record(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[m.PLC+"/"+m.Tag] = backend.FormatValue(m.Value)
}

// Reset forgets all recorded values.
func (f *ChangeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = make(map[string]string)
}
