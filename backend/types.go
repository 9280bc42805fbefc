// Package backend is the HTTP client for the PLC scan/read API.
package backend

import (
	"fmt"
	"strconv"
)

// Unreadable is the value the backend reports for a tag it could not read.
const Unreadable = "Unreadable"

// Tag is a named, typed data point discovered by a scan.
type Tag struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TagValue is the result of reading one tag. Value is a string, number, bool,
// or the Unreadable sentinel. Status and Timestamp are optional.
type TagValue struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// IsUnreadable reports whether the backend marked the value unreadable.
func (v TagValue) IsUnreadable() bool {
	s, ok := v.Value.(string)
	return ok && s == Unreadable
}

// FormatValue renders a decoded JSON value the way the tag table shows it:
// numbers without trailing zeros, true/false, strings verbatim, null as "".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
