package backend

import (
	"encoding/json"
)

// Fallback messages used when the backend gives no usable detail.
const (
	ScanFallbackMessage = "Failed to connect to PLC. Please check the IP and try again."
	ReadFallbackMessage = "Failed to read PLC tags"
)

// ScanError is returned by ScanTags. Message is what the user sees.
type ScanError struct {
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ScanError) Error() string {
	return e.Message
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ReadError is returned by ReadTags.
type ReadError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *ReadError) Error() string {
	return e.Message
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// detailMessage extracts a string "detail" from an error body, or "".
// Non-string details (FastAPI validation lists, objects) are ignored.
func detailMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(eb.Detail, &s); err != nil {
		return ""
	}
	return s
}
