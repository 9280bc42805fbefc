package plcman

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"signaltap/backend"
	"signaltap/tagfilter"
)

// Status is the state of the scan session.
type Status int

const (
	StatusIdle Status = iota
	StatusScanning
	StatusScanned
	StatusScanFailed
	StatusPolling
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusScanning:
		return "Scanning"
	case StatusScanned:
		return "Scanned"
	case StatusScanFailed:
		return "Scan failed"
	case StatusPolling:
		return "Polling"
	default:
		return "Unknown"
	}
}

var (
	// ErrScanInProgress is returned when a scan is requested while one is running.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrInvalidTarget is returned for a target without an address or with a negative slot.
	ErrInvalidTarget = errors.New("invalid PLC target")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("manager closed")
)

// Target identifies the PLC to scan.
type Target struct {
	Address string
	Slot    int
}

// Validate checks that the target can be scanned.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidTarget)
	}
	if t.Slot < 0 {
		return fmt.Errorf("%w: slot must be >= 0", ErrInvalidTarget)
	}
	return nil
}

// IsZero reports whether no target is set.
func (t Target) IsZero() bool {
	return t.Address == "" && t.Slot == 0
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%d", t.Address, t.Slot)
}

// Snapshot is a point-in-time copy of the session. Values is shared with the
// manager and must not be modified.
type Snapshot struct {
	SessionID string
	Target    Target
	Status    Status
	Tags      []backend.Tag
	Values    tagfilter.ValueIndex
	LastError string // last scan error, shown to the user

	LastPoll    time.Time
	Polls       int
	PollErrors  int
	LastPollErr string // never surfaced as a user error
}

// Rows joins the snapshot's tags and values in scan order.
func (s Snapshot) Rows() []tagfilter.Row {
	return tagfilter.Join(s.Tags, s.Values)
}

// Update is delivered to the values callback after every accepted read.
type Update struct {
	SessionID string
	Target    Target
	Tags      []backend.Tag
	Values    []backend.TagValue
	Index     tagfilter.ValueIndex
	First     bool // first accepted read of the session
	At        time.Time
}
