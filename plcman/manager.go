// Package plcman owns the scan session: it scans a PLC through the backend,
// then polls the discovered tags until the session ends.
package plcman

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"signaltap/backend"
	"signaltap/logging"
	"signaltap/tagfilter"
)

// DefaultPollRate is the interval between value reads.
const DefaultPollRate = 2 * time.Second

// Client is the subset of the backend API the manager needs.
type Client interface {
	ScanTags(ctx context.Context, address string, slot int) ([]backend.Tag, error)
	ReadTags(ctx context.Context, address string, names []string) ([]backend.TagValue, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithPollRate sets the poll interval. Non-positive values are ignored.
func WithPollRate(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollRate = d
		}
	}
}

// WithScheduler replaces the ticker-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// Manager runs one scan session at a time. All session state is guarded by mu;
// every read or scan result carries the generation it was started under and
// is dropped if the session moved on in the meantime.
type Manager struct {
	client   Client
	pollRate time.Duration
	sched    Scheduler

	mu        sync.Mutex
	gen       uint64
	sessionID string
	target    Target
	status    Status
	tags      []backend.Tag
	values    tagfilter.ValueIndex
	lastError string
	firstRead bool

	lastPoll    time.Time
	polls       int
	pollErrors  int
	lastPollErr string

	stopPoll func() // cancellation token of the running poll schedule
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onChange func()
	onValues func(Update)
}

// NewManager creates a manager using client for all backend calls.
func NewManager(client Client, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:   client,
		pollRate: DefaultPollRate,
		sched:    tickerScheduler{},
		status:   StatusIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetOnChange sets a callback fired after any session state change.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// SetOnValues sets a callback fired after every accepted read.
func (m *Manager) SetOnValues(fn func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onValues = fn
}

// PollRate returns the configured poll interval.
func (m *Manager) PollRate() time.Duration {
	return m.pollRate
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]backend.Tag, len(m.tags))
	copy(tags, m.tags)
	return Snapshot{
		SessionID:   m.sessionID,
		Target:      m.target,
		Status:      m.status,
		Tags:        tags,
		Values:      m.values,
		LastError:   m.lastError,
		LastPoll:    m.lastPoll,
		Polls:       m.polls,
		PollErrors:  m.pollErrors,
		LastPollErr: m.lastPollErr,
	}
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SubmitScan starts an asynchronous scan of t. It returns false, changing
// nothing, while a scan is already running, after Close, or for an invalid target.
func (m *Manager) SubmitScan(t Target) bool {
	if t.Validate() != nil {
		return false
	}

	m.mu.Lock()
	if m.closed || m.status == StatusScanning {
		m.mu.Unlock()
		return false
	}
	gen := m.beginScanLocked(t)
	m.wg.Add(1)
	m.mu.Unlock()

	m.notifyChange()

	go func() {
		defer m.wg.Done()
		m.runScan(m.ctx, gen, t)
	}()
	return true
}

// Scan scans t synchronously and, on success, starts polling.
// The returned error is a *backend.ScanError for backend failures.
func (m *Manager) Scan(ctx context.Context, t Target) error {
	if err := t.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.status == StatusScanning {
		m.mu.Unlock()
		return ErrScanInProgress
	}
	gen := m.beginScanLocked(t)
	m.wg.Add(1)
	m.mu.Unlock()

	m.notifyChange()

	defer m.wg.Done()
	return m.runScan(ctx, gen, t)
}

// beginScanLocked ends the current session and opens a new one in Scanning.
func (m *Manager) beginScanLocked(t Target) uint64 {
	m.stopPollLocked()
	m.gen++
	m.sessionID = uuid.NewString()
	m.target = t
	m.status = StatusScanning
	m.tags = nil
	m.values = nil
	m.lastError = ""
	m.resetStatsLocked()
	logging.DebugLog("plcman", "scan %s started (session %s)", t, m.sessionID)
	return m.gen
}

func (m *Manager) runScan(ctx context.Context, gen uint64, t Target) error {
	tags, err := m.client.ScanTags(ctx, t.Address, t.Slot)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		logging.DebugLog("plcman", "discarding superseded scan result for %s", t)
		return err
	}

	if err != nil {
		m.status = StatusScanFailed
		m.lastError = err.Error()
		m.mu.Unlock()
		logging.DebugError("plcman", "scan "+t.String(), err)
		m.notifyChange()
		return err
	}

	m.tags = tags
	m.status = StatusScanned
	logging.DebugLog("plcman", "scan %s found %d tags", t, len(tags))
	if len(tags) > 0 && m.target.Address != "" {
		m.startPollLocked(gen)
	} else {
		m.status = StatusIdle
	}
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

// startPollLocked issues one immediate read and schedules the recurring ones.
func (m *Manager) startPollLocked(gen uint64) {
	m.status = StatusPolling
	m.firstRead = true

	m.wg.Add(1)
	go m.poll(gen)

	m.stopPoll = m.sched.Every(m.pollRate, func() { m.tick(gen) })
	logging.DebugLog("plcman", "polling %d tags every %s", len(m.tags), m.pollRate)
}

// stopPollLocked cancels the poll schedule, if any. Reads already in flight
// finish but their results are discarded by the generation check.
func (m *Manager) stopPollLocked() {
	if m.stopPoll != nil {
		m.stopPoll()
		m.stopPoll = nil
		logging.DebugLog("plcman", "poll schedule stopped")
	}
}

func (m *Manager) resetStatsLocked() {
	m.lastPoll = time.Time{}
	m.polls = 0
	m.pollErrors = 0
	m.lastPollErr = ""
}

// tick fires a read without waiting for earlier ones; the last to resolve wins.
func (m *Manager) tick(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go m.poll(gen)
}

func (m *Manager) poll(gen uint64) {
	defer m.wg.Done()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	address := m.target.Address
	names := make([]string, len(m.tags))
	for i, tag := range m.tags {
		names[i] = tag.Name
	}
	m.mu.Unlock()

	values, err := m.client.ReadTags(m.ctx, address, names)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		logging.DebugLog("plcman", "discarding superseded read for %s", address)
		return
	}

	if err != nil {
		// keep the last good values; polling continues
		m.pollErrors++
		m.lastPollErr = err.Error()
		m.mu.Unlock()
		logging.DebugError("plcman", "read-tags", err)
		m.notifyChange()
		return
	}

	now := time.Now()
	index := tagfilter.Index(values)
	m.values = index
	m.polls++
	m.lastPoll = now
	m.lastPollErr = ""
	update := Update{
		SessionID: m.sessionID,
		Target:    m.target,
		Tags:      m.tags,
		Values:    values,
		Index:     index,
		First:     m.firstRead,
		At:        now,
	}
	m.firstRead = false
	onValues := m.onValues
	m.mu.Unlock()

	if onValues != nil {
		onValues(update)
	}
	m.notifyChange()
}

// SetTarget records the target the user is editing. Changing it while a
// session holds tags, is scanning, or is polling ends that session.
func (m *Manager) SetTarget(t Target) {
	m.mu.Lock()
	if m.closed || t == m.target {
		m.mu.Unlock()
		return
	}

	active := len(m.tags) > 0 || m.status == StatusScanning || m.status == StatusPolling
	old := m.target
	m.target = t
	if active {
		m.stopPollLocked()
		m.gen++
		m.sessionID = ""
		m.tags = nil
		m.values = nil
		m.lastError = ""
		m.status = StatusIdle
		m.resetStatsLocked()
		logging.DebugLog("plcman", "target changed %s -> %s, session reset", old, t)
	}
	m.mu.Unlock()

	m.notifyChange()
}

// Target returns the current target.
func (m *Manager) Target() Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Close ends the session, cancels in-flight requests and waits for them.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopPollLocked()
	m.gen++
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) notifyChange() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}
