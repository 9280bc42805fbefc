package plcman

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/backend"
)

type fakeClient struct {
	mu     sync.Mutex
	scanFn func(ctx context.Context, address string, slot int) ([]backend.Tag, error)
	readFn func(ctx context.Context, address string, names []string) ([]backend.TagValue, error)
	scans  int
	reads  int
}

func (c *fakeClient) ScanTags(ctx context.Context, address string, slot int) ([]backend.Tag, error) {
	c.mu.Lock()
	c.scans++
	fn := c.scanFn
	c.mu.Unlock()
	return fn(ctx, address, slot)
}

func (c *fakeClient) ReadTags(ctx context.Context, address string, names []string) ([]backend.TagValue, error) {
	c.mu.Lock()
	c.reads++
	fn := c.readFn
	c.mu.Unlock()
	if fn == nil {
		return []backend.TagValue{}, nil
	}
	return fn(ctx, address, names)
}

func (c *fakeClient) setRead(fn func(ctx context.Context, address string, names []string) ([]backend.TagValue, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFn = fn
}

func (c *fakeClient) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type schedule struct {
	period    time.Duration
	fn        func()
	cancelled atomic.Bool
}

// fire runs the callback the way a live timer would: only while not cancelled.
func (s *schedule) fire() {
	if !s.cancelled.Load() {
		s.fn()
	}
}

type fakeScheduler struct {
	mu        sync.Mutex
	schedules []*schedule
}

func (f *fakeScheduler) Every(period time.Duration, fn func()) func() {
	s := &schedule{period: period, fn: fn}
	f.mu.Lock()
	f.schedules = append(f.schedules, s)
	f.mu.Unlock()
	return func() { s.cancelled.Store(true) }
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schedules)
}

func (f *fakeScheduler) last(t *testing.T) *schedule {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.schedules, "no poll schedule started")
	return f.schedules[len(f.schedules)-1]
}

var motorAndPump = []backend.Tag{
	{Name: "MotorSpeed", Type: "REAL"},
	{Name: "PumpStatus", Type: "BOOL"},
}

func scanReturns(tags []backend.Tag) func(context.Context, string, int) ([]backend.Tag, error) {
	return func(context.Context, string, int) ([]backend.Tag, error) { return tags, nil }
}

func readReturns(values ...backend.TagValue) func(context.Context, string, []string) ([]backend.TagValue, error) {
	return func(context.Context, string, []string) ([]backend.TagValue, error) { return values, nil }
}

func newTestManager(t *testing.T, client *fakeClient) (*Manager, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	m := NewManager(client, WithScheduler(sched))
	t.Cleanup(m.Close)
	return m, sched
}

func waitPolls(t *testing.T, m *Manager, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Snapshot().Polls >= n }, time.Second, 5*time.Millisecond)
}

func TestScanThenFirstPoll(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "MotorSpeed", Value: 42.5}),
	}
	m, sched := newTestManager(t, client)

	require.NoError(t, m.Scan(context.Background(), Target{Address: "192.168.1.10"}))
	waitPolls(t, m, 1)

	snap := m.Snapshot()
	assert.Equal(t, StatusPolling, snap.Status)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, motorAndPump, snap.Tags)
	assert.Empty(t, snap.LastError)

	rows := snap.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "42.5", rows[0].Value)
	assert.Equal(t, "", rows[1].Value)

	require.Equal(t, 1, sched.count())
	assert.Equal(t, DefaultPollRate, sched.last(t).period)
}

func TestPollSendsCurrentTagNames(t *testing.T) {
	var got []string
	var mu sync.Mutex
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: func(_ context.Context, address string, names []string) ([]backend.TagValue, error) {
			mu.Lock()
			got = append([]string{address}, names...)
			mu.Unlock()
			return nil, nil
		},
	}
	m, _ := newTestManager(t, client)
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1", Slot: 2}))
	waitPolls(t, m, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"10.0.0.1", "MotorSpeed", "PumpStatus"}, got)
}

func TestPollFailureKeepsValues(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "MotorSpeed", Value: 42.5}),
	}
	m, sched := newTestManager(t, client)
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	waitPolls(t, m, 1)
	before := m.Snapshot()

	client.setRead(func(context.Context, string, []string) ([]backend.TagValue, error) {
		return nil, &backend.ReadError{Message: backend.ReadFallbackMessage, Err: errors.New("connection refused")}
	})
	sched.last(t).fire()
	require.Eventually(t, func() bool { return m.Snapshot().PollErrors == 1 }, time.Second, 5*time.Millisecond)

	after := m.Snapshot()
	assert.Equal(t, StatusPolling, after.Status)
	assert.Empty(t, after.LastError, "poll failures are not user errors")
	assert.Equal(t, backend.ReadFallbackMessage, after.LastPollErr)
	assert.Equal(t, before.Rows(), after.Rows())
	assert.False(t, sched.last(t).cancelled.Load(), "polling continues after a failed read")

	// recovers on the next tick
	client.setRead(readReturns(backend.TagValue{Name: "MotorSpeed", Value: 43.0}))
	sched.last(t).fire()
	waitPolls(t, m, 2)
	assert.Equal(t, "43", m.Snapshot().Rows()[0].Value)
	assert.Empty(t, m.Snapshot().LastPollErr)
}

func TestTargetChangeResetsSession(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "MotorSpeed", Value: 42.5}),
	}
	m, sched := newTestManager(t, client)
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	waitPolls(t, m, 1)

	m.SetTarget(Target{Address: "10.0.0.2"})

	s := sched.last(t)
	assert.True(t, s.cancelled.Load(), "old poll timer must be cancelled")

	snap := m.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Tags)
	assert.Empty(t, snap.Values)
	assert.Empty(t, snap.Rows())
	assert.Equal(t, "10.0.0.2", snap.Target.Address)

	// a late tick from the old schedule must not read anything
	reads := client.readCount()
	s.fn()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, reads, client.readCount())
}

func TestSetTargetSameValueKeepsSession(t *testing.T) {
	client := &fakeClient{scanFn: scanReturns(motorAndPump)}
	m, sched := newTestManager(t, client)
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1", Slot: 1}))

	m.SetTarget(Target{Address: "10.0.0.1", Slot: 1})
	assert.Equal(t, StatusPolling, m.Status())
	assert.False(t, sched.last(t).cancelled.Load())

	m.SetTarget(Target{Address: "10.0.0.1", Slot: 2})
	assert.Equal(t, StatusIdle, m.Status())
}

func TestSetTargetWithoutSessionOnlyRecordsTarget(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{})
	changes := 0
	m.SetOnChange(func() { changes++ })

	m.SetTarget(Target{Address: "10.0.0.5"})
	assert.Equal(t, Target{Address: "10.0.0.5"}, m.Target())
	assert.Equal(t, StatusIdle, m.Status())
	assert.Equal(t, 1, changes)
}

func TestScanGuard(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		scanFn: func(ctx context.Context, _ string, _ int) ([]backend.Tag, error) {
			select {
			case <-release:
				return motorAndPump, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	m, _ := newTestManager(t, client)

	require.True(t, m.SubmitScan(Target{Address: "10.0.0.1"}))
	assert.Equal(t, StatusScanning, m.Status())
	assert.False(t, m.SubmitScan(Target{Address: "10.0.0.1"}))
	assert.ErrorIs(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}), ErrScanInProgress)

	close(release)
	require.Eventually(t, func() bool { return m.Status() == StatusPolling }, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	assert.Equal(t, 1, client.scans)
	client.mu.Unlock()
}

func TestScanFailure(t *testing.T) {
	client := &fakeClient{
		scanFn: func(context.Context, string, int) ([]backend.Tag, error) {
			return nil, &backend.ScanError{Message: "PLC connection failed: timeout", StatusCode: 400}
		},
	}
	m, sched := newTestManager(t, client)

	err := m.Scan(context.Background(), Target{Address: "10.0.0.9"})
	var scanErr *backend.ScanError
	require.ErrorAs(t, err, &scanErr)

	snap := m.Snapshot()
	assert.Equal(t, StatusScanFailed, snap.Status)
	assert.Equal(t, "PLC connection failed: timeout", snap.LastError)
	assert.Empty(t, snap.Tags)
	assert.Zero(t, sched.count())

	// retry is allowed immediately and clears the error
	client.mu.Lock()
	client.scanFn = scanReturns(motorAndPump)
	client.mu.Unlock()
	require.True(t, m.SubmitScan(Target{Address: "10.0.0.9"}))
	require.Eventually(t, func() bool { return m.Status() == StatusPolling }, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Snapshot().LastError)
}

func TestScanWithNoTagsIsIdle(t *testing.T) {
	m, sched := newTestManager(t, &fakeClient{scanFn: scanReturns([]backend.Tag{})})

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	assert.Equal(t, StatusIdle, m.Status())
	assert.Zero(t, sched.count())
}

func TestInvalidTarget(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{scanFn: scanReturns(motorAndPump)})

	assert.False(t, m.SubmitScan(Target{Address: "  "}))
	assert.ErrorIs(t, m.Scan(context.Background(), Target{}), ErrInvalidTarget)
	assert.ErrorIs(t, m.Scan(context.Background(), Target{Address: "10.0.0.1", Slot: -1}), ErrInvalidTarget)
	assert.Equal(t, StatusIdle, m.Status())
}

func TestRescanSupersedesSession(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "MotorSpeed", Value: 1.0}),
	}
	m, sched := newTestManager(t, client)
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	waitPolls(t, m, 1)
	first := m.Snapshot()
	oldSchedule := sched.last(t)

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	assert.True(t, oldSchedule.cancelled.Load())
	assert.Equal(t, 2, sched.count())
	assert.NotEqual(t, first.SessionID, m.Snapshot().SessionID)
}

func TestSupersededReadIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: func(ctx context.Context, _ string, _ []string) ([]backend.TagValue, error) {
			<-release
			return []backend.TagValue{{Name: "MotorSpeed", Value: 99.0}}, nil
		},
	}
	m, _ := newTestManager(t, client)

	var updates atomic.Int32
	m.SetOnValues(func(Update) { updates.Add(1) })

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	require.Eventually(t, func() bool { return client.readCount() == 1 }, time.Second, 5*time.Millisecond)

	m.SetTarget(Target{Address: "10.0.0.2"})
	close(release)

	time.Sleep(30 * time.Millisecond)
	snap := m.Snapshot()
	assert.Empty(t, snap.Values)
	assert.Zero(t, snap.Polls)
	assert.Zero(t, updates.Load())
}

func TestSupersededScanIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		scanFn: func(context.Context, string, int) ([]backend.Tag, error) {
			<-release
			return motorAndPump, nil
		},
	}
	m, sched := newTestManager(t, client)

	require.True(t, m.SubmitScan(Target{Address: "10.0.0.1"}))
	m.SetTarget(Target{Address: "10.0.0.2"})
	assert.Equal(t, StatusIdle, m.Status(), "target change releases the scan guard")

	close(release)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, m.Snapshot().Tags)
	assert.Zero(t, sched.count())
}

func TestValuesCallback(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "PumpStatus", Value: true}),
	}
	m, sched := newTestManager(t, client)

	updates := make(chan Update, 4)
	m.SetOnValues(func(u Update) { updates <- u })

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1", Slot: 3}))
	first := <-updates
	assert.True(t, first.First)
	assert.Equal(t, Target{Address: "10.0.0.1", Slot: 3}, first.Target)
	assert.Equal(t, true, first.Index["PumpStatus"].Value)
	assert.Equal(t, m.Snapshot().SessionID, first.SessionID)

	sched.last(t).fire()
	second := <-updates
	assert.False(t, second.First)
}

func TestCloseStopsEverything(t *testing.T) {
	client := &fakeClient{scanFn: scanReturns(motorAndPump)}
	sched := &fakeScheduler{}
	m := NewManager(client, WithScheduler(sched))

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	m.Close()
	m.Close()

	assert.True(t, sched.last(t).cancelled.Load())
	assert.False(t, m.SubmitScan(Target{Address: "10.0.0.1"}))
	assert.ErrorIs(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}), ErrClosed)
}

func TestCloseCancelsInFlightRead(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: func(ctx context.Context, _ string, _ []string) ([]backend.TagValue, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	m := NewManager(client, WithScheduler(&fakeScheduler{}))
	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	require.Eventually(t, func() bool { return client.readCount() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestTickerSchedulerPolls(t *testing.T) {
	client := &fakeClient{
		scanFn: scanReturns(motorAndPump),
		readFn: readReturns(backend.TagValue{Name: "MotorSpeed", Value: 1.0}),
	}
	m := NewManager(client, WithPollRate(10*time.Millisecond))
	defer m.Close()
	assert.Equal(t, 10*time.Millisecond, m.PollRate())

	require.NoError(t, m.Scan(context.Background(), Target{Address: "10.0.0.1"}))
	waitPolls(t, m, 3)

	m.SetTarget(Target{Address: "10.0.0.2"})
	// let reads that passed their checks before the change land
	time.Sleep(20 * time.Millisecond)
	reads := client.readCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, reads, client.readCount())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Idle", StatusIdle.String())
	assert.Equal(t, "Scanning", StatusScanning.String())
	assert.Equal(t, "Scan failed", StatusScanFailed.String())
	assert.Equal(t, "Polling", StatusPolling.String())
	assert.Equal(t, "Unknown", Status(42).String())
}
