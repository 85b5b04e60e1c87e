package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/settings"
	"github.com/aristath/foundry/internal/modules/training"
	testdb "github.com/aristath/foundry/internal/testing"
)

// fakeStarter records start attempts and scripts the idle gate.
type fakeStarter struct {
	mu       sync.Mutex
	running  bool
	startErr error
	starts   []*training.Parameters
}

func (f *fakeStarter) Start(params *training.Parameters, scheduled bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts = append(f.starts, params)
	return "job-test", nil
}

func (f *fakeStarter) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeStarter) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func newTestScheduler(t *testing.T, starter Starter) (*Scheduler, *Repository, func()) {
	t.Helper()
	db, cleanup := testdb.NewTestDB(t, "config")
	repo := NewRepository(settings.NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	manager := events.NewManager(events.NewBus(zerolog.Nop()), zerolog.Nop())
	return NewScheduler(repo, starter, manager, zerolog.Nop()), repo, cleanup
}

func TestSchedulerDisabledNeverStarts(t *testing.T) {
	starter := &fakeStarter{}
	sched, _, cleanup := newTestScheduler(t, starter)
	defer cleanup()

	sched.now = func() time.Time { return time.Now().Add(365 * 24 * time.Hour) }
	for i := 0; i < 10; i++ {
		sched.Tick()
	}
	assert.Zero(t, starter.startCount(), "disabled schedule must never trigger")
}

func TestSchedulerStartsWhenDue(t *testing.T) {
	starter := &fakeStarter{}
	sched, repo, cleanup := newTestScheduler(t, starter)
	defer cleanup()

	_, err := sched.UpdateConfig(true, 3600)
	require.NoError(t, err)

	// Enabling anchors the schedule: first due moment is enable-time + interval.
	base := time.Now().UTC()
	sched.now = func() time.Time { return base }
	sched.Tick()
	assert.Zero(t, starter.startCount(), "not due yet")

	sched.now = func() time.Time { return base.Add(2 * time.Hour) }
	sched.Tick()
	assert.Equal(t, 1, starter.startCount())

	// The accepted start advanced last_run_at, so an immediate re-tick is
	// not due again.
	sched.Tick()
	assert.Equal(t, 1, starter.startCount())

	cfg, err := repo.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRunAt)
}

func TestSchedulerDefersWhileRunning(t *testing.T) {
	starter := &fakeStarter{running: true}
	sched, _, cleanup := newTestScheduler(t, starter)
	defer cleanup()

	_, err := sched.UpdateConfig(true, 60)
	require.NoError(t, err)
	sched.now = func() time.Time { return time.Now().Add(time.Hour) }

	sched.Tick()
	sched.Tick()
	assert.Zero(t, starter.startCount(), "busy orchestrator defers the run")

	// Once the slot frees up the pending schedule fires.
	starter.mu.Lock()
	starter.running = false
	starter.mu.Unlock()
	sched.Tick()
	assert.Equal(t, 1, starter.startCount())
}

func TestSchedulerRejectedStartDoesNotAdvanceLastRun(t *testing.T) {
	starter := &fakeStarter{startErr: &training.AlreadyRunningError{JobID: "other"}}
	sched, repo, cleanup := newTestScheduler(t, starter)
	defer cleanup()

	enabled, err := sched.UpdateConfig(true, 60)
	require.NoError(t, err)
	require.NotNil(t, enabled.LastRunAt)
	anchor := *enabled.LastRunAt
	sched.now = func() time.Time { return time.Now().Add(time.Hour) }

	sched.Tick()
	cfg, err := repo.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRunAt)
	assert.Equal(t, anchor.Unix(), cfg.LastRunAt.Unix(), "rejected start leaves the schedule due")

	// Clearing the error lets the retry succeed on the next tick.
	starter.mu.Lock()
	starter.startErr = nil
	starter.mu.Unlock()
	sched.Tick()
	assert.Equal(t, 1, starter.startCount())
}

func TestSchedulerUsesStoredParams(t *testing.T) {
	starter := &fakeStarter{}
	sched, _, cleanup := newTestScheduler(t, starter)
	defer cleanup()

	params := training.DefaultParameters()
	params.Epochs = 321
	require.NoError(t, sched.SetParams(params))

	_, err := sched.UpdateConfig(true, 60)
	require.NoError(t, err)
	sched.now = func() time.Time { return time.Now().Add(time.Hour) }

	sched.Tick()
	require.Equal(t, 1, starter.startCount())
	require.NotNil(t, starter.starts[0])
	assert.Equal(t, 321, starter.starts[0].Epochs)
}

func TestSchedulerSetParamsValidates(t *testing.T) {
	sched, _, cleanup := newTestScheduler(t, &fakeStarter{})
	defer cleanup()

	bad := training.DefaultParameters()
	bad.Epochs = 0

	err := sched.SetParams(bad)
	var verr *training.ValidationErrors
	assert.ErrorAs(t, err, &verr)
}

func TestSchedulerNextRunComputation(t *testing.T) {
	sched, repo, cleanup := newTestScheduler(t, &fakeStarter{})
	defer cleanup()

	lastRun := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkRun(lastRun))

	cfg, err := sched.UpdateConfig(true, 86400)
	require.NoError(t, err)
	require.NotNil(t, cfg.NextRunAt)
	assert.Equal(t, lastRun.Add(24*time.Hour), cfg.NextRunAt.UTC())

	// Changing the interval recomputes next_run_at from the same base.
	cfg, err = sched.UpdateConfig(true, 3600)
	require.NoError(t, err)
	assert.Equal(t, lastRun.Add(time.Hour), cfg.NextRunAt.UTC())
}

func TestSchedulerUpdateConfigRejectsBadInterval(t *testing.T) {
	sched, _, cleanup := newTestScheduler(t, &fakeStarter{})
	defer cleanup()

	_, err := sched.UpdateConfig(true, 0)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "interval_seconds", cfgErr.Field)

	_, err = sched.UpdateConfig(true, -5)
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	sched, _, cleanup := newTestScheduler(t, &fakeStarter{})
	defer cleanup()

	sched.tick = 10 * time.Millisecond
	sched.Start()
	sched.Start() // second start is ignored
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
	sched.Stop() // second stop is a no-op
}

func TestSchedulerRejectedStartEmitsError(t *testing.T) {
	starter := &fakeStarter{startErr: errors.New("slot taken")}
	db, cleanup := testdb.NewTestDB(t, "config")
	defer cleanup()
	repo := NewRepository(settings.NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	sched := NewScheduler(repo, starter, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())

	var received []*events.Event
	bus.SubscribeAll(func(e *events.Event) { received = append(received, e) })

	base := time.Now().UTC()
	sched.now = func() time.Time { return base }
	_, err := sched.UpdateConfig(true, 3600)
	require.NoError(t, err)

	sched.now = func() time.Time { return base.Add(2 * time.Hour) }
	sched.Tick()

	var errorEvents []*events.Event
	for _, e := range received {
		if e.Type == events.ErrorOccurred {
			errorEvents = append(errorEvents, e)
		}
	}
	require.Len(t, errorEvents, 1)
	data, ok := errorEvents[0].GetTypedData().(*events.ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "schedule", data.Module)
	assert.Contains(t, data.Message, "slot taken")
}
