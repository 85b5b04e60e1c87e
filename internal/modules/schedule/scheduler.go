package schedule

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/training"
)

// Starter is the slice of the orchestrator the scheduler needs: the shared
// idle gate and the start operation.
type Starter interface {
	Start(params *training.Parameters, scheduled bool) (string, error)
	Running() bool
}

// Scheduler evaluates the retraining schedule on a fixed short tick and
// starts a run when one is due. Ticks never block and never queue work; a
// busy orchestrator just means re-check next tick.
type Scheduler struct {
	repo    *Repository
	starter Starter
	events  *events.Manager
	tick    time.Duration
	now     func() time.Time
	log     zerolog.Logger

	stop    chan struct{}
	stopped bool
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewScheduler creates the retraining scheduler with a 15-second evaluation
// tick.
func NewScheduler(repo *Repository, starter Starter, eventManager *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:    repo,
		starter: starter,
		events:  eventManager,
		tick:    15 * time.Second,
		now:     time.Now,
		stop:    make(chan struct{}),
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the evaluation loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && !s.stopped {
		s.log.Warn().Msg("Scheduler already started, ignoring")
		return
	}
	if s.stopped {
		s.stop = make(chan struct{})
		s.stopped = false
	}
	s.started = true
	s.log.Info().Dur("tick", s.tick).Msg("Retraining scheduler started")

	ticker := time.NewTicker(s.tick)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}

// Stop halts the evaluation loop and waits for it to exit. A job the
// scheduler already started keeps running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Retraining scheduler stopped")
}

// Tick runs one evaluation cycle. Errors are logged, never escalated, so a
// bad tick can't kill the loop.
func (s *Scheduler) Tick() {
	cfg, err := s.repo.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load schedule config")
		return
	}
	if !cfg.Enabled {
		return
	}

	now := s.now().UTC()
	cfg = cfg.WithNextRun(now)
	if cfg.NextRunAt.After(now) {
		return
	}
	if s.starter.Running() {
		// Due but busy: skip, the next tick re-checks.
		s.log.Debug().Msg("Retraining due but a job is running, deferring")
		return
	}

	params, err := s.repo.Params()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load schedule params")
		return
	}

	jobID, err := s.starter.Start(params, true)
	if err != nil {
		// Lost the gate race or invalid stored params. Either way the
		// schedule stays due and the next tick retries.
		s.log.Warn().Err(err).Msg("Scheduled start rejected")
		s.events.EmitTyped(events.ErrorOccurred, "schedule", &events.ErrorEventData{
			Module:  "schedule",
			Message: "scheduled training start rejected: " + err.Error(),
		})
		return
	}

	if err := s.repo.MarkRun(now); err != nil {
		s.log.Error().Err(err).Msg("Failed to record scheduled run")
	}
	s.log.Info().Str("job_id", jobID).Time("next_run", now.Add(time.Duration(cfg.IntervalSeconds)*time.Second)).Msg("Scheduled training started")
}

// GetConfig returns the current configuration with next_run_at computed.
func (s *Scheduler) GetConfig() (Config, error) {
	cfg, err := s.repo.Load()
	if err != nil {
		return Config{}, err
	}
	return cfg.WithNextRun(s.now().UTC()), nil
}

// UpdateConfig validates and persists a new configuration, returning the
// stored config with next_run_at recomputed from the existing last_run_at.
func (s *Scheduler) UpdateConfig(enabled bool, intervalSeconds int64) (Config, error) {
	if intervalSeconds <= 0 {
		return Config{}, &ConfigError{Field: "interval_seconds", Message: "must be greater than zero"}
	}

	cfg, err := s.repo.Load()
	if err != nil {
		return Config{}, err
	}
	cfg.Enabled = enabled
	cfg.IntervalSeconds = intervalSeconds
	if err := s.repo.Save(cfg); err != nil {
		return Config{}, err
	}

	now := s.now().UTC()
	if cfg.Enabled && cfg.LastRunAt == nil {
		// First enable: anchor the schedule at the enable time, otherwise
		// next_run_at would drift forward with every tick and never arrive.
		if err := s.repo.MarkRun(now); err != nil {
			return Config{}, err
		}
		cfg.LastRunAt = &now
	}

	cfg = cfg.WithNextRun(now)
	s.log.Info().
		Bool("enabled", cfg.Enabled).
		Int64("interval_seconds", cfg.IntervalSeconds).
		Msg("Schedule updated")
	s.events.EmitTyped(events.ScheduleChanged, "schedule", &events.ScheduleChangedData{
		Enabled:         cfg.Enabled,
		IntervalSeconds: int(cfg.IntervalSeconds),
		NextRunAt:       cfg.NextRunAt.Format(time.RFC3339),
	})
	return cfg, nil
}

// SetParams remembers the parameter set scheduled runs should use.
func (s *Scheduler) SetParams(p training.Parameters) error {
	if err := training.Validate(p); err != nil {
		return err
	}
	return s.repo.SaveParams(p)
}
