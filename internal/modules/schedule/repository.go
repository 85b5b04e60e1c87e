package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/settings"
	"github.com/aristath/foundry/internal/modules/training"
)

// Settings keys used by the scheduler.
const (
	keyEnabled    = "schedule_enabled"
	keyInterval   = "schedule_interval_seconds"
	keyLastRunAt  = "schedule_last_run_at"
	keyLastParams = "schedule_last_params"
)

// Repository persists scheduler state in the settings store so it survives
// restarts.
type Repository struct {
	settings *settings.Repository
	log      zerolog.Logger
}

// NewRepository creates a scheduler state repository.
func NewRepository(settingsRepo *settings.Repository, log zerolog.Logger) *Repository {
	return &Repository{
		settings: settingsRepo,
		log:      log.With().Str("component", "schedule_repo").Logger(),
	}
}

// Load reads the stored configuration, falling back to a disabled daily
// schedule when nothing is stored yet.
func (r *Repository) Load() (Config, error) {
	enabled, err := r.settings.GetBool(keyEnabled, false)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read schedule enabled: %w", err)
	}
	interval, err := r.settings.GetInt64(keyInterval, DefaultIntervalSeconds)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read schedule interval: %w", err)
	}

	cfg := Config{Enabled: enabled, IntervalSeconds: interval}

	lastRun, err := r.settings.GetInt64(keyLastRunAt, 0)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read last run: %w", err)
	}
	if lastRun > 0 {
		t := time.Unix(lastRun, 0).UTC()
		cfg.LastRunAt = &t
	}
	return cfg, nil
}

// Save persists enabled and interval.
func (r *Repository) Save(cfg Config) error {
	if err := r.settings.SetBool(keyEnabled, cfg.Enabled); err != nil {
		return fmt.Errorf("failed to store schedule enabled: %w", err)
	}
	if err := r.settings.SetInt64(keyInterval, cfg.IntervalSeconds); err != nil {
		return fmt.Errorf("failed to store schedule interval: %w", err)
	}
	return nil
}

// MarkRun records the moment a scheduled run was accepted.
func (r *Repository) MarkRun(at time.Time) error {
	if err := r.settings.SetInt64(keyLastRunAt, at.Unix()); err != nil {
		return fmt.Errorf("failed to store last run: %w", err)
	}
	return nil
}

// SaveParams remembers the parameter set to reuse on scheduled runs.
func (r *Repository) SaveParams(p training.Parameters) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode schedule params: %w", err)
	}
	if err := r.settings.Set(keyLastParams, string(data), nil); err != nil {
		return fmt.Errorf("failed to store schedule params: %w", err)
	}
	return nil
}

// Params returns the remembered parameter set, or nil when none is stored.
func (r *Repository) Params() (*training.Parameters, error) {
	raw, err := r.settings.Get(keyLastParams)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule params: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var p training.Parameters
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		r.log.Warn().Err(err).Msg("Failed to decode stored schedule params")
		return nil, nil
	}
	return &p, nil
}
