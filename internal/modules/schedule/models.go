// Package schedule implements the retraining scheduler: a periodic
// evaluator that starts a training run whenever one is due and the
// orchestrator is free to take it.
package schedule

import (
	"fmt"
	"time"
)

// DefaultIntervalSeconds retrains once a day unless configured otherwise.
const DefaultIntervalSeconds = 86400

// Config is the scheduler configuration. next_run_at is always derived
// from last_run_at + interval, never stored.
type Config struct {
	Enabled         bool       `json:"enabled"`
	IntervalSeconds int64      `json:"interval_seconds"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
}

// WithNextRun returns a copy with NextRunAt recomputed. With no run on
// record the next run is measured from now.
func (c Config) WithNextRun(now time.Time) Config {
	base := now
	if c.LastRunAt != nil {
		base = *c.LastRunAt
	}
	next := base.Add(time.Duration(c.IntervalSeconds) * time.Second)
	c.NextRunAt = &next
	return c
}

// ConfigError indicates an invalid scheduler configuration update.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid schedule config: %s %s", e.Field, e.Message)
}
