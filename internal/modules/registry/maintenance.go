package registry

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/settings"
)

// Maintenance runs the nightly retention sweep. Eviction also happens after
// every training run; the cron job catches drift when the keep count is
// lowered while nothing is training.
type Maintenance struct {
	service  *Service
	settings *settings.Repository
	cron     *cron.Cron
	defKeep  int
	log      zerolog.Logger
}

// NewMaintenance creates the maintenance runner with the given default keep
// count, used when no override is stored in settings.
func NewMaintenance(service *Service, settingsRepo *settings.Repository, defaultKeep int, log zerolog.Logger) *Maintenance {
	return &Maintenance{
		service:  service,
		settings: settingsRepo,
		cron:     cron.New(),
		defKeep:  defaultKeep,
		log:      log.With().Str("component", "maintenance").Logger(),
	}
}

// Start schedules the nightly sweep at 03:00 server time.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("0 3 * * *", m.sweep); err != nil {
		return err
	}
	m.cron.Start()
	m.log.Info().Msg("Nightly model cleanup scheduled")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Maintenance) sweep() {
	enabled, err := m.settings.GetBool("auto_cleanup_enabled", true)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to read cleanup setting")
		return
	}
	if !enabled {
		m.log.Debug().Msg("Auto cleanup disabled, skipping sweep")
		return
	}
	keep, err := m.settings.GetInt("model_keep_count", m.defKeep)
	if err != nil {
		keep = m.defKeep
	}

	deleted, kept, err := m.service.Cleanup(keep)
	if err != nil {
		m.log.Error().Err(err).Msg("Nightly cleanup failed")
		return
	}
	if deleted > 0 {
		m.log.Info().Int("deleted", deleted).Int("kept", kept).Msg("Nightly cleanup complete")
	}
}
