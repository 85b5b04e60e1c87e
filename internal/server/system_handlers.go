package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves health and system information endpoints.
type SystemHandlers struct {
	cfg       Config
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(cfg Config, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		cfg:       cfg,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth handles GET /api/system/health. Checks both databases and
// reports per-component status.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	for name, db := range map[string]interface {
		HealthCheck(ctx context.Context) error
	}{
		"models_db": h.cfg.ModelsDB,
		"config_db": h.cfg.ConfigDB,
	} {
		if err := db.HealthCheck(r.Context()); err != nil {
			components[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			components[name] = "healthy"
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.cfg.Trainer.Ping(ctx); err != nil {
		components["trainer"] = "unreachable"
	} else {
		components["trainer"] = "healthy"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	h.writeJSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}

// HandleInfo handles GET /api/system/info: host load, storage footprint
// and the state of the training pipeline in one payload.
func (h *SystemHandlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.systemStats()

	info := map[string]interface{}{
		"service":        "foundry",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramPercent,
		"data_dir":       h.cfg.Cfg.DataDir,
	}

	if usage, err := disk.Usage(h.cfg.Cfg.DataDir); err == nil {
		info["disk_used_percent"] = usage.UsedPercent
		info["disk_free_bytes"] = usage.Free
	}

	if storage, err := h.cfg.Registry.StorageInfo(); err == nil {
		info["models"] = storage
	} else {
		h.log.Warn().Err(err).Msg("Failed to read model storage info")
	}

	info["training"] = h.cfg.Orchestrator.Status()

	info["models_db_bytes"] = h.cfg.ModelsDB.SizeBytes()
	info["config_db_bytes"] = h.cfg.ConfigDB.SizeBytes()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	info["trainer_reachable"] = h.cfg.Trainer.Ping(ctx) == nil

	h.writeJSON(w, http.StatusOK, info)
}

// systemStats returns CPU and RAM usage percentages. The CPU sample uses a
// short window so the endpoint stays fast.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
