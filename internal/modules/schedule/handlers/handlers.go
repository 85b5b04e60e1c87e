// Package handlers provides HTTP handlers for retraining schedule operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/schedule"
	"github.com/aristath/foundry/internal/modules/training"
)

// Handler handles schedule HTTP requests
type Handler struct {
	scheduler *schedule.Scheduler
	log       zerolog.Logger
}

// NewHandler creates a new schedule handler
func NewHandler(scheduler *schedule.Scheduler, log zerolog.Logger) *Handler {
	return &Handler{
		scheduler: scheduler,
		log:       log.With().Str("handler", "schedule").Logger(),
	}
}

// RegisterRoutes registers all schedule routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandleUpdate)
		r.Put("/params", h.HandleSetParams)
	})
}

// HandleGet handles GET /api/schedule
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.scheduler.GetConfig()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// UpdateRequest carries a schedule configuration change
type UpdateRequest struct {
	Enabled         bool  `json:"enabled"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

// HandleUpdate handles PUT /api/schedule
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	cfg, err := h.scheduler.UpdateConfig(req.Enabled, req.IntervalSeconds)
	if err != nil {
		var cfgErr *schedule.ConfigError
		if errors.As(err, &cfgErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": cfgErr.Error(),
				"code":  "invalid_schedule",
				"field": cfgErr.Field,
			})
			return
		}
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// HandleSetParams handles PUT /api/schedule/params
func (h *Handler) HandleSetParams(w http.ResponseWriter, r *http.Request) {
	var params training.Parameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if err := h.scheduler.SetParams(params); err != nil {
		var verr *training.ValidationErrors
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":      "invalid training parameters",
				"code":       "validation_failed",
				"violations": verr.Violations,
			})
			return
		}
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
