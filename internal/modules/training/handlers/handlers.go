// Package handlers provides HTTP handlers for training operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/training"
)

// Handler handles training HTTP requests
type Handler struct {
	orchestrator *training.Orchestrator
	history      *training.HistoryRepository
	log          zerolog.Logger
}

// NewHandler creates a new training handler
func NewHandler(orchestrator *training.Orchestrator, history *training.HistoryRepository, log zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		history:      history,
		log:          log.With().Str("handler", "training").Logger(),
	}
}

// RegisterRoutes registers all training routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/training", func(r chi.Router) {
		r.Post("/start", h.HandleStart)
		r.Post("/stop", h.HandleStop)
		r.Get("/status", h.HandleStatus)
		r.Get("/parameters", h.HandleParameters)
		r.Get("/indicators", h.HandleIndicators)
		r.Get("/history", h.HandleHistory)
	})
}

// StartRequest carries optional training parameters. A missing body starts
// a run with the last-used (or default) parameters.
type StartRequest struct {
	Params *training.Parameters `json:"params"`
}

// HandleStart handles POST /api/training/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}

	jobID, err := h.orchestrator.Start(req.Params, false)
	if err != nil {
		h.writeStartError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"job_id": jobID,
	})
}

// HandleStop handles POST /api/training/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Stop()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "stop_requested",
	})
}

// HandleStatus handles GET /api/training/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orchestrator.Status())
}

// HandleParameters handles GET /api/training/parameters
func (h *Handler) HandleParameters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"defaults": training.DefaultParameters(),
		"ranges": map[string]interface{}{
			"training_days":    map[string]int{"min": training.MinTrainingDays, "max": training.MaxTrainingDays},
			"epochs":           map[string]int{"min": training.MinEpochs, "max": training.MaxEpochs},
			"batch_size":       map[string]int{"min": training.MinBatchSize, "max": training.MaxBatchSize},
			"sequence_length":  map[string]int{"min": training.MinSequenceLength, "max": training.MaxSequenceLength},
			"validation_split": map[string]int{"min": training.MinValidationSplit, "max": training.MaxValidationSplit},
			"learning_rate":    map[string]float64{"min": training.MinLearningRate, "max": training.MaxLearningRate},
		},
	})
}

// HandleIndicators handles GET /api/training/indicators
func (h *Handler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"indicators": training.AllIndicators(),
		"essential":  training.EssentialIndicators(),
	})
}

// HandleHistory handles GET /api/training/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	runs, err := h.history.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if runs == nil {
		runs = []training.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// writeStartError maps orchestrator start failures onto HTTP statuses
func (h *Handler) writeStartError(w http.ResponseWriter, err error) {
	var validation *training.ValidationErrors
	var running *training.AlreadyRunningError
	switch {
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "invalid training parameters",
			"code":       "validation_failed",
			"violations": validation.Violations,
		})
	case errors.As(err, &running):
		h.writeError(w, http.StatusConflict, "already_running", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
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
