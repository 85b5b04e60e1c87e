// Package handlers provides HTTP handlers for runtime settings.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/settings"
)

// Handler handles settings HTTP requests
type Handler struct {
	repo *settings.Repository
	log  zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(repo *settings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{key}", h.HandleGet)
		r.Put("/{key}", h.HandleSet)
		r.Delete("/{key}", h.HandleDelete)
	})
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.repo.Get(key)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if value == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "setting not found: "+key)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": *value})
}

// SetRequest carries a settings value update
type SetRequest struct {
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
}

// HandleSet handles PUT /api/settings/{key}
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.repo.Set(key, req.Value, req.Description); err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

// HandleDelete handles DELETE /api/settings/{key}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.repo.Delete(key); err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": key})
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
