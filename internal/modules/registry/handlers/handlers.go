// Package handlers provides HTTP handlers for model registry operations.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/registry"
)

// Handler handles model registry HTTP requests
type Handler struct {
	service     *registry.Service
	defaultKeep int
	log         zerolog.Logger
}

// NewHandler creates a new registry handler
func NewHandler(service *registry.Service, defaultKeep int, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		defaultKeep: defaultKeep,
		log:         log.With().Str("handler", "registry").Logger(),
	}
}

// RegisterRoutes registers all model registry routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/active", h.HandleActive)
		r.Get("/summary", h.HandleSummary)
		r.Get("/storage", h.HandleStorage)
		r.Post("/cleanup", h.HandleCleanup)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/activate", h.HandleActivate)
		r.Get("/{id}/artifact", h.HandleDownloadArtifact)
	})
}

// HandleList handles GET /api/models
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if versions == nil {
		versions = []registry.ModelVersion{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": versions,
		"count":  len(versions),
	})
}

// HandleActive handles GET /api/models/active
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.Active()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if active == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "no models stored yet")
		return
	}
	h.writeJSON(w, http.StatusOK, active)
}

// HandleGet handles GET /api/models/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.service.Get(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// HandleActivate handles POST /api/models/{id}/activate
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Activate(id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "activated",
		"model_id": id,
	})
}

// HandleDelete handles DELETE /api/models/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "deleted",
		"model_id": id,
	})
}

// CleanupRequest represents a request to evict old model versions
type CleanupRequest struct {
	Keep int `json:"keep"`
}

// HandleCleanup handles POST /api/models/cleanup
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	req := CleanupRequest{Keep: h.defaultKeep}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}
	if req.Keep < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "keep must be at least 1")
		return
	}

	deleted, kept, err := h.service.Cleanup(req.Keep)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
		"kept":    kept,
	})
}

// HandleSummary handles GET /api/models/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleStorage handles GET /api/models/storage
func (h *Handler) HandleStorage(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.StorageInfo()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleDownloadArtifact handles GET /api/models/{id}/artifact
func (h *Handler) HandleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.service.LoadArtifact(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".model"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Str("model_id", id).Msg("Failed to stream artifact")
	}
}

// writeServiceError maps registry errors onto HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var nf *registry.NotFoundError
	var protected *registry.ProtectedResourceError
	switch {
	case errors.As(err, &nf):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &protected):
		h.writeError(w, http.StatusConflict, "protected_resource", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
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
