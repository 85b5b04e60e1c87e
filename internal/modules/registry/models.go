// Package registry provides the versioned model store: persisted model
// versions, their artifacts on disk, the single-active invariant, and
// retention-based eviction.
package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModelVersion is one trained model tracked by the registry.
// IDs are timestamp-prefixed so lexical order matches creation order.
type ModelVersion struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Accuracy     float64         `json:"accuracy"`
	IsActive     bool            `json:"is_active"`
	ArtifactPath string          `json:"-"`
	SizeBytes    int64           `json:"size_bytes"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// NewVersionID generates a model version identifier.
// Format: model_20250115_093042_a1b2c3d4 — sortable by creation time with a
// uuid suffix to disambiguate same-second versions.
func NewVersionID(now time.Time) string {
	return fmt.Sprintf("model_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// StorageInfo describes the registry's on-disk footprint
type StorageInfo struct {
	TotalModels   int    `json:"total_models"`
	ActiveModelID string `json:"active_model_id,omitempty"`
	StorageBytes  int64  `json:"storage_bytes"`
	ModelsDir     string `json:"models_dir"`
}

// Summary aggregates accuracy statistics across stored versions
type Summary struct {
	Count        int     `json:"count"`
	MeanAccuracy float64 `json:"mean_accuracy"`
	StdDev       float64 `json:"stddev_accuracy"`
	BestAccuracy float64 `json:"best_accuracy"`
	BestModelID  string  `json:"best_model_id,omitempty"`
}
