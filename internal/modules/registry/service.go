package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foundry/internal/events"
)

// Service is the registry's public surface: it coordinates the repository,
// the artifact store, the optional mirror and event emission.
type Service struct {
	repo      *Repository
	artifacts *ArtifactStore
	mirror    *Mirror
	events    *events.Manager
	log       zerolog.Logger
}

// NewService wires the registry service. mirror may be nil.
func NewService(repo *Repository, artifacts *ArtifactStore, mirror *Mirror, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		artifacts: artifacts,
		mirror:    mirror,
		events:    eventManager,
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// Create stores a new model version: artifact to disk, row to the database,
// best-effort mirror upload. Persistence failures come back as *StorageError
// and leave no partial artifact behind.
func (s *Service) Create(artifact []byte, accuracy float64, params json.RawMessage) (*ModelVersion, error) {
	now := time.Now().UTC()
	v := &ModelVersion{
		ID:        NewVersionID(now),
		CreatedAt: now,
		Accuracy:  accuracy,
		Params:    params,
	}

	path, size, err := s.artifacts.Save(v.ID, artifact, accuracy, now)
	if err != nil {
		return nil, &StorageError{Op: "artifact save", Cause: err}
	}
	v.ArtifactPath = path
	v.SizeBytes = size

	if err := s.repo.Create(v); err != nil {
		// Don't leave an orphaned artifact for a row that never landed.
		if rmErr := s.artifacts.Remove(v.ID); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("model_id", v.ID).Msg("Failed to remove orphaned artifact")
		}
		return nil, &StorageError{Op: "version insert", Cause: err}
	}

	if s.mirror != nil {
		go func(id string, data []byte) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := s.mirror.Upload(ctx, id, data); err != nil {
				s.log.Warn().Err(err).Str("model_id", id).Msg("Mirror upload failed")
			}
		}(v.ID, artifact)
	}

	return v, nil
}

// List returns all versions, newest first.
func (s *Service) List() ([]ModelVersion, error) {
	return s.repo.List()
}

// Get returns one version.
func (s *Service) Get(id string) (*ModelVersion, error) {
	return s.repo.Get(id)
}

// Active returns the active version, nil when the store is empty.
func (s *Service) Active() (*ModelVersion, error) {
	return s.repo.Active()
}

// LoadArtifact returns artifact bytes for a stored version.
func (s *Service) LoadArtifact(id string) ([]byte, error) {
	if _, err := s.repo.Get(id); err != nil {
		return nil, err
	}
	return s.artifacts.Load(id)
}

// Activate makes the given version the single active one and emits a
// ModelActivated event on an actual change.
func (s *Service) Activate(id string) error {
	prev, err := s.repo.Activate(id)
	if err != nil {
		return err
	}
	if prev == id {
		return nil
	}

	s.log.Info().Str("model_id", id).Str("previous", prev).Msg("Model activated")
	s.events.EmitTyped(events.ModelActivated, "registry", &events.ModelActivatedData{
		ModelID:    id,
		PreviousID: prev,
	})
	return nil
}

// Delete removes a non-active version and its artifact.
func (s *Service) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.artifacts.Remove(id); err != nil {
		s.log.Warn().Err(err).Str("model_id", id).Msg("Failed to remove artifact")
	}
	if s.mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := s.mirror.Delete(ctx, id); err != nil {
				s.log.Warn().Err(err).Str("model_id", id).Msg("Mirror delete failed")
			}
		}()
	}

	s.events.EmitTyped(events.ModelDeleted, "registry", &events.ModelDeletedData{ModelID: id})
	return nil
}

// Cleanup evicts versions beyond the retention count, removes their
// artifacts and reports how many remain.
func (s *Service) Cleanup(keepN int) (deleted int, kept int, err error) {
	evicted, err := s.repo.Cleanup(keepN)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range evicted {
		if err := s.artifacts.Remove(v.ID); err != nil {
			s.log.Warn().Err(err).Str("model_id", v.ID).Msg("Failed to remove evicted artifact")
		}
	}

	kept, err = s.repo.Count()
	if err != nil {
		return len(evicted), 0, err
	}

	if len(evicted) > 0 {
		s.events.EmitTyped(events.ModelsCleaned, "registry", &events.ModelsCleanedData{
			Deleted: len(evicted),
			Kept:    kept,
		})
	}
	return len(evicted), kept, nil
}

// StorageInfo reports the registry footprint for the system endpoint.
func (s *Service) StorageInfo() (*StorageInfo, error) {
	count, err := s.repo.Count()
	if err != nil {
		return nil, err
	}
	size, err := s.artifacts.TotalSizeBytes()
	if err != nil {
		return nil, err
	}
	info := &StorageInfo{
		TotalModels:  count,
		StorageBytes: size,
		ModelsDir:    s.artifacts.Dir(),
	}
	if active, err := s.repo.Active(); err == nil && active != nil {
		info.ActiveModelID = active.ID
	}
	return info, nil
}

// Summarize aggregates accuracy statistics across all stored versions.
func (s *Service) Summarize() (*Summary, error) {
	versions, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	summary := &Summary{Count: len(versions)}
	if len(versions) == 0 {
		return summary, nil
	}

	accuracies := make([]float64, len(versions))
	for i, v := range versions {
		accuracies[i] = v.Accuracy
		if v.Accuracy > summary.BestAccuracy {
			summary.BestAccuracy = v.Accuracy
			summary.BestModelID = v.ID
		}
	}
	summary.MeanAccuracy = stat.Mean(accuracies, nil)
	if len(accuracies) > 1 {
		summary.StdDev = stat.StdDev(accuracies, nil)
	}
	return summary, nil
}
