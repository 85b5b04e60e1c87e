package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Manifest is a compact sidecar written next to each artifact describing
// what was persisted. Encoded with msgpack to keep it small.
type Manifest struct {
	ModelID   string    `msgpack:"model_id"`
	CreatedAt time.Time `msgpack:"created_at"`
	Accuracy  float64   `msgpack:"accuracy"`
	SizeBytes int64     `msgpack:"size_bytes"`
	Checksum  uint32    `msgpack:"checksum,omitempty"`
}

// ArtifactStore persists model artifacts under a single directory.
// Layout: <dir>/<model-id>.model plus <dir>/<model-id>.manifest.
type ArtifactStore struct {
	dir string
	log zerolog.Logger
}

// NewArtifactStore creates the artifact directory if needed.
func NewArtifactStore(dataDir string, log zerolog.Logger) (*ArtifactStore, error) {
	dir := filepath.Join(dataDir, "models")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &ArtifactStore{
		dir: dir,
		log: log.With().Str("component", "artifacts").Logger(),
	}, nil
}

// Dir returns the artifact directory path.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// ArtifactPath returns the path an artifact for the given model lives at.
func (s *ArtifactStore) ArtifactPath(modelID string) string {
	return filepath.Join(s.dir, modelID+".model")
}

func (s *ArtifactStore) manifestPath(modelID string) string {
	return filepath.Join(s.dir, modelID+".manifest")
}

// Save writes the artifact bytes and its manifest atomically enough for our
// purposes: artifact first, manifest second, temp-file rename for the blob.
func (s *ArtifactStore) Save(modelID string, data []byte, accuracy float64, createdAt time.Time) (string, int64, error) {
	path := s.ArtifactPath(modelID)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	manifest := Manifest{
		ModelID:   modelID,
		CreatedAt: createdAt,
		Accuracy:  accuracy,
		SizeBytes: int64(len(data)),
	}
	encoded, err := msgpack.Marshal(&manifest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(s.manifestPath(modelID), encoded, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write manifest: %w", err)
	}

	s.log.Debug().
		Str("model_id", modelID).
		Int("size_bytes", len(data)).
		Msg("Artifact saved")

	return path, int64(len(data)), nil
}

// Load reads an artifact back from disk.
func (s *ArtifactStore) Load(modelID string) ([]byte, error) {
	data, err := os.ReadFile(s.ArtifactPath(modelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: modelID}
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// LoadManifest reads and decodes the manifest sidecar.
func (s *ArtifactStore) LoadManifest(modelID string) (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(modelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: modelID}
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Remove deletes the artifact and its manifest. Missing files are not an
// error so eviction stays idempotent.
func (s *ArtifactStore) Remove(modelID string) error {
	if err := os.Remove(s.ArtifactPath(modelID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	if err := os.Remove(s.manifestPath(modelID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}
	return nil
}

// TotalSizeBytes sums artifact sizes on disk.
func (s *ArtifactStore) TotalSizeBytes() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read models directory: %w", err)
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
