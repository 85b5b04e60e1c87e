package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/database"
)

// Repository persists model versions in the models database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a model version repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "registry_repo").Logger(),
	}
}

// Create inserts a new model version. The first version ever stored is
// activated inside the same transaction, so as soon as any version exists,
// exactly one is active.
func (r *Repository) Create(v *ModelVersion) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM model_versions").Scan(&count); err != nil {
			return fmt.Errorf("failed to count versions: %w", err)
		}
		if count == 0 {
			v.IsActive = true
		}

		params := v.Params
		if params == nil {
			params = json.RawMessage("{}")
		}

		_, err := tx.Exec(`
			INSERT INTO model_versions (id, created_at, accuracy, is_active, artifact_path, size_bytes, params_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.CreatedAt.Unix(), v.Accuracy, boolToInt(v.IsActive), v.ArtifactPath, v.SizeBytes, string(params))
		if err != nil {
			return fmt.Errorf("failed to insert model version: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("model_id", v.ID).
		Float64("accuracy", v.Accuracy).
		Bool("active", v.IsActive).
		Msg("Model version stored")
	return nil
}

// List returns all versions, newest first.
func (r *Repository) List() ([]ModelVersion, error) {
	rows, err := r.db.Query(`
		SELECT id, created_at, accuracy, is_active, artifact_path, size_bytes, params_json
		FROM model_versions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Get returns one version by ID.
func (r *Repository) Get(id string) (*ModelVersion, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, accuracy, is_active, artifact_path, size_bytes, params_json
		FROM model_versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Active returns the active version, or nil when no versions exist.
func (r *Repository) Active() (*ModelVersion, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, accuracy, is_active, artifact_path, size_bytes, params_json
		FROM model_versions WHERE is_active = 1`)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Activate flips the active flag to the given version in one transaction and
// returns the previously active ID. Activating the already-active version is
// a no-op.
func (r *Repository) Activate(id string) (previousID string, err error) {
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM model_versions WHERE id = ?", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check version: %w", err)
		}
		if exists == 0 {
			return &NotFoundError{ID: id}
		}

		var prev sql.NullString
		if err := tx.QueryRow("SELECT id FROM model_versions WHERE is_active = 1").Scan(&prev); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read active version: %w", err)
		}
		previousID = prev.String
		if prev.Valid && prev.String == id {
			return nil
		}

		// Clear first so the partial unique index never sees two active rows.
		if _, err := tx.Exec("UPDATE model_versions SET is_active = 0 WHERE is_active = 1"); err != nil {
			return fmt.Errorf("failed to clear active flag: %w", err)
		}
		if _, err := tx.Exec("UPDATE model_versions SET is_active = 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to set active flag: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previousID, nil
}

// Delete removes one version. The active version is protected.
func (r *Repository) Delete(id string) error {
	v, err := r.Get(id)
	if err != nil {
		return err
	}
	if v.IsActive {
		return &ProtectedResourceError{ID: id}
	}
	if _, err := r.db.Exec("DELETE FROM model_versions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	return nil
}

// Cleanup evicts old versions so that exactly keepN remain, the active
// version always among them. Versions are kept newest-first. Returns the
// evicted versions so the caller can remove their artifacts.
func (r *Repository) Cleanup(keepN int) ([]ModelVersion, error) {
	if keepN < 1 {
		return nil, fmt.Errorf("keep count must be at least 1, got %d", keepN)
	}

	versions, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(versions) <= keepN {
		return nil, nil
	}

	kept := 0
	var evict []ModelVersion
	for _, v := range versions {
		if v.IsActive {
			kept++
			continue
		}
		if kept < keepN {
			kept++
			continue
		}
		evict = append(evict, v)
	}
	// The active version may sit beyond the newest keepN; if counting it
	// pushed us over, drop the oldest kept non-active one.
	if kept > keepN {
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].IsActive {
				continue
			}
			if !containsID(evict, versions[i].ID) {
				evict = append(evict, versions[i])
				kept--
				break
			}
		}
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, v := range evict {
			if _, err := tx.Exec("DELETE FROM model_versions WHERE id = ? AND is_active = 0", v.ID); err != nil {
				return fmt.Errorf("failed to evict version %s: %w", v.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("evicted", len(evict)).
		Int("kept", kept).
		Msg("Model versions cleaned up")
	return evict, nil
}

// Count returns the number of stored versions.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM model_versions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*ModelVersion, error) {
	var (
		v         ModelVersion
		createdAt int64
		active    int
		params    string
	)
	err := row.Scan(&v.ID, &createdAt, &v.Accuracy, &active, &v.ArtifactPath, &v.SizeBytes, &params)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	v.IsActive = active == 1
	if params != "" && params != "{}" {
		v.Params = json.RawMessage(params)
	}
	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func containsID(versions []ModelVersion, id string) bool {
	for _, v := range versions {
		if v.ID == id {
			return true
		}
	}
	return false
}
