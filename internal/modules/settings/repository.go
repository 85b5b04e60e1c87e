// Package settings provides the repository for runtime application settings.
// Settings are key-value pairs stored in config.db (retraining schedule,
// retention policy, last-used training parameters). Values stored here take
// precedence over environment variables and survive restarts.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles settings database operations.
// Settings are stored as strings and converted to appropriate types
// (int, float, bool) when retrieved.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key.
// Returns nil if the setting doesn't exist (not an error).
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set sets a setting value.
// The description is optional and documents the setting's purpose.
func (r *Repository) Set(key string, value string, description *string) error {
	now := time.Now().Unix()

	if description != nil {
		_, err := r.db.Exec(`
			INSERT INTO settings (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				description = excluded.description,
				updated_at = excluded.updated_at
		`, key, value, *description, now)
		return err
	}

	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *Repository) Delete(key string) error {
	_, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// GetBool retrieves a boolean setting, returning the default when unset or unparsable.
func (r *Repository) GetBool(key string, defaultValue bool) (bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(*value)
	if err != nil {
		r.log.Warn().Str("key", key).Str("value", *value).Msg("Setting is not a valid bool, using default")
		return defaultValue, nil
	}
	return parsed, nil
}

// GetInt retrieves an integer setting, returning the default when unset or unparsable.
func (r *Repository) GetInt(key string, defaultValue int) (int, error) {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(*value)
	if err != nil {
		r.log.Warn().Str("key", key).Str("value", *value).Msg("Setting is not a valid int, using default")
		return defaultValue, nil
	}
	return parsed, nil
}

// GetInt64 retrieves an int64 setting, returning the default when unset or unparsable.
func (r *Repository) GetInt64(key string, defaultValue int64) (int64, error) {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(*value, 10, 64)
	if err != nil {
		r.log.Warn().Str("key", key).Str("value", *value).Msg("Setting is not a valid int64, using default")
		return defaultValue, nil
	}
	return parsed, nil
}

// SetBool stores a boolean setting
func (r *Repository) SetBool(key string, value bool) error {
	return r.Set(key, strconv.FormatBool(value), nil)
}

// SetInt stores an integer setting
func (r *Repository) SetInt(key string, value int) error {
	return r.Set(key, strconv.Itoa(value), nil)
}

// SetInt64 stores an int64 setting
func (r *Repository) SetInt64(key string, value int64) error {
	return r.Set(key, strconv.FormatInt(value, 10), nil)
}

// GetAll retrieves all settings as a map
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan setting row")
			continue
		}
		result[key] = value
	}

	return result, rows.Err()
}
