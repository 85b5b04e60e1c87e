// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir           string // Base directory for databases and model artifacts (always absolute)
	Port              int
	DevMode           bool
	LogLevel          string
	TrainerServiceURL string // Remote GPU training service (empty = not configured)
	TrainerPollSecs   int    // Interval between remote status polls during training
	ModelKeepCount    int    // Default versions retained by cleanup
	Mirror            *MirrorConfig
}

// MirrorConfig holds optional S3-compatible artifact mirror configuration.
// When Bucket is empty the mirror is disabled.
type MirrorConfig struct {
	Bucket          string
	Endpoint        string // Custom endpoint for S3-compatible stores (R2, MinIO)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Enabled reports whether the mirror is configured.
func (m *MirrorConfig) Enabled() bool {
	return m != nil && m.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve data directory to an absolute path and make sure it exists.
	// Databases, model artifacts and manifests all live under it.
	dataDir := getEnv("FOUNDRY_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("FOUNDRY_PORT", 8002),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		TrainerServiceURL: getEnv("TRAINER_SERVICE_URL", "http://localhost:9100"),
		TrainerPollSecs:   getEnvAsInt("TRAINER_POLL_SECONDS", 10),
		ModelKeepCount:    getEnvAsInt("MODEL_KEEP_COUNT", 5),
		Mirror:            loadMirrorConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ModelKeepCount < 1 {
		return fmt.Errorf("MODEL_KEEP_COUNT must be at least 1, got %d", c.ModelKeepCount)
	}
	if c.TrainerPollSecs < 1 {
		return fmt.Errorf("TRAINER_POLL_SECONDS must be at least 1, got %d", c.TrainerPollSecs)
	}
	return nil
}

// loadMirrorConfig loads the optional artifact mirror settings.
// The mirror is disabled unless MIRROR_BUCKET is set.
func loadMirrorConfig() *MirrorConfig {
	return &MirrorConfig{
		Bucket:          getEnv("MIRROR_BUCKET", ""),
		Endpoint:        getEnv("MIRROR_ENDPOINT", ""),
		Region:          getEnv("MIRROR_REGION", "auto"),
		AccessKeyID:     getEnv("MIRROR_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("MIRROR_SECRET_ACCESS_KEY", ""),
		Prefix:          getEnv("MIRROR_PREFIX", "models"),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
