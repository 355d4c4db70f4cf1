// Package config loads the YAML file describing a tenant and its catalogs.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/catalogsync/internal/metadata"
)

// DatabaseURLEnv overrides databaseUrl from the file
const DatabaseURLEnv = "CATALOGSYNC_DATABASE_URL"

// Store drivers
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the content of a catalogsync file
type Config struct {
	TenantID    uuid.UUID `yaml:"tenantId"`
	DatabaseURL string    `yaml:"databaseUrl"`
	// SnapshotPath, when set, receives a JSON copy of every snapshot that is persisted
	SnapshotPath string                       `yaml:"snapshotPath"`
	Store        StoreConfig                  `yaml:"store"`
	Metrics      MetricsConfig                `yaml:"metrics"`
	Catalogs     []metadata.CatalogDefinition `yaml:"catalogs"`
}

// StoreConfig selects where publication state is kept
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// MetricsConfig controls the prometheus textfile written after each run
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Textfile  string `yaml:"textfile"`
}

// Load reads and validates the file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a config document. Unknown keys are rejected so
// that a misspelled attribute field does not silently change a schema.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if env := os.Getenv(DatabaseURLEnv); env != "" {
		cfg.DatabaseURL = env
	}

	// Set defaults
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Driver == StoreSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = "catalogsync.db"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "catalogsync"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and the catalog definitions
func (c *Config) Validate() error {
	if c.TenantID == uuid.Nil {
		return fmt.Errorf("tenantId is required in configuration file")
	}
	switch c.Store.Driver {
	case StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unsupported store driver: %s (supported: sqlite, postgres)", c.Store.Driver)
	}
	if err := metadata.Validate(c.Catalogs); err != nil {
		return fmt.Errorf("invalid catalogs: %w", err)
	}
	return nil
}
