package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreBackend selects where catalogs are persisted.
type StoreBackend string

const (
	StoreBolt   StoreBackend = "bolt"
	StoreFile   StoreBackend = "file"
	StoreMemory StoreBackend = "memory"
)

// StoreConfig holds catalog persistence settings.
type StoreConfig struct {
	// Backend is one of bolt, file, or memory.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// Path is the database file (bolt) or directory (file).
	Path string `json:"path" yaml:"path"`

	// Compress gzips file-backend catalogs.
	Compress bool `json:"compress" yaml:"compress"`
}

// ValidationConfig holds endpoint probing settings.
type ValidationConfig struct {
	// Maximum endpoints to probe per run
	MaxEndpoints int `json:"max_endpoints" yaml:"max_endpoints"`

	// Concurrent requests per batch
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Per-request timeout
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// Wall-clock budget for the whole run
	TotalBudget time.Duration `json:"total_budget" yaml:"total_budget"`

	// Request rate cap
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Skip TLS certificate verification
	SkipTLSVerify bool `json:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// OutputConfig holds report rendering settings.
type OutputConfig struct {
	// Format is json or yaml
	Format string `json:"format" yaml:"format"`

	// Pretty-print JSON output
	Pretty bool `json:"pretty" yaml:"pretty"`

	// File path, empty for stdout
	File string `json:"file" yaml:"file"`
}

// Config holds all analyzer configuration.
type Config struct {
	// Seed URL the capture was recorded against; used to identify the
	// target service when traffic spans several domains
	SeedURL string `json:"seed_url" yaml:"seed_url"`

	// Service overrides the service name derived from traffic
	Service string `json:"service" yaml:"service"`

	// Catalog persistence
	Store StoreConfig `json:"store" yaml:"store"`

	// Endpoint validation
	Validation ValidationConfig `json:"validation" yaml:"validation"`

	// Report output
	Output OutputConfig `json:"output" yaml:"output"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: StoreBolt,
			Path:    "traceforge.db",
		},
		Validation: ValidationConfig{
			MaxEndpoints:      10,
			BatchSize:         4,
			RequestTimeout:    10 * time.Second,
			TotalBudget:       60 * time.Second,
			RequestsPerSecond: 5,
		},
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBolt, StoreFile, StoreMemory:
	case "":
		return fmt.Errorf("store backend is required")
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.Store.Backend != StoreMemory && c.Store.Path == "" {
		return fmt.Errorf("store path is required for the %s backend", c.Store.Backend)
	}
	if c.Validation.MaxEndpoints < 0 {
		return fmt.Errorf("validation max_endpoints must be non-negative")
	}
	if c.Validation.BatchSize < 0 {
		return fmt.Errorf("validation batch_size must be non-negative")
	}
	if c.Output.Format != "json" && c.Output.Format != "yaml" {
		return fmt.Errorf("unknown output format: %s", c.Output.Format)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
