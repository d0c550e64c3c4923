package analyzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if c.Store.Backend != StoreBolt {
		t.Errorf("backend = %s", c.Store.Backend)
	}
	if c.Validation.MaxEndpoints != 10 || c.Validation.BatchSize != 4 {
		t.Errorf("validation defaults = %+v", c.Validation)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"memory without path", func(c *Config) {
			c.Store.Backend = StoreMemory
			c.Store.Path = ""
		}, false},
		{"missing backend", func(c *Config) { c.Store.Backend = "" }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, true},
		{"bolt without path", func(c *Config) { c.Store.Path = "" }, true},
		{"negative max endpoints", func(c *Config) { c.Validation.MaxEndpoints = -1 }, true},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	doc := `seed_url: https://api.acme.com
service: acme
store:
  backend: file
  path: /tmp/catalogs
  compress: true
validation:
  max_endpoints: 5
output:
  format: json
  pretty: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.SeedURL != "https://api.acme.com" || c.Service != "acme" {
		t.Errorf("config = %+v", c)
	}
	if c.Store.Backend != StoreFile || !c.Store.Compress {
		t.Errorf("store = %+v", c.Store)
	}
	if c.Validation.MaxEndpoints != 5 {
		t.Errorf("max_endpoints = %d", c.Validation.MaxEndpoints)
	}
	// Unset fields keep defaults.
	if c.Validation.TotalBudget != 60*time.Second {
		t.Errorf("total_budget = %v", c.Validation.TotalBudget)
	}
	if c.Validation.BatchSize != 4 {
		t.Errorf("batch_size = %d", c.Validation.BatchSize)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.Service = "acme"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Service != "acme" || loaded.Store.Backend != c.Store.Backend {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestOptions(t *testing.T) {
	a := newTestAnalyzer(t,
		WithService("acme"),
		WithSeedURL("https://api.acme.com"),
		WithMaxValidationEndpoints(0),
		WithValidationBudget(5*time.Second),
		WithDebug(true),
	)

	if a.config.Service != "acme" || a.config.SeedURL != "https://api.acme.com" {
		t.Errorf("config = %+v", a.config)
	}
	// Below-minimum values are clamped.
	if a.config.Validation.MaxEndpoints != 1 {
		t.Errorf("max_endpoints = %d", a.config.Validation.MaxEndpoints)
	}
	if a.config.Validation.TotalBudget != 5*time.Second {
		t.Errorf("total_budget = %v", a.config.Validation.TotalBudget)
	}
	if !a.config.Debug {
		t.Error("debug not set")
	}
}
