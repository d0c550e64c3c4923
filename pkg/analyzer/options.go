package analyzer

import (
	"time"

	"github.com/traceforge/traceforge/internal/catalog"
	"github.com/traceforge/traceforge/internal/logger"
)

// Version is the analyzer release identifier embedded in reports.
const Version = "1.0.0"

// Option is a functional option for configuring the Analyzer.
type Option func(*Analyzer) error

// WithConfig replaces the full configuration.
func WithConfig(config *Config) Option {
	return func(a *Analyzer) error {
		a.config = config
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(a *Analyzer) error {
		a.log = log
		return nil
	}
}

// WithStore injects a catalog store directly, bypassing the store config.
func WithStore(store catalog.Store) Option {
	return func(a *Analyzer) error {
		a.store = store
		return nil
	}
}

// WithSeedURL sets the URL the capture was recorded against.
func WithSeedURL(url string) Option {
	return func(a *Analyzer) error {
		a.config.SeedURL = url
		return nil
	}
}

// WithService overrides the service name derived from traffic.
func WithService(service string) Option {
	return func(a *Analyzer) error {
		a.config.Service = service
		return nil
	}
}

// WithStorePath sets the persistence location for the configured backend.
func WithStorePath(path string) Option {
	return func(a *Analyzer) error {
		a.config.Store.Path = path
		return nil
	}
}

// WithStoreBackend selects the persistence backend.
func WithStoreBackend(backend StoreBackend) Option {
	return func(a *Analyzer) error {
		a.config.Store.Backend = backend
		return nil
	}
}

// WithMaxValidationEndpoints caps how many endpoints one validation run
// probes.
func WithMaxValidationEndpoints(n int) Option {
	return func(a *Analyzer) error {
		if n < 1 {
			n = 1
		}
		a.config.Validation.MaxEndpoints = n
		return nil
	}
}

// WithValidationBudget sets the wall-clock budget for a validation run.
func WithValidationBudget(budget time.Duration) Option {
	return func(a *Analyzer) error {
		a.config.Validation.TotalBudget = budget
		return nil
	}
}

// WithVerbose enables info-level logging.
func WithVerbose(verbose bool) Option {
	return func(a *Analyzer) error {
		a.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(a *Analyzer) error {
		a.config.Debug = debug
		return nil
	}
}
