// Package analyzer is the high-level entry point: it runs captured traffic
// through ingestion, normalization, schema inference, grouping, and
// dependency correlation, then merges the outcome into the persisted
// catalog for the service.
package analyzer

import (
	"context"
	"fmt"

	"github.com/traceforge/traceforge/internal/catalog"
	"github.com/traceforge/traceforge/internal/depgraph"
	"github.com/traceforge/traceforge/internal/export"
	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/logger"
	"github.com/traceforge/traceforge/internal/schema"
	"github.com/traceforge/traceforge/internal/trace"
	"github.com/traceforge/traceforge/internal/validator"
)

// Analyzer wires the analysis pipeline to a catalog store.
type Analyzer struct {
	config *Config
	log    *logger.Logger
	store  catalog.Store
}

// New creates an analyzer from functional options.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if a.log == nil {
		level := logger.InfoLevel
		if a.config.Debug {
			level = logger.DebugLevel
		} else if !a.config.Verbose {
			level = logger.WarnLevel
		}
		l := logger.NewDefault()
		l.SetLevel(level)
		a.log = l
	}

	if a.store == nil {
		store, err := openStore(a.config.Store)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

func openStore(cfg StoreConfig) (catalog.Store, error) {
	switch cfg.Backend {
	case StoreBolt:
		return catalog.NewBoltStore(cfg.Path)
	case StoreFile:
		return catalog.NewFileStore(cfg.Path, cfg.Compress), nil
	case StoreMemory:
		return catalog.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// Close releases the underlying store.
func (a *Analyzer) Close() error {
	return a.store.Close()
}

// AnalyzeHAR parses a HAR document and runs the full pipeline on it.
func (a *Analyzer) AnalyzeHAR(ctx context.Context, harData []byte) (*catalog.Result, error) {
	capture, err := trace.ParseHAR(harData, a.config.SeedURL)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeCapture(ctx, capture)
}

// AnalyzeExchanges runs the pipeline on already decoded exchanges.
func (a *Analyzer) AnalyzeExchanges(ctx context.Context, exchanges []trace.Exchange) (*catalog.Result, error) {
	return a.AnalyzeCapture(ctx, trace.Ingest(exchanges, a.config.SeedURL))
}

// AnalyzeCapture groups, correlates, and merges one capture into the
// persisted catalog for its service.
func (a *Analyzer) AnalyzeCapture(ctx context.Context, capture *trace.Capture) (*catalog.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.config.Service != "" {
		capture.Service = a.config.Service
	}
	log := a.log.WithService(capture.Service)
	log.Debugf("analyzing %d exchanges", len(capture.Exchanges))

	groups := group.Build(capture.Exchanges)
	for _, g := range groups {
		log.EndpointEvent(logger.DebugLevel, g.Method, g.Path, g.ExampleCount).Msg("Endpoint observed")
	}
	dag := depgraph.Correlate(capture.Exchanges)

	existing, err := a.store.Load(capture.Service)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		for _, g := range groups {
			prev := existing.Endpoint(g.Key())
			if prev == nil || len(prev.ResponseSchema) == 0 {
				continue
			}
			drift := schema.DiffFieldMaps(prev.ResponseSchema, g.ResponseSchema)
			if drift.Drifted {
				log.WithEndpoint(g.Method, g.Path).Warnf(
					"response schema drift: %d added, %d removed, %d type changes",
					len(drift.AddedFields), len(drift.RemovedFields), len(drift.TypeChanges))
			}
		}
	}

	result := catalog.Synthesize(existing, capture, groups, dag)
	if err := a.store.Save(result.Catalog); err != nil {
		return nil, err
	}

	log.SynthesisEvent(capture.Service, result.Version, len(result.Catalog.Endpoints), result.Changed)
	return result, nil
}

// Catalog loads the persisted catalog for a service, or nil if unknown.
func (a *Analyzer) Catalog(service string) (*catalog.Catalog, error) {
	return a.store.Load(service)
}

// Services lists the services with a persisted catalog.
func (a *Analyzer) Services() ([]string, error) {
	return a.store.List()
}

// Validate probes a sample of the service's endpoints and returns evidence.
// Credentials are supplied by the caller; the masked values stored in the
// catalog cannot authenticate.
func (a *Analyzer) Validate(ctx context.Context, service string, creds *validator.Credentials) (*validator.Evidence, error) {
	c, err := a.store.Load(service)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("no catalog for service %q", service)
	}

	cfg := validator.Config{
		MaxEndpoints:   a.config.Validation.MaxEndpoints,
		BatchSize:      a.config.Validation.BatchSize,
		RequestTimeout: a.config.Validation.RequestTimeout,
		TotalBudget:    a.config.Validation.TotalBudget,
		RequestsPerSec: a.config.Validation.RequestsPerSecond,
		SkipTLSVerify:  a.config.Validation.SkipTLSVerify,
		ToolVersion:    Version,
	}
	v := validator.New(cfg, a.log)
	return v.Validate(ctx, c.BaseURL, c.Endpoints, creds), nil
}

// ExportOpenAPI renders a service's catalog as an OpenAPI 3 JSON document.
func (a *Analyzer) ExportOpenAPI(service string) ([]byte, error) {
	c, err := a.store.Load(service)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("no catalog for service %q", service)
	}
	return export.OpenAPIJSON(c)
}
