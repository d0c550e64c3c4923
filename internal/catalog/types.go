// Package catalog merges analyzed endpoint groups into a persisted,
// versioned description of a service and stores it.
package catalog

import (
	"time"

	"github.com/traceforge/traceforge/internal/depgraph"
	"github.com/traceforge/traceforge/internal/group"
)

// Catalog is the persisted artifact: everything learned about one service.
// It is created on first analysis and afterwards mutated only through
// Synthesize; the endpoint set never shrinks across a merge.
type Catalog struct {
	Service     string                 `json:"service"`
	BaseURL     string                 `json:"baseUrl"`
	BaseURLs    []string               `json:"baseUrls,omitempty"`
	AuthMethod  string                 `json:"authMethod,omitempty"`
	AuthHeaders map[string]string      `json:"authHeaders,omitempty"`
	Endpoints   []*group.EndpointGroup `json:"endpoints"`
	Edges       []depgraph.Edge        `json:"edges,omitempty"`
	Version     string                 `json:"version"`
	Diff        string                 `json:"diff,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Endpoint returns the group with the given key, or nil.
func (c *Catalog) Endpoint(key string) *group.EndpointGroup {
	for _, g := range c.Endpoints {
		if g.Key() == key {
			return g
		}
	}
	return nil
}

// Result is the outcome of one synthesis run.
type Result struct {
	Catalog *Catalog `json:"catalog"`
	Version string   `json:"version"`
	Diff    string   `json:"diff"`
	Changed bool     `json:"changed"`
}
