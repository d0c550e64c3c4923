package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/traceforge/traceforge/internal/depgraph"
	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/trace"
)

// versionLen is the truncated length of the content hash, in hex chars.
const versionLen = 12

// Synthesize merges freshly analyzed groups into an existing catalog. The
// merged endpoint set is a superset of the existing one: an endpoint the new
// capture failed to re-observe is kept, never dropped. Passing a nil
// existing catalog creates a new one.
func Synthesize(existing *Catalog, cap *trace.Capture, groups []*group.EndpointGroup, dag *depgraph.DAG) *Result {
	now := time.Now().UTC()

	merged := &Catalog{
		Service:   cap.Service,
		BaseURL:   cap.BaseURL,
		BaseURLs:  cap.BaseURLs,
		CreatedAt: now,
	}
	if existing != nil {
		merged.CreatedAt = existing.CreatedAt
		if merged.Service == "" || merged.Service == "unknown-api" {
			merged.Service = existing.Service
		}
		merged.BaseURLs = mergeBaseURLs(existing.BaseURLs, cap.BaseURLs)
		merged.AuthMethod = existing.AuthMethod
		merged.AuthHeaders = existing.AuthHeaders
	}
	if cap.AuthMethod != "" && !strings.HasPrefix(cap.AuthMethod, "Unknown") {
		merged.AuthMethod = cap.AuthMethod
	}
	if merged.AuthMethod == "" {
		merged.AuthMethod = cap.AuthMethod
	}
	if len(cap.AuthHeaders) > 0 {
		merged.AuthHeaders = trace.SanitizeAuthValues(cap.AuthHeaders)
	}

	byKey := make(map[string]*group.EndpointGroup)
	var keys []string
	addedCount, schemaChanged := 0, 0

	if existing != nil {
		for _, g := range existing.Endpoints {
			clone := *g
			byKey[g.Key()] = &clone
			keys = append(keys, g.Key())
		}
	}
	for _, g := range groups {
		key := g.Key()
		prior, ok := byKey[key]
		if !ok {
			clone := *g
			byKey[key] = &clone
			keys = append(keys, key)
			addedCount++
			continue
		}
		before := schemaSignature(prior)
		group.Merge(prior, g)
		if schemaSignature(prior) != before {
			schemaChanged++
		}
	}

	attachEdges(byKey, dag)

	sort.Strings(keys)
	merged.Endpoints = make([]*group.EndpointGroup, 0, len(keys))
	for _, key := range keys {
		merged.Endpoints = append(merged.Endpoints, byKey[key])
	}
	var priorEdges []depgraph.Edge
	if existing != nil {
		priorEdges = existing.Edges
	}
	merged.Edges = mergeEdges(priorEdges, dag)

	merged.Version = versionHash(merged)
	changed := existing == nil || existing.Version != merged.Version
	diff := diffSummary(existing, addedCount, schemaChanged, changed)
	merged.Diff = diff
	merged.UpdatedAt = now
	if existing != nil && !changed {
		merged.UpdatedAt = existing.UpdatedAt
	}

	return &Result{Catalog: merged, Version: merged.Version, Diff: diff, Changed: changed}
}

func mergeBaseURLs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// attachEdges projects DAG edges onto the groups they touch.
func attachEdges(byKey map[string]*group.EndpointGroup, dag *depgraph.DAG) {
	if dag == nil {
		return
	}
	for _, e := range dag.Edges {
		if to, ok := byKey[e.To]; ok {
			to.Dependencies = appendUnique(to.Dependencies, e.From)
			if e.ConsumedAt != "" {
				to.Consumes = appendUnique(to.Consumes, e.ConsumedAt)
			}
		}
		if from, ok := byKey[e.From]; ok && e.ProducedField != "" {
			from.Produces = appendUnique(from.Produces, e.ProducedField)
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	list = append(list, v)
	sort.Strings(list)
	return list
}

// mergeEdges unions previously known edges with the new DAG, keeping the
// stronger observation per (from, to) pair.
func mergeEdges(prior []depgraph.Edge, dag *depgraph.DAG) []depgraph.Edge {
	byPair := make(map[string]depgraph.Edge)
	add := func(e depgraph.Edge) {
		id := e.From + "\x00" + e.To
		if old, ok := byPair[id]; !ok || e.Confidence > old.Confidence {
			byPair[id] = e
		}
	}
	for _, e := range prior {
		add(e)
	}
	if dag != nil {
		for _, e := range dag.Edges {
			add(e)
		}
	}
	if len(byPair) == 0 {
		return nil
	}
	out := make([]depgraph.Edge, 0, len(byPair))
	for _, e := range byPair {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// versionHash computes a content hash over a canonical, order-independent
// serialization of the endpoint set, truncated to a short hex identifier.
// Timestamps and diff text are deliberately excluded so re-synthesizing
// identical input yields an identical version.
func versionHash(c *Catalog) string {
	lines := make([]string, 0, len(c.Endpoints))
	for _, g := range c.Endpoints {
		lines = append(lines, g.Key()+"|"+string(g.Category)+"|"+schemaSignature(g))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintln(h, c.Service)
	for _, line := range lines {
		fmt.Fprintln(h, line)
	}
	return hex.EncodeToString(h.Sum(nil))[:versionLen]
}

// schemaSignature renders a group's schemas as a stable string.
func schemaSignature(g *group.EndpointGroup) string {
	return fieldSignature(g.RequestSchema) + ">" + fieldSignature(g.ResponseSchema)
}

func fieldSignature(fields map[string]string) string {
	if len(fields) == 0 {
		return "-"
	}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var sb strings.Builder
	for i, p := range paths {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p)
		sb.WriteByte(':')
		sb.WriteString(fields[p])
	}
	return sb.String()
}

func diffSummary(existing *Catalog, added, schemaChanged int, changed bool) string {
	if existing == nil {
		return fmt.Sprintf("initial catalog: %d endpoints", added)
	}
	if !changed {
		return "no changes"
	}
	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d new endpoints", added))
	}
	if schemaChanged > 0 {
		parts = append(parts, fmt.Sprintf("%d changed schemas", schemaChanged))
	}
	if len(parts) == 0 {
		parts = append(parts, "metadata updated")
	}
	return strings.Join(parts, ", ")
}
