// Package group collapses recorded exchanges that share a method and a
// normalized path into endpoint groups, the unit everything downstream
// works with.
package group

import (
	"sort"
	"strings"

	"github.com/traceforge/traceforge/internal/pathnorm"
	"github.com/traceforge/traceforge/internal/schema"
	"github.com/traceforge/traceforge/internal/trace"
)

// Category is the coarse behavioral class of an endpoint.
type Category string

const (
	CategoryAuth   Category = "auth"
	CategoryRead   Category = "read"
	CategoryWrite  Category = "write"
	CategoryDelete Category = "delete"
	CategoryOther  Category = "other"
)

// QueryParam is one observed query string parameter with an example value.
type QueryParam struct {
	Name    string `json:"name"`
	Example string `json:"example,omitempty"`
}

// EndpointGroup aggregates every observation of one logical endpoint,
// keyed by method plus normalized path.
type EndpointGroup struct {
	Method          string               `json:"method"`
	Path            string               `json:"path"`
	Category        Category             `json:"category"`
	PathParams      []pathnorm.PathParam `json:"pathParams,omitempty"`
	QueryParams     []QueryParam         `json:"queryParams,omitempty"`
	RequestSchema   map[string]string    `json:"requestSchema,omitempty"`
	ResponseSchema  map[string]string    `json:"responseSchema,omitempty"`
	ResponseSummary string               `json:"responseSummary,omitempty"`
	ExampleCount    int                  `json:"exampleCount"`
	Dependencies    []string             `json:"dependencies,omitempty"`
	Produces        []string             `json:"produces,omitempty"`
	Consumes        []string             `json:"consumes,omitempty"`
}

// Key identifies the group within a catalog.
func (g *EndpointGroup) Key() string {
	return g.Method + " " + g.Path
}

// authPathWords mark endpoints that handle credentials or sessions.
var authPathWords = map[string]struct{}{
	"login": {}, "logout": {}, "signin": {}, "signup": {}, "register": {},
	"auth": {}, "oauth": {}, "token": {}, "refresh": {}, "password": {},
	"session": {}, "sessions": {}, "sso": {}, "mfa": {}, "otp": {},
}

// Categorize classifies an endpoint from its method and normalized path.
// Auth keywords in the path win over the method.
func Categorize(method, normalizedPath string) Category {
	for _, seg := range strings.Split(normalizedPath, "/") {
		if _, ok := authPathWords[strings.ToLower(seg)]; ok {
			return CategoryAuth
		}
	}
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return CategoryRead
	case "POST", "PUT", "PATCH":
		return CategoryWrite
	case "DELETE":
		return CategoryDelete
	default:
		return CategoryOther
	}
}

// Build aggregates exchanges into endpoint groups. Output is sorted by key
// so repeated runs over the same capture produce identical group lists.
func Build(exchanges []trace.Exchange) []*EndpointGroup {
	byKey := make(map[string]*EndpointGroup)
	order := make([]string, 0)

	for i := range exchanges {
		ex := &exchanges[i]
		method := strings.ToUpper(ex.Method)
		normalized, params := pathnorm.Normalize(ex.Path)

		key := method + " " + normalized
		g, ok := byKey[key]
		if !ok {
			g = &EndpointGroup{
				Method:   method,
				Path:     normalized,
				Category: Categorize(method, normalized),
			}
			byKey[key] = g
			order = append(order, key)
		}

		g.ExampleCount++
		mergeParams(g, params)
		mergeQuery(g, ex)
		mergeBodies(g, ex)
	}

	sort.Strings(order)
	groups := make([]*EndpointGroup, 0, len(byKey))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups
}

// Merge folds src into dst. Schemas union with mixed-type escalation,
// parameter lists union by name, and example counts accumulate. Used when a
// fresh analysis re-observes an endpoint already present in a catalog.
func Merge(dst, src *EndpointGroup) {
	dst.ExampleCount += src.ExampleCount
	mergeParams(dst, src.PathParams)
	for _, qp := range src.QueryParams {
		found := false
		for i := range dst.QueryParams {
			if dst.QueryParams[i].Name == qp.Name {
				found = true
				if dst.QueryParams[i].Example == "" {
					dst.QueryParams[i].Example = qp.Example
				}
				break
			}
		}
		if !found {
			dst.QueryParams = append(dst.QueryParams, qp)
		}
	}
	sort.Slice(dst.QueryParams, func(i, j int) bool {
		return dst.QueryParams[i].Name < dst.QueryParams[j].Name
	})

	if src.RequestSchema != nil {
		dst.RequestSchema = schema.MergeFieldMaps(dst.RequestSchema, src.RequestSchema)
	}
	if src.ResponseSchema != nil {
		dst.ResponseSchema = schema.MergeFieldMaps(dst.ResponseSchema, src.ResponseSchema)
	}
	if src.ResponseSummary != "" {
		dst.ResponseSummary = src.ResponseSummary
	}
	dst.Dependencies = unionSorted(dst.Dependencies, src.Dependencies)
	dst.Produces = unionSorted(dst.Produces, src.Produces)
	dst.Consumes = unionSorted(dst.Consumes, src.Consumes)
}

func unionSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// mergeParams keeps the first observation of each named path parameter and
// backfills example values a later observation provides.
func mergeParams(g *EndpointGroup, params []pathnorm.PathParam) {
	for _, p := range params {
		found := false
		for i := range g.PathParams {
			if g.PathParams[i].Name == p.Name {
				found = true
				if g.PathParams[i].Example == "" {
					g.PathParams[i].Example = p.Example
				}
				break
			}
		}
		if !found {
			g.PathParams = append(g.PathParams, p)
		}
	}
}

func mergeQuery(g *EndpointGroup, ex *trace.Exchange) {
	for name, values := range ex.Query {
		example := ""
		if len(values) > 0 {
			example = values[0]
		}
		found := false
		for i := range g.QueryParams {
			if g.QueryParams[i].Name == name {
				found = true
				if g.QueryParams[i].Example == "" {
					g.QueryParams[i].Example = example
				}
				break
			}
		}
		if !found {
			g.QueryParams = append(g.QueryParams, QueryParam{Name: name, Example: example})
		}
	}
	sort.Slice(g.QueryParams, func(i, j int) bool {
		return g.QueryParams[i].Name < g.QueryParams[j].Name
	})
}

func mergeBodies(g *EndpointGroup, ex *trace.Exchange) {
	if req := schema.InferBody(ex.RequestBody); req != nil {
		g.RequestSchema = schema.MergeFieldMaps(g.RequestSchema, req.Fields)
	}
	resp := schema.InferBody(ex.ResponseBody)
	if resp != nil {
		g.ResponseSchema = schema.MergeFieldMaps(g.ResponseSchema, resp.Fields)
		// Latest parseable sample wins the summary.
		g.ResponseSummary = resp.Summary
		return
	}
	// HTML bodies are opaque; the document title is the only shape we keep.
	if trace.IsHTMLContentType(ex.ResponseContentType) {
		if title := trace.HTMLTitle(ex.ResponseBody); title != "" {
			g.ResponseSummary = "html:" + title
		}
	}
}
