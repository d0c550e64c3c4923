// Package export renders a catalog as an OpenAPI 3 document so downstream
// tooling (docs renderers, client generators) can consume it.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/traceforge/traceforge/internal/catalog"
	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/pathnorm"
)

// OpenAPI converts a catalog into an OpenAPI 3 document.
func OpenAPI(c *catalog.Catalog) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       c.Service,
			Version:     c.Version,
			Description: describeCatalog(c),
		},
		Paths: openapi3.NewPaths(),
	}
	if c.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: c.BaseURL}}
	}

	for _, g := range c.Endpoints {
		item := doc.Paths.Value(g.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(g.Path, item)
		}
		item.SetOperation(g.Method, buildOperation(g))
	}
	return doc
}

// OpenAPIJSON renders the document as indented JSON.
func OpenAPIJSON(c *catalog.Catalog) ([]byte, error) {
	return json.MarshalIndent(OpenAPI(c), "", "  ")
}

func describeCatalog(c *catalog.Catalog) string {
	desc := fmt.Sprintf("API description synthesized from recorded traffic (%d endpoints).", len(c.Endpoints))
	if c.AuthMethod != "" {
		desc += " Auth: " + c.AuthMethod + "."
	}
	return desc
}

func buildOperation(g *group.EndpointGroup) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: operationID(g),
		Summary:     g.ResponseSummary,
		Tags:        []string{string(g.Category)},
	}

	for _, p := range g.PathParams {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     p.Name,
				In:       openapi3.ParameterInPath,
				Required: true,
				Schema:   openapi3.NewSchemaRef("", paramSchema(p.Type)),
				Example:  p.Example,
			},
		})
	}
	for _, qp := range g.QueryParams {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:    qp.Name,
				In:      openapi3.ParameterInQuery,
				Schema:  openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
				Example: qp.Example,
			},
		})
	}

	if len(g.RequestSchema) > 0 {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Content: openapi3.NewContentWithJSONSchema(buildSchema(g.RequestSchema)),
			},
		}
	}

	desc := "Observed response"
	resp := &openapi3.Response{Description: &desc}
	if len(g.ResponseSchema) > 0 {
		resp.Content = openapi3.NewContentWithJSONSchema(buildSchema(g.ResponseSchema))
	}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: resp}),
	)
	return op
}

func operationID(g *group.EndpointGroup) string {
	id := strings.ToLower(g.Method)
	for _, seg := range strings.Split(g.Path, "/") {
		if seg == "" {
			continue
		}
		seg = strings.Trim(seg, "{}")
		if len(seg) > 0 {
			id += strings.ToUpper(seg[:1]) + seg[1:]
		}
	}
	return id
}

func paramSchema(t pathnorm.ParamType) *openapi3.Schema {
	switch t {
	case pathnorm.TypeNumeric:
		return openapi3.NewIntegerSchema()
	case pathnorm.TypeUUID:
		return openapi3.NewUUIDSchema()
	case pathnorm.TypeDate:
		s := openapi3.NewStringSchema()
		s.Format = "date"
		return s
	case pathnorm.TypeEmail:
		s := openapi3.NewStringSchema()
		s.Format = "email"
		return s
	default:
		return openapi3.NewStringSchema()
	}
}

// schemaNode reconstructs a nested schema tree from flattened field paths.
type schemaNode struct {
	typ      string
	children map[string]*schemaNode
}

func (n *schemaNode) child(name string) *schemaNode {
	if n.children == nil {
		n.children = make(map[string]*schemaNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &schemaNode{}
		n.children[name] = c
	}
	return c
}

// buildSchema converts a flattened field map (dot paths with "[]" marking
// array descent) back into an OpenAPI schema.
func buildSchema(fields map[string]string) *openapi3.Schema {
	root := &schemaNode{}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		node := root
		for _, part := range strings.Split(path, ".") {
			base := part
			descents := 0
			for strings.HasSuffix(base, "[]") {
				base = strings.TrimSuffix(base, "[]")
				descents++
			}
			if base != "" {
				node = node.child(base)
			}
			for d := 0; d < descents; d++ {
				node.typ = "array"
				node = node.child("[]")
			}
		}
		if node.typ == "" {
			node.typ = fields[path]
		}
	}
	if root.typ == "" {
		root.typ = "object"
	}
	return nodeSchema(root)
}

func nodeSchema(n *schemaNode) *openapi3.Schema {
	switch n.typ {
	case "array":
		s := openapi3.NewArraySchema()
		if item, ok := n.children["[]"]; ok {
			if item.typ == "" && len(item.children) > 0 {
				item.typ = "object"
			}
			s.Items = openapi3.NewSchemaRef("", nodeSchema(item))
		}
		return s
	case "object":
		s := openapi3.NewObjectSchema()
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			if name == "[]" {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := n.children[name]
			if child.typ == "" && len(child.children) > 0 {
				child.typ = "object"
			}
			s.Properties[name] = openapi3.NewSchemaRef("", nodeSchema(child))
		}
		return s
	case "string":
		return openapi3.NewStringSchema()
	case "number":
		return openapi3.NewFloat64Schema()
	case "boolean":
		return openapi3.NewBoolSchema()
	default:
		// mixed, null, unknown: leave untyped
		return &openapi3.Schema{}
	}
}
