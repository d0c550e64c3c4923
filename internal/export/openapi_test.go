package export

import (
	"strings"
	"testing"

	"github.com/traceforge/traceforge/internal/catalog"
	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/pathnorm"
)

func sampleCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:    "acme",
		BaseURL:    "https://api.acme.com",
		AuthMethod: "Bearer Token",
		Version:    "abc123def456",
		Endpoints: []*group.EndpointGroup{
			{
				Method:   "GET",
				Path:     "/users/{userId}",
				Category: group.CategoryRead,
				PathParams: []pathnorm.PathParam{
					{Name: "userId", Example: "42", Type: pathnorm.TypeNumeric},
				},
				QueryParams:     []group.QueryParam{{Name: "expand", Example: "profile"}},
				ResponseSchema:  map[string]string{"id": "number", "name": "string", "roles": "array", "roles[].name": "string"},
				ResponseSummary: "object{id,name,roles}",
			},
			{
				Method:        "POST",
				Path:          "/users",
				Category:      group.CategoryWrite,
				RequestSchema: map[string]string{"name": "string", "active": "boolean"},
			},
		},
	}
}

func TestOpenAPI_Document(t *testing.T) {
	doc := OpenAPI(sampleCatalog())

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info.Title != "acme" || doc.Info.Version != "abc123def456" {
		t.Errorf("info = %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://api.acme.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if doc.Paths.Len() != 2 {
		t.Fatalf("paths = %d, want 2", doc.Paths.Len())
	}

	item := doc.Paths.Value("/users/{userId}")
	if item == nil || item.Get == nil {
		t.Fatal("missing GET /users/{userId}")
	}
	op := item.Get
	if op.OperationID != "getUsersUserId" {
		t.Errorf("operationId = %q", op.OperationID)
	}
	if len(op.Parameters) != 2 {
		t.Fatalf("parameters = %d, want 2", len(op.Parameters))
	}
	pathParam := op.Parameters[0].Value
	if pathParam.Name != "userId" || pathParam.In != "path" || !pathParam.Required {
		t.Errorf("path param = %+v", pathParam)
	}
	if pathParam.Example != "42" {
		t.Errorf("example = %v", pathParam.Example)
	}
}

func TestOpenAPI_ResponseSchemaTree(t *testing.T) {
	doc := OpenAPI(sampleCatalog())

	op := doc.Paths.Value("/users/{userId}").Get
	content := op.Responses.Status(200).Value.Content["application/json"]
	if content == nil || content.Schema == nil {
		t.Fatal("missing response schema")
	}
	props := content.Schema.Value.Properties
	if props["id"] == nil || props["name"] == nil || props["roles"] == nil {
		t.Fatalf("properties = %v", props)
	}
	roles := props["roles"].Value
	if !roles.Type.Is("array") {
		t.Errorf("roles type = %v", roles.Type)
	}
	if roles.Items == nil || roles.Items.Value.Properties["name"] == nil {
		t.Errorf("roles items = %+v", roles.Items)
	}
}

func TestOpenAPI_RequestBody(t *testing.T) {
	doc := OpenAPI(sampleCatalog())

	post := doc.Paths.Value("/users").Post
	if post == nil || post.RequestBody == nil {
		t.Fatal("missing POST request body")
	}
	schema := post.RequestBody.Value.Content["application/json"].Schema.Value
	if schema.Properties["name"] == nil || schema.Properties["active"] == nil {
		t.Errorf("request schema = %v", schema.Properties)
	}
}

func TestOpenAPIJSON(t *testing.T) {
	data, err := OpenAPIJSON(sampleCatalog())
	if err != nil {
		t.Fatalf("OpenAPIJSON: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"/users/{userId}"`, `"openapi": "3.0.3"`, `"userId"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s", want)
		}
	}
}
