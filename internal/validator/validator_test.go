package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/logger"
	"github.com/traceforge/traceforge/internal/pathnorm"
)

func testLogger() *logger.Logger {
	l := logger.NewDefault()
	l.SetLevel(logger.ErrorLevel)
	return l
}

func readEndpoint(path string, params ...pathnorm.PathParam) *group.EndpointGroup {
	return &group.EndpointGroup{
		Method:     "GET",
		Path:       path,
		Category:   group.CategoryRead,
		PathParams: params,
	}
}

func TestSelect_FiltersAndDiversifies(t *testing.T) {
	groups := []*group.EndpointGroup{
		readEndpoint("/users/{userId}"),
		readEndpoint("/users/{userId}/orders"),
		readEndpoint("/users/{userId}/settings"),
		readEndpoint("/projects/{projectId}"),
		readEndpoint("/projects/{projectId}/tasks"),
		readEndpoint("/billing/invoices"),
		{Method: "POST", Path: "/users", Category: group.CategoryWrite},
		{Method: "GET", Path: "/auth/session", Category: group.CategoryAuth},
		{Method: "DELETE", Path: "/users/{userId}", Category: group.CategoryDelete},
	}

	selected := Select(groups, 4)
	if len(selected) != 4 {
		t.Fatalf("selected %d, want 4", len(selected))
	}

	// One per bucket before any bucket contributes twice.
	seen := make(map[string]int)
	for _, g := range selected {
		seen[bucketKey(g.Path)]++
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct buckets in first round, got %v", seen)
	}
	for _, g := range selected {
		if g.Method != "GET" {
			t.Errorf("non-GET endpoint selected: %s", g.Key())
		}
		if g.Category == group.CategoryAuth {
			t.Errorf("auth endpoint selected: %s", g.Key())
		}
	}
}

func TestSelect_RespectsMax(t *testing.T) {
	groups := []*group.EndpointGroup{
		readEndpoint("/a/b"),
		readEndpoint("/c/d"),
		readEndpoint("/e/f"),
	}
	if got := Select(groups, 2); len(got) != 2 {
		t.Errorf("selected %d, want 2", len(got))
	}
	if got := Select(groups, 10); len(got) != 3 {
		t.Errorf("selected %d, want all 3", len(got))
	}
}

func TestAnalyzeShape(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantShape  string
		nonTrivial bool
	}{
		{"object", `{"id":1,"name":"x"}`, "object{id,name}", true},
		{"empty object", `{}`, "object{}", false},
		{"array", `[1,2,3]`, "array[3]", true},
		{"empty array", `[]`, "array[0]", false},
		{"string", `"hello"`, "string", true},
		{"empty string", `""`, "string", false},
		{"number", `42`, "number", true},
		{"zero", `0`, "number", true},
		{"boolean", `true`, "boolean", false},
		{"null", `null`, "null", false},
		{"html", `<!DOCTYPE html><html><body></body></html>`, "html", false},
		{"plain text", `pong`, "text", true},
		{"empty", ``, "empty", false},
		{"whitespace", "  \n ", "empty", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, ok := AnalyzeShape(tt.body)
			if shape != tt.wantShape || ok != tt.nonTrivial {
				t.Errorf("AnalyzeShape(%q) = %q, %v; want %q, %v",
					tt.body, shape, ok, tt.wantShape, tt.nonTrivial)
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	g := readEndpoint("/users/{userId}/orders/{orderId}",
		pathnorm.PathParam{Name: "userId", Example: "42"},
		pathnorm.PathParam{Name: "orderId", Example: "o_9"},
	)
	got, ok := buildURL("https://api.example.com/", g)
	if !ok || got != "https://api.example.com/users/42/orders/o_9" {
		t.Errorf("buildURL = %q, %v", got, ok)
	}

	missing := readEndpoint("/users/{userId}", pathnorm.PathParam{Name: "userId"})
	if _, ok := buildURL("https://api.example.com", missing); ok {
		t.Error("buildURL succeeded without an example value")
	}
}

func TestBuildURL_QueryExamples(t *testing.T) {
	g := readEndpoint("/search")
	g.QueryParams = []group.QueryParam{{Name: "q", Example: "widgets"}, {Name: "sort"}}

	got, ok := buildURL("https://api.example.com", g)
	if !ok || got != "https://api.example.com/search?q=widgets" {
		t.Errorf("buildURL = %q, %v", got, ok)
	}
}

func TestValidate_PassCriterion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/1", jsonHandler(`{"id":1,"name":"Ada"}`))
	mux.HandleFunc("/orders/7", jsonHandler(`[{"id":"o_7"}]`))
	mux.HandleFunc("/projects/3", jsonHandler(`{"id":3}`))
	mux.HandleFunc("/billing/plan", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	groups := []*group.EndpointGroup{
		readEndpoint("/users/{userId}", pathnorm.PathParam{Name: "userId", Example: "1"}),
		readEndpoint("/orders/{orderId}", pathnorm.PathParam{Name: "orderId", Example: "7"}),
		readEndpoint("/projects/{projectId}", pathnorm.PathParam{Name: "projectId", Example: "3"}),
		readEndpoint("/billing/plan"),
		// No concrete example: selected but skipped before probing.
		readEndpoint("/teams/{teamId}", pathnorm.PathParam{Name: "teamId"}),
	}

	cfg := DefaultConfig()
	cfg.RequestsPerSec = 1000
	v := New(cfg, testLogger())

	ev := v.Validate(context.Background(), srv.URL, groups, nil)

	if ev.EndpointsTested != 4 {
		t.Errorf("tested = %d, want 4", ev.EndpointsTested)
	}
	if ev.EndpointsVerified != 3 {
		t.Errorf("verified = %d, want 3", ev.EndpointsVerified)
	}
	if ev.EndpointsFailed != 1 {
		t.Errorf("failed = %d, want 1", ev.EndpointsFailed)
	}
	if ev.EndpointsSkipped != 1 {
		t.Errorf("skipped = %d, want 1", ev.EndpointsSkipped)
	}
	if !ev.Passed {
		t.Error("passed = false, want true (3/4 verified)")
	}
	if ev.RunID == "" {
		t.Error("missing run id")
	}
	if len(ev.Results) != 5 {
		t.Errorf("results = %d, want 5", len(ev.Results))
	}
}

func TestValidate_SendsCredentials(t *testing.T) {
	var gotAuth, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	groups := []*group.EndpointGroup{readEndpoint("/me2")}
	cfg := DefaultConfig()
	cfg.RequestsPerSec = 1000
	v := New(cfg, testLogger())

	creds := &Credentials{
		Headers: map[string]string{"Authorization": "Bearer tok_123"},
		Cookies: map[string]string{"session": "s_456"},
	}
	ev := v.Validate(context.Background(), srv.URL, groups, creds)

	if gotAuth != "Bearer tok_123" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotCookie != "s_456" {
		t.Errorf("session cookie = %q", gotCookie)
	}
	if !ev.Passed {
		t.Errorf("evidence = %+v", ev)
	}
}

func TestValidate_BudgetExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	groups := []*group.EndpointGroup{
		readEndpoint("/a/one"),
		readEndpoint("/b/two"),
	}
	cfg := DefaultConfig()
	cfg.TotalBudget = time.Nanosecond
	v := New(cfg, testLogger())

	ev := v.Validate(context.Background(), srv.URL, groups, nil)

	if ev.EndpointsTested != 0 {
		t.Errorf("tested = %d, want 0", ev.EndpointsTested)
	}
	if ev.EndpointsSkipped != 2 {
		t.Errorf("skipped = %d, want 2", ev.EndpointsSkipped)
	}
	if ev.Passed {
		t.Error("passed = true with nothing verified")
	}
}

func TestValidate_NetworkFailureIsEvidence(t *testing.T) {
	// A server that is already gone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.RequestTimeout = 2 * time.Second
	cfg.RequestsPerSec = 1000
	v := New(cfg, testLogger())

	ev := v.Validate(context.Background(), base, []*group.EndpointGroup{readEndpoint("/x/y")}, nil)

	if ev.EndpointsTested != 1 || ev.EndpointsFailed != 1 {
		t.Errorf("tested=%d failed=%d, want 1/1", ev.EndpointsTested, ev.EndpointsFailed)
	}
	if ev.Results[0].StatusCode != 0 || ev.Results[0].OK {
		t.Errorf("result = %+v", ev.Results[0])
	}
	if ev.Results[0].Error == "" {
		t.Error("expected recorded error")
	}
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}
