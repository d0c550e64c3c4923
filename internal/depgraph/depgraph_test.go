package depgraph

import (
	"testing"
	"time"

	"github.com/traceforge/traceforge/internal/trace"
)

func TestCorrelate_ValueFlow(t *testing.T) {
	exchanges := []trace.Exchange{
		{
			Method:       "POST",
			Path:         "/v1/projects",
			ResponseBody: `{"project":{"id":"p_123"}}`,
		},
		{
			Method: "GET",
			Path:   "/v1/projects/p_123",
		},
		{
			Method:      "POST",
			Path:        "/v1/tasks",
			RequestBody: `{"projectId":"p_123"}`,
		},
	}

	dag := Correlate(exchanges)

	edge := findEdge(dag, "POST /v1/projects", "POST /v1/tasks")
	if edge == nil {
		t.Fatalf("missing edge POST /v1/projects -> POST /v1/tasks, got %s", dag)
	}
	if !edge.HasValueMatch {
		t.Error("hasValueMatch = false")
	}
	if edge.Confidence <= 0.6 {
		t.Errorf("confidence = %v, want > 0.6", edge.Confidence)
	}
	if edge.ProducedField != "project.id" {
		t.Errorf("producedField = %q", edge.ProducedField)
	}
	if edge.ConsumedAt != "body:projectId" {
		t.Errorf("consumedAt = %q", edge.ConsumedAt)
	}
}

func TestCorrelate_NoSelfEdges(t *testing.T) {
	exchanges := []trace.Exchange{
		{Method: "GET", Path: "/v1/me", ResponseBody: `{"id":"user_42","email":"a@b.com"}`},
		{Method: "GET", Path: "/v1/me", ResponseBody: `{"id":"user_42","email":"a@b.com"}`},
	}

	dag := Correlate(exchanges)
	if len(dag.Edges) != 0 {
		t.Errorf("identical repeated calls produced edges: %s", dag)
	}
}

func TestCorrelate_DirectionFollowsCaptureOrder(t *testing.T) {
	// The consumer appears before the producer; no edge may point backward.
	exchanges := []trace.Exchange{
		{Method: "POST", Path: "/v1/tasks", RequestBody: `{"projectId":"p_999x"}`},
		{Method: "POST", Path: "/v1/projects", ResponseBody: `{"id":"p_999x"}`},
	}

	dag := Correlate(exchanges)
	if len(dag.Edges) != 0 {
		t.Errorf("got backward edge: %s", dag)
	}
}

func TestCorrelate_TimestampOrdering(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	// Input order is reversed relative to capture time.
	exchanges := []trace.Exchange{
		{
			Method:      "POST",
			Path:        "/v1/tasks",
			RequestBody: `{"projectId":"p_555y"}`,
			Timestamp:   base.Add(time.Minute),
		},
		{
			Method:       "POST",
			Path:         "/v1/projects",
			ResponseBody: `{"id":"p_555y"}`,
			Timestamp:    base,
		},
	}

	dag := Correlate(exchanges)
	if findEdge(dag, "POST /v1/projects", "POST /v1/tasks") == nil {
		t.Errorf("timestamp ordering not honored: %s", dag)
	}
}

func TestCorrelate_PartialTimestampsKeepInputOrder(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	// One exchange lacks a timestamp, so capture time cannot order the
	// trace; input order governs and the producer still precedes the
	// consumer despite its later timestamp.
	exchanges := []trace.Exchange{
		{
			Method:       "POST",
			Path:         "/v1/projects",
			ResponseBody: `{"id":"p_777z"}`,
			Timestamp:    base.Add(time.Minute),
		},
		{
			Method: "GET",
			Path:   "/v1/me",
		},
		{
			Method:      "POST",
			Path:        "/v1/tasks",
			RequestBody: `{"projectId":"p_777z"}`,
			Timestamp:   base,
		},
	}

	dag := Correlate(exchanges)
	if findEdge(dag, "POST /v1/projects", "POST /v1/tasks") == nil {
		t.Errorf("input order not honored: %s", dag)
	}
	if findEdge(dag, "POST /v1/tasks", "POST /v1/projects") != nil {
		t.Errorf("got backward edge: %s", dag)
	}
}

func TestCorrelate_WeakValuesDropped(t *testing.T) {
	// A short numeric id is too generic to clear the confidence floor on a
	// single supporting pair.
	exchanges := []trace.Exchange{
		{Method: "GET", Path: "/v1/counters", ResponseBody: `{"count":123}`},
		{Method: "POST", Path: "/v1/orders", RequestBody: `{"quantity":123}`},
	}

	dag := Correlate(exchanges)
	if len(dag.Edges) != 0 {
		t.Errorf("weak match survived: %s", dag)
	}
}

func TestCorrelate_StopValuesIgnored(t *testing.T) {
	exchanges := []trace.Exchange{
		{Method: "GET", Path: "/v1/jobs", ResponseBody: `{"status":"pending"}`},
		{Method: "POST", Path: "/v1/reports", RequestBody: `{"state":"pending"}`},
	}

	dag := Correlate(exchanges)
	if len(dag.Edges) != 0 {
		t.Errorf("stop value produced an edge: %s", dag)
	}
}

func TestCorrelate_SupportStrengthensEdge(t *testing.T) {
	exchanges := []trace.Exchange{
		{Method: "POST", Path: "/v1/projects", ResponseBody: `{"id":"p_1a","token":"tok_abcdef123456"}`},
		{Method: "POST", Path: "/v1/tasks", RequestBody: `{"projectId":"p_1a","auth":"tok_abcdef123456"}`},
	}

	dag := Correlate(exchanges)
	edge := findEdge(dag, "POST /v1/projects", "POST /v1/tasks")
	if edge == nil {
		t.Fatalf("missing edge: %s", dag)
	}
	if edge.SupportCount != 2 {
		t.Errorf("supportCount = %d, want 2", edge.SupportCount)
	}
	// Two matches, one of them long: 0.4 + 0.3 + 0.1/3.
	if edge.Confidence <= 0.7 {
		t.Errorf("confidence = %v, want > 0.7", edge.Confidence)
	}
	if edge.SampleValue != "tok_abcdef123456" {
		t.Errorf("sampleValue = %q, want most specific match", edge.SampleValue)
	}
}

func TestCorrelate_Empty(t *testing.T) {
	dag := Correlate(nil)
	if len(dag.Edges) != 0 {
		t.Errorf("edges from empty input: %s", dag)
	}
	if dag.String() != "no dependencies" {
		t.Errorf("String() = %q", dag.String())
	}
}

func findEdge(dag *DAG, from, to string) *Edge {
	for i := range dag.Edges {
		if dag.Edges[i].From == from && dag.Edges[i].To == to {
			return &dag.Edges[i]
		}
	}
	return nil
}
