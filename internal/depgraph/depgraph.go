// Package depgraph infers directed dependency edges between endpoints by
// matching identifier values that appear in one endpoint's response and
// reappear in a later endpoint's request.
package depgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/traceforge/traceforge/internal/pathnorm"
	"github.com/traceforge/traceforge/internal/trace"
)

const (
	// minConfidence drops weak edges from the output entirely.
	minConfidence = 0.5
	// maxValuesPerExchange bounds how many candidate values one response
	// contributes.
	maxValuesPerExchange = 100
	minValueLen          = 3
	maxValueLen          = 128
)

// Edge is one inferred dependency: a value produced by From was consumed
// by To in a later exchange.
type Edge struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	HasValueMatch bool    `json:"hasValueMatch"`
	Confidence    float64 `json:"confidence"`
	SupportCount  int     `json:"supportCount"`
	ProducedField string  `json:"producedField,omitempty"`
	ConsumedAt    string  `json:"consumedAt,omitempty"`
	SampleValue   string  `json:"sampleValue,omitempty"`
}

// DAG is the set of surviving dependency edges, sorted by (from, to).
type DAG struct {
	Edges []Edge `json:"edges"`
}

// stopValues are scalar values too generic to indicate a dependency.
var stopValues = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "none": {}, "ok": {},
	"success": {}, "error": {}, "active": {}, "inactive": {},
	"enabled": {}, "disabled": {}, "pending": {}, "unknown": {},
	"asc": {}, "desc": {}, "get": {}, "post": {},
}

// observation is one exchange prepared for pairwise matching.
type observation struct {
	key string
	// produced maps response scalar values to their field path.
	produced map[string]string
	// consumed maps request scalar values to where they appeared.
	consumed map[string]string
	filter   *bloom.BloomFilter
}

// Correlate scans exchange pairs in capture order and builds the dependency
// DAG. Absence of matches is the normal case and yields an empty DAG.
func Correlate(exchanges []trace.Exchange) *DAG {
	ordered := make([]*trace.Exchange, len(exchanges))
	allTimed := len(exchanges) > 0
	for i := range exchanges {
		ordered[i] = &exchanges[i]
		if exchanges[i].Timestamp.IsZero() {
			allTimed = false
		}
	}
	// Capture time is authoritative only when every exchange carries a
	// timestamp; a partially timestamped capture falls back to input order.
	if allTimed {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		})
	}

	obs := make([]observation, len(ordered))
	for i, ex := range ordered {
		obs[i] = prepare(ex)
	}

	type edgeAgg struct {
		support  int
		bestSpec float64
		produced string
		consumed string
		sample   string
	}
	agg := make(map[string]*edgeAgg)

	for i := range obs {
		if len(obs[i].produced) == 0 {
			continue
		}
		for j := i + 1; j < len(obs); j++ {
			if obs[i].key == obs[j].key {
				continue
			}
			for value, field := range obs[i].produced {
				// Bloom pre-screen avoids the map lookup for the
				// common no-match case.
				if !obs[j].filter.TestString(value) {
					continue
				}
				where, ok := obs[j].consumed[value]
				if !ok {
					continue
				}
				id := obs[i].key + "\x00" + obs[j].key
				e, seen := agg[id]
				if !seen {
					e = &edgeAgg{}
					agg[id] = e
				}
				e.support++
				if s := specificity(value); s > e.bestSpec {
					e.bestSpec = s
					e.produced = field
					e.consumed = where
					e.sample = value
				}
			}
		}
	}

	dag := &DAG{}
	for id, e := range agg {
		from, to, _ := strings.Cut(id, "\x00")
		conf := confidence(e.support, e.bestSpec)
		if conf < minConfidence {
			continue
		}
		dag.Edges = append(dag.Edges, Edge{
			From:          from,
			To:            to,
			HasValueMatch: true,
			Confidence:    conf,
			SupportCount:  e.support,
			ProducedField: e.produced,
			ConsumedAt:    e.consumed,
			SampleValue:   e.sample,
		})
	}
	sort.Slice(dag.Edges, func(i, j int) bool {
		if dag.Edges[i].From != dag.Edges[j].From {
			return dag.Edges[i].From < dag.Edges[j].From
		}
		return dag.Edges[i].To < dag.Edges[j].To
	})
	return dag
}

// confidence combines the exact-match base weight, the specificity of the
// best matched value, and how many independent pairs support the edge.
func confidence(support int, specificity float64) float64 {
	conf := 0.4 + 0.3*specificity
	extra := support - 1
	if extra > 3 {
		extra = 3
	}
	conf += 0.1 * float64(extra) / 3
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// specificity scores how unlikely a value is to collide by accident.
func specificity(value string) float64 {
	switch {
	case len(value) >= 12:
		return 1.0
	case !isAllDigits(value):
		return 0.8
	case len(value) >= 6:
		return 0.5
	default:
		return 0.2
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func prepare(ex *trace.Exchange) observation {
	normalized, _ := pathnorm.Normalize(ex.Path)
	o := observation{
		key:      strings.ToUpper(ex.Method) + " " + normalized,
		produced: make(map[string]string),
		consumed: make(map[string]string),
	}

	collectBodyValues(ex.ResponseBody, o.produced, "")

	for _, seg := range strings.Split(ex.Path, "/") {
		if usable(seg) {
			o.consumed[seg] = "path"
		}
	}
	for name, values := range ex.Query {
		for _, v := range values {
			if usable(v) {
				o.consumed[v] = "query:" + name
			}
		}
	}
	bodyConsumed := make(map[string]string)
	collectBodyValues(ex.RequestBody, bodyConsumed, "")
	for v, p := range bodyConsumed {
		o.consumed[v] = "body:" + p
	}

	o.filter = bloom.NewWithEstimates(uint(len(o.consumed)+1), 0.01)
	for v := range o.consumed {
		o.filter.AddString(v)
	}
	return o
}

// collectBodyValues walks a JSON body and records scalar values with their
// field paths. Non-JSON bodies contribute nothing.
func collectBodyValues(body string, out map[string]string, prefix string) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return
	}
	walkValues(v, prefix, out)
}

func walkValues(v any, path string, out map[string]string) {
	if len(out) >= maxValuesPerExchange {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			walkValues(child, childPath, out)
		}
	case []any:
		for _, child := range val {
			walkValues(child, path+"[]", out)
		}
	case string:
		if usable(val) {
			out[val] = path
		}
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if usable(s) {
			out[s] = path
		}
	case json.Number:
		if s := val.String(); usable(s) {
			out[s] = path
		}
	}
}

// usable filters out values too short, too long, or too generic to carry a
// dependency signal.
func usable(v string) bool {
	if len(v) < minValueLen || len(v) > maxValueLen {
		return false
	}
	if _, stop := stopValues[strings.ToLower(v)]; stop {
		return false
	}
	return true
}

// String renders the DAG for logs and reports.
func (d *DAG) String() string {
	if len(d.Edges) == 0 {
		return "no dependencies"
	}
	parts := make([]string, len(d.Edges))
	for i, e := range d.Edges {
		parts[i] = fmt.Sprintf("%s -> %s (%.2f)", e.From, e.To, e.Confidence)
	}
	return strings.Join(parts, "; ")
}
