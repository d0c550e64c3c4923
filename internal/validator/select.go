package validator

import (
	"sort"
	"strings"

	"github.com/traceforge/traceforge/internal/group"
)

// Select picks up to max read-only endpoints, spread across path buckets so
// the probe set is topically diverse instead of ten variants of one
// resource. Auth endpoints are never probed.
func Select(groups []*group.EndpointGroup, max int) []*group.EndpointGroup {
	buckets := make(map[string][]*group.EndpointGroup)
	var bucketKeys []string

	for _, g := range groups {
		if !strings.EqualFold(g.Method, "GET") {
			continue
		}
		if g.Category == group.CategoryAuth {
			continue
		}
		key := bucketKey(g.Path)
		if _, ok := buckets[key]; !ok {
			bucketKeys = append(bucketKeys, key)
		}
		buckets[key] = append(buckets[key], g)
	}
	sort.Strings(bucketKeys)
	for _, key := range bucketKeys {
		sort.Slice(buckets[key], func(i, j int) bool {
			return buckets[key][i].Path < buckets[key][j].Path
		})
	}

	// Round-robin: one endpoint per bucket per pass.
	var selected []*group.EndpointGroup
	for round := 0; len(selected) < max; round++ {
		took := false
		for _, key := range bucketKeys {
			bucket := buckets[key]
			if round >= len(bucket) {
				continue
			}
			selected = append(selected, bucket[round])
			took = true
			if len(selected) == max {
				break
			}
		}
		if !took {
			break
		}
	}
	return selected
}

// bucketKey is the first two path segments, placeholders included.
func bucketKey(path string) string {
	segments := make([]string, 0, 2)
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
		if len(segments) == 2 {
			break
		}
	}
	return strings.Join(segments, "/")
}
