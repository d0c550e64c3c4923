package schema

import "sort"

// TypeChange records one field whose type differs between two observations.
type TypeChange struct {
	Path string `json:"path"`
	Was  string `json:"was"`
	Now  string `json:"now"`
}

// DriftResult is the structural diff between a stored field map and a newly
// observed one.
type DriftResult struct {
	Drifted       bool         `json:"drifted"`
	AddedFields   []string     `json:"added_fields"`
	RemovedFields []string     `json:"removed_fields"`
	TypeChanges   []TypeChange `json:"type_changes"`
}

// DetectDrift diffs a stored field map against a new sample value. The new
// sample's schema is inferred here so callers hand over the raw decoded body.
func DetectDrift(existing map[string]string, newSample any) DriftResult {
	return DiffFieldMaps(existing, Infer(newSample).Fields)
}

// DiffFieldMaps computes set differences between two field-path maps. Output
// lists are sorted so the result is deterministic.
func DiffFieldMaps(old, fresh map[string]string) DriftResult {
	var res DriftResult
	for path, newType := range fresh {
		oldType, ok := old[path]
		switch {
		case !ok:
			res.AddedFields = append(res.AddedFields, path)
		case oldType != newType:
			res.TypeChanges = append(res.TypeChanges, TypeChange{Path: path, Was: oldType, Now: newType})
		}
	}
	for path := range old {
		if _, ok := fresh[path]; !ok {
			res.RemovedFields = append(res.RemovedFields, path)
		}
	}

	sort.Strings(res.AddedFields)
	sort.Strings(res.RemovedFields)
	sort.Slice(res.TypeChanges, func(i, j int) bool {
		return res.TypeChanges[i].Path < res.TypeChanges[j].Path
	})

	res.Drifted = len(res.AddedFields) > 0 || len(res.RemovedFields) > 0 || len(res.TypeChanges) > 0
	return res
}
