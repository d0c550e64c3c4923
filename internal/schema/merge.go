package schema

// TypeMixed marks a field whose type disagrees across independent samples.
// Downstream consumers treat it as a signal of genuine polymorphism.
const TypeMixed = "mixed"

// MergeFieldMaps unions field-path maps from independently observed samples.
// A path present in several maps with conflicting types becomes TypeMixed
// rather than arbitrarily picking one sample's type.
func MergeFieldMaps(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for path, typ := range m {
			existing, seen := merged[path]
			switch {
			case !seen:
				merged[path] = typ
			case existing != typ:
				merged[path] = TypeMixed
			}
		}
	}
	return merged
}
