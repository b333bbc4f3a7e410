// Package tags handles the comma-separated tag strings stored on image
// records: parsing, serialization, and the reconciliation performed when a
// record is re-analyzed.
package tags

import "strings"

// Split parses a stored tag string into its ordered tag sequence. Empty
// entries and surrounding whitespace are dropped; insertion order is the
// display order and is preserved.
func Split(tagString string) []string {
	parts := strings.Split(tagString, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		result = append(result, tag)
	}
	return result
}

// Join serializes a tag sequence back into the stored string form
func Join(tagList []string) string {
	return strings.Join(tagList, ", ")
}

func contains(set map[string]bool, tag string) bool {
	return set[tag]
}

func toSet(tagList []string) map[string]bool {
	set := make(map[string]bool, len(tagList))
	for _, t := range tagList {
		set[t] = true
	}
	return set
}

// Reconcile merges the reviewer's kept tags with a fresh analysis result.
//
// The result starts with the kept tags in their original relative order.
// A fresh tag is then appended when it has not been emitted yet and is
// either new (absent from the original tag set) or among the kept tags.
// A tag that existed before, was not kept, and reappears in the fresh
// result stays out: the reviewer already rejected it once, and re-analysis
// must not resurrect it.
func Reconcile(original, kept, fresh []string) []string {
	originalSet := toSet(original)
	keptSet := toSet(kept)

	result := make([]string, 0, len(kept)+len(fresh))
	emitted := make(map[string]bool, len(kept)+len(fresh))

	for _, tag := range original {
		if contains(keptSet, tag) && !emitted[tag] {
			result = append(result, tag)
			emitted[tag] = true
		}
	}

	for _, tag := range fresh {
		if emitted[tag] {
			continue
		}
		if contains(originalSet, tag) && !contains(keptSet, tag) {
			continue
		}
		result = append(result, tag)
		emitted[tag] = true
	}

	return result
}
