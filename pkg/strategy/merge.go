package strategy

import "encoding/json"

// MergeMode selects how Composite combines multiple sub-strategy results.
type MergeMode string

const (
	MergeUnion        MergeMode = "union"
	MergeIntersection MergeMode = "intersection"
	MergeSmart        MergeMode = "smart"
)

// subResult pairs one sub-strategy's output with its identity, so merge
// logic can tie-break by declared order and category confidence.
type subResult struct {
	strategy   Strategy
	order      int
	confidence float64
	record     Record
}

// mergeUnion left-to-right fills fields; existing keys are never
// overwritten (SPEC_FULL.md §4.5.a).
func mergeUnion(results []subResult) Record {
	out := Record{}
	for _, r := range results {
		for k, v := range r.record {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

// mergeIntersection keeps only keys present in every result, using the
// first result's value per key.
func mergeIntersection(results []subResult) Record {
	if len(results) == 0 {
		return Record{}
	}
	out := Record{}
	for k, v := range results[0].record {
		inAll := true
		for _, r := range results[1:] {
			if _, ok := r.record[k]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[k] = v
		}
	}
	return out
}

// mergeSmart dict-merges dicts, list-merges lists (de-duplicated, first
// occurrence preserved), and for scalars picks the value from the result
// with the highest confidence, ties broken by declared sub-strategy order
// (SPEC_FULL.md §4.5.a).
func mergeSmart(results []subResult, priority map[string]string) Record {
	out := Record{}
	seenKeys := map[string]bool{}

	// Priority-table keys first, filled from their owning strategy if present.
	for key, owner := range priority {
		for _, r := range results {
			if r.strategy.Name() != owner {
				continue
			}
			if v, ok := r.record[key]; ok {
				out[key] = v
				seenKeys[key] = true
			}
		}
	}

	allKeys := map[string]bool{}
	for _, r := range results {
		for k := range r.record {
			allKeys[k] = true
		}
	}

	for key := range allKeys {
		if seenKeys[key] {
			continue
		}
		out[key] = mergeSmartKey(key, results)
	}

	return out
}

func mergeSmartKey(key string, results []subResult) interface{} {
	var contributors []subResult
	for _, r := range results {
		if _, ok := r.record[key]; ok {
			contributors = append(contributors, r)
		}
	}
	if len(contributors) == 0 {
		return nil
	}
	if len(contributors) == 1 {
		return contributors[0].record[key]
	}

	switch contributors[0].record[key].(type) {
	case map[string]interface{}:
		merged := map[string]interface{}{}
		for _, c := range contributors {
			if dict, ok := c.record[key].(map[string]interface{}); ok {
				for k, v := range dict {
					if _, exists := merged[k]; !exists {
						merged[k] = v
					}
				}
			}
		}
		return merged
	case []interface{}:
		return mergeLists(key, contributors)
	default:
		return pickByConfidence(key, contributors)
	}
}

func mergeLists(key string, contributors []subResult) []interface{} {
	var merged []interface{}
	seen := map[string]bool{}
	for _, c := range contributors {
		list, ok := c.record[key].([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			sig := toComparable(item)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			merged = append(merged, item)
		}
	}
	return merged
}

// toComparable derives a dedup key that distinguishes items by value, not
// just by type: two strings compare by content, but so do two numbers,
// two booleans, and two objects. json.Marshal gives every JSON-compatible
// value (the only values a Record ever holds) a stable textual encoding
// to key on; keys with equal encodings are genuine duplicates.
func toComparable(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// pickByConfidence returns key's value from the contributor with the
// highest classifier confidence, ties broken by declared sub-strategy
// order (first wins).
func pickByConfidence(key string, contributors []subResult) interface{} {
	best := contributors[0]
	for _, c := range contributors[1:] {
		if c.confidence > best.confidence {
			best = c
		}
	}
	return best.record[key]
}
