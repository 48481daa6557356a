package guard

import (
	"fmt"
	"reflect"
	"sort"
)

// Diff computes the changed-field list between a prior and new snapshot.
// A nil prior marks a create, where every provided field counts as changed.
// Values compare by deep equality, with a formatted-string fallback so mixed
// numeric widths from store scans do not produce phantom diffs.
func Diff(prior, next map[string]any) []string {
	var changed []string
	if prior == nil {
		for field := range next {
			changed = append(changed, field)
		}
		sort.Strings(changed)
		return changed
	}
	for field, newVal := range next {
		oldVal, ok := prior[field]
		if !ok {
			changed = append(changed, field)
			continue
		}
		if !equal(oldVal, newVal) {
			changed = append(changed, field)
		}
	}
	for field := range prior {
		if _, ok := next[field]; !ok {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)
	return changed
}

func equal(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
