// Package strings has small string-slice helpers shared by config parsing.
package strings

import "strings"

// DedupeAndTrim trims whitespace, drops empties and duplicates, and keeps
// first-seen order.
func DedupeAndTrim(values []string) []string {
	return normalize(values, false)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, for values compared
// case-insensitively.
func DedupeAndTrimLower(values []string) []string {
	return normalize(values, true)
}

func normalize(values []string, fold bool) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
