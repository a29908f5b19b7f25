// Package claims extracts group lists from identity-provider claims payloads.
package claims

import "strings"

const pathSeparator = "/"

// Extract walks the claims payload along the dot-delimited claimPath and
// returns the group list found at its end. A missing segment or an empty
// payload is a normal, silent case and yields an empty list, never an error.
//
// The terminal value may be a list of strings or a single string; non-string
// list members are skipped.
func Extract(claimPath string, payload map[string]any) []string {
	if claimPath == "" || len(payload) == 0 {
		return nil
	}

	segments := strings.Split(claimPath, ".")

	var current any = payload

	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	switch v := current.(type) {
	case []string:
		return v
	case []any:
		groups := make([]string, 0, len(v))

		for _, g := range v {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			}
		}

		return groups
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Split normalizes hierarchical group paths into individual segments.
// Each group is trimmed of leading and trailing path separators, split on
// "/" and truncated to the first maxLevel segments (0 keeps all segments).
// The segments of all groups are accumulated and deduplicated preserving
// first-seen order, so rules can match either a full path or any level of it.
func Split(groups []string, maxLevel int) []string {
	var (
		result []string
		seen   = make(map[string]struct{})
	)

	for _, group := range groups {
		trimmed := strings.Trim(group, pathSeparator)
		if trimmed == "" {
			continue
		}

		segments := strings.Split(trimmed, pathSeparator)
		if maxLevel > 0 && len(segments) > maxLevel {
			segments = segments[:maxLevel]
		}

		for _, segment := range segments {
			if _, ok := seen[segment]; ok {
				continue
			}

			seen[segment] = struct{}{}
			result = append(result, segment)
		}
	}

	return result
}
