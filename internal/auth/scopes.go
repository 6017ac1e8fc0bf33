package auth

import "strings"

// SplitScopes splits a space-delimited scope string.
func SplitScopes(s string) []string {
	return strings.Fields(s)
}

// CombineScopes returns the ordered-unique union of every scope in lists.
// Each element may itself be space-delimited; first-seen order wins.
func CombineScopes(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, item := range list {
			for _, scope := range SplitScopes(item) {
				if _, ok := seen[scope]; ok {
					continue
				}
				seen[scope] = struct{}{}
				out = append(out, scope)
			}
		}
	}
	return out
}
