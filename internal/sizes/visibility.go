package sizes

import "strings"

// Visible reports whether a step carrying rule is shown for size. Rules are
// space-separated "<size>_hide" / "<size>_show" tokens; steps are shown
// unless the current size is explicitly hidden.
func Visible(rule, size string) bool {
	if rule == "" {
		return true
	}
	for _, tok := range strings.Fields(rule) {
		if tok == size+"_hide" {
			return false
		}
	}
	return true
}

// Filter returns the items visible for size, in order. rule extracts an
// item's visibility rule.
func Filter[T any](items []T, size string, rule func(T) string) []T {
	visible := make([]T, 0, len(items))
	for _, it := range items {
		if Visible(rule(it), size) {
			visible = append(visible, it)
		}
	}
	return visible
}
