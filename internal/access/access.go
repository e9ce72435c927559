// Package access decides which data categories an access level may read.
// Everything here is pure; callers evaluate it before touching the dataset.
package access

import (
	"sort"
	"strings"

	"irisapi/internal/model"
)

// CanAccess reports whether accessLevel may read the requested category.
func CanAccess(accessLevel, requested string) bool {
	if accessLevel == model.AccessAll {
		return true
	}
	return strings.EqualFold(accessLevel, requested)
}

// IsAdmin reports whether accessLevel is the administrative wildcard.
func IsAdmin(accessLevel string) bool {
	return accessLevel == model.AccessAll
}

// AccessibleCategories lists the categories accessLevel may read: every known
// category for the wildcard, otherwise only the caller's own.
func AccessibleCategories(accessLevel string, known []string) []string {
	if IsAdmin(accessLevel) {
		out := append([]string(nil), known...)
		sort.Strings(out)
		return out
	}
	return []string{accessLevel}
}

// Filter keeps the categories accessLevel may read, preserving order.
func Filter(accessLevel string, categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, category := range categories {
		if CanAccess(accessLevel, category) {
			out = append(out, category)
		}
	}
	return out
}
