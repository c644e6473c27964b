// Package util provides small collection helpers used when deriving create
// configurations from inspected container state.
package util

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// SliceEqual reports whether two string slices are equal element-wise.
func SliceEqual(a, b []string) bool {
	return slices.Equal(a, b)
}

// SliceSubtract returns the elements of slice that are not present in toRemove.
// The input slices are not modified.
func SliceSubtract(slice, toRemove []string) []string {
	var result []string

	for _, element := range slice {
		if !slices.Contains(toRemove, element) {
			result = append(result, element)
		}
	}

	return result
}

// StringMapSubtract returns the entries of m whose key is absent from
// toRemove or mapped to a different value there.
func StringMapSubtract(m, toRemove map[string]string) map[string]string {
	result := map[string]string{}

	for key, value := range m {
		if other, found := toRemove[key]; !found || other != value {
			result[key] = value
		}
	}

	return result
}

// FormatDuration renders a duration as "N hours, M minutes, S seconds",
// omitting leading zero units. A zero duration renders as "0 seconds".
func FormatDuration(duration time.Duration) string {
	units := []struct {
		value    int64
		singular string
	}{
		{int64(duration.Hours()), "hour"},
		{int64(math.Mod(duration.Minutes(), 60)), "minute"},
		{int64(math.Mod(duration.Seconds(), 60)), "second"},
	}

	var parts []string

	for _, unit := range units {
		if unit.value == 0 && len(parts) == 0 {
			continue
		}

		name := unit.singular
		if unit.value != 1 {
			name += "s"
		}

		parts = append(parts, fmt.Sprintf("%d %s", unit.value, name))
	}

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, ", ")
}

// StructMapSubtract returns the entries of m whose key is absent from toRemove.
func StructMapSubtract(m, toRemove map[string]struct{}) map[string]struct{} {
	result := map[string]struct{}{}

	for key, value := range m {
		if _, found := toRemove[key]; !found {
			result[key] = value
		}
	}

	return result
}
