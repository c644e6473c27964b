// Package filters provides the exclusion filtering applied to discovered
// containers before any digest or registry work happens. Filters are pure
// functions with no side effects; an excluded container incurs zero registry
// traffic.
package filters

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/pkg/types"
)

// NoFilter allows all containers through.
//
// Returns:
//   - bool: Always true.
func NoFilter(_ types.Container) bool {
	return true
}

// ExcludeNames excludes containers whose name exactly matches one of the
// configured names.
//
// Parameters:
//   - names: Container names to exclude (exact match, leading slash ignored).
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - types.Filter: Filter excluding the names and applying the base filter.
func ExcludeNames(names []string, baseFilter types.Filter) types.Filter {
	if len(names) == 0 {
		return baseFilter
	}

	return func(c types.Container) bool {
		for _, name := range names {
			if strings.TrimPrefix(name, "/") == c.Name() {
				logrus.WithFields(logrus.Fields{
					"container": c.Name(),
					"match":     name,
				}).Debug("Container excluded by name")

				return false
			}
		}

		return baseFilter(c)
	}
}

// ExcludeImages excludes containers whose image reference contains any of the
// configured substrings anywhere in the reference string.
//
// Parameters:
//   - substrings: Image reference substrings to exclude.
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - types.Filter: Filter excluding matching images and applying the base filter.
func ExcludeImages(substrings []string, baseFilter types.Filter) types.Filter {
	if len(substrings) == 0 {
		return baseFilter
	}

	return func(c types.Container) bool {
		image := c.ImageName()
		for _, substring := range substrings {
			if substring != "" && strings.Contains(image, substring) {
				logrus.WithFields(logrus.Fields{
					"container": c.Name(),
					"image":     image,
					"match":     substring,
				}).Debug("Container excluded by image substring")

				return false
			}
		}

		return baseFilter(c)
	}
}

// BuildFilter constructs the composite exclusion filter from configuration.
//
// Parameters:
//   - excludeNames: Container names to exclude.
//   - excludeImages: Image reference substrings to exclude.
//
// Returns:
//   - types.Filter: Combined filter function.
//   - string: Human-readable description for the startup message.
func BuildFilter(excludeNames, excludeImages []string) (types.Filter, string) {
	filter := NoFilter
	filter = ExcludeNames(excludeNames, filter)
	filter = ExcludeImages(excludeImages, filter)

	desc := strings.Builder{}
	desc.WriteString("Checking all running containers")

	if len(excludeNames) > 0 {
		desc.WriteString(", excluding names [")
		desc.WriteString(strings.Join(excludeNames, ", "))
		desc.WriteString("]")
	}

	if len(excludeImages) > 0 {
		desc.WriteString(", excluding images matching [")
		desc.WriteString(strings.Join(excludeImages, ", "))
		desc.WriteString("]")
	}

	return filter, desc.String()
}
