package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nestful/nestful/pkg/store"
)

// ErrConfiguration marks a defect in how a resource is wired rather
// than a per-request outcome. Configuration errors are never converted
// into taxonomy responses; they propagate to the route boundary and
// surface as a 500.
var ErrConfiguration = errors.New("resource configuration error")

// IsConfiguration reports whether err is a configuration defect.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConfiguration)...)
}

// notFoundf wraps store.ErrNotFound with lookup context.
func notFoundf(name string, filters store.Filters) error {
	return fmt.Errorf("no %s matched %s: %w", name, describeFilters(filters), store.ErrNotFound)
}

// multipleFoundf wraps store.ErrMultipleObjects with lookup context.
func multipleFoundf(name string, filters store.Filters) error {
	return fmt.Errorf("more than one %s matched %s: %w", name, describeFilters(filters), store.ErrMultipleObjects)
}

// describeFilters renders filters deterministically for error messages.
func describeFilters(filters store.Filters) string {
	if len(filters) == 0 {
		return "(no filters)"
	}
	parts := make([]string, 0, len(filters))
	for key, value := range filters {
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
