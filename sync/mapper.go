package sync

import (
	"fmt"
	"slices"
)

// Mapping is the static property mapping table between the two portals.
// Properties lists what is fetched from the source; Renames maps source
// names to destination names where they differ; Skip lists source
// properties absent from the destination schema; Safe is the reduced
// fallback set assumed valid in any destination schema (empty disables
// the fallback); Transforms maps destination names to value transforms.
type Mapping struct {
	Properties []string
	Renames    map[string]string
	Skip       []string
	Safe       []string
	Transforms map[string]string
}

// Validate checks the mapping table invariants:
// the skip list and rename keys are disjoint, and rename targets must not
// collide with source properties that pass through unmapped.
func (m Mapping) Validate() error {
	for _, skipped := range m.Skip {
		if _, exists := m.Renames[skipped]; exists {
			return fmt.Errorf("property %q is both skipped and renamed", skipped)
		}
	}
	for source, target := range m.Renames {
		for _, p := range m.Properties {
			if p != target {
				continue
			}
			if _, renamed := m.Renames[p]; renamed {
				continue
			}
			if slices.Contains(m.Skip, p) {
				continue
			}
			return fmt.Errorf("rename target %q (from %q) collides with source property %q", target, source, p)
		}
	}
	for name := range m.Transforms {
		if _, err := parseTransform(m.Transforms[name]); err != nil {
			return fmt.Errorf("invalid transform for %q: %w", name, err)
		}
	}
	return nil
}

// MapProperties translates a source property set into a destination
// property set. Pure - deterministic, no side effects, no network access.
//
//   - properties with empty values are dropped
//   - properties on the skip list are dropped
//   - properties in the rename table take their destination name
//   - configured transforms are applied to the (renamed) values
func (m Mapping) MapProperties(source map[string]string) map[string]string {
	result := make(map[string]string)
	for sourceKey, value := range source {
		if value == "" {
			continue
		}
		if slices.Contains(m.Skip, sourceKey) {
			continue
		}
		destKey := sourceKey
		if renamed, exists := m.Renames[sourceKey]; exists {
			destKey = renamed
		}
		if transform, exists := m.Transforms[destKey]; exists {
			value = ApplyTransform(transform, value)
			if value == "" {
				continue
			}
		}
		result[destKey] = value
	}
	return result
}

// SafeSubset reduces a mapped property set to the configured safe list.
func (m Mapping) SafeSubset(properties map[string]string) map[string]string {
	result := make(map[string]string)
	for k, v := range properties {
		if slices.Contains(m.Safe, k) {
			result[k] = v
		}
	}
	return result
}
