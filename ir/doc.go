// Package ir provides the value types shared by every tally package.
//
// State, actions and journal records are all expressed as IRValue trees.
// The package imports nothing else from tally, which keeps it the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - A nil IRValue means "absent" (no value at all); IRNull is an explicit null
//   - NO float types anywhere - use int64 for numbers
//   - Object keys are ordered by RFC 8785 (UTF-16 code units) whenever order matters
//   - Maps and slices are compared by identity (see Same), scalars by value
package ir
