// Package ir provides the internal representation of values exchanged with
// sonic devices.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the IR the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed; the field type tag is derived from the value, never stored
//   - IRObject has a fixed capacity and is immutable once constructed
//   - Lookups return errors, they never panic on a missing field or wrong type
//   - Canonical JSON uses RFC 8785 key ordering for content-addressed ids
package ir
