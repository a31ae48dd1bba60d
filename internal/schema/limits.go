package schema

import (
	"fmt"
	"slices"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Limits is the closed set of constraint variants a field type can carry.
// Each variant fixes its element type, so a limits value can only be paired
// with the data types it describes.
type Limits interface {
	limits() // Sealed - only FieldLimits[T] and VersionLimits implement it

	// fits reports whether the variant describes values of type dt.
	fits(dt ir.DataType) bool

	// check validates v, which already has a fitting data type.
	check(v ir.IRValue) error

	// wellFormed reports contradictory bounds.
	wellFormed() error

	clone() Limits
}

// Bound is the set of element types FieldLimits can constrain. Enum members
// are constrained through their int32 wire value.
type Bound interface {
	uint8 | uint16 | uint32 | float32 | string | int32
}

// FieldLimits constrains values of element type T. Each present constraint
// is checked independently: a value must lie within [Min, Max] and, when
// Allowed is non-empty, be one of Allowed.
type FieldLimits[T Bound] struct {
	Min     *T
	Max     *T
	Allowed []T
}

func (FieldLimits[T]) limits() {}

// Range returns limits with both bounds set, inclusive.
func Range[T Bound](lo, hi T) FieldLimits[T] {
	return FieldLimits[T]{Min: &lo, Max: &hi}
}

// AtLeast returns limits with only a lower bound.
func AtLeast[T Bound](lo T) FieldLimits[T] {
	return FieldLimits[T]{Min: &lo}
}

// AtMost returns limits with only an upper bound.
func AtMost[T Bound](hi T) FieldLimits[T] {
	return FieldLimits[T]{Max: &hi}
}

// OneOf returns limits admitting only the listed values.
func OneOf[T Bound](vals ...T) FieldLimits[T] {
	return FieldLimits[T]{Allowed: slices.Clone(vals)}
}

// Check validates a native value against the limits. A NaN float fails
// whenever any constraint is present.
func (l FieldLimits[T]) Check(v T) error {
	if isNaN(v) && (l.Min != nil || l.Max != nil || len(l.Allowed) > 0) {
		return fmt.Errorf("value is NaN")
	}
	if l.Min != nil && v < *l.Min {
		return fmt.Errorf("%v is below minimum %v", v, *l.Min)
	}
	if l.Max != nil && v > *l.Max {
		return fmt.Errorf("%v is above maximum %v", v, *l.Max)
	}
	if len(l.Allowed) > 0 && !slices.Contains(l.Allowed, v) {
		return fmt.Errorf("%v is not one of %v", v, l.Allowed)
	}
	return nil
}

func (l FieldLimits[T]) wellFormed() error {
	for _, p := range []*T{l.Min, l.Max} {
		if p != nil && isNaN(*p) {
			return fmt.Errorf("NaN bound")
		}
	}
	if l.Min != nil && l.Max != nil && *l.Min > *l.Max {
		return fmt.Errorf("minimum %v exceeds maximum %v", *l.Min, *l.Max)
	}
	for _, a := range l.Allowed {
		if err := (FieldLimits[T]{Min: l.Min, Max: l.Max}).Check(a); err != nil {
			return fmt.Errorf("allowed value: %w", err)
		}
	}
	return nil
}

func (l FieldLimits[T]) clone() Limits {
	return FieldLimits[T]{Min: clonePtr(l.Min), Max: clonePtr(l.Max), Allowed: slices.Clone(l.Allowed)}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// isNaN reports whether v is a float NaN, the only value unequal to itself.
func isNaN[T Bound](v T) bool {
	return v != v
}

func (l FieldLimits[T]) fits(dt ir.DataType) bool {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return dt == ir.TypeUint8
	case uint16:
		return dt == ir.TypeUint16
	case uint32:
		return dt == ir.TypeUint32
	case float32:
		return dt == ir.TypeFloat
	case string:
		return dt == ir.TypeString
	case int32:
		return dt.IsEnum()
	default:
		return false
	}
}

func (l FieldLimits[T]) check(v ir.IRValue) error {
	var native any
	switch val := v.(type) {
	case ir.IRUint8:
		native = uint8(val)
	case ir.IRUint16:
		native = uint16(val)
	case ir.IRUint32:
		native = uint32(val)
	case ir.IRFloat:
		native = float32(val)
	case ir.IRString:
		native = string(val)
	case ir.IRMessageRef:
		native = string(val)
	case ir.IREnum:
		native = val.Member
	}
	t, ok := native.(T)
	if !ok {
		return fmt.Errorf("limits do not apply to %s", v.DataType())
	}
	return l.Check(t)
}

// VersionLimits constrains version values. Ordering follows ir.Version.Compare.
type VersionLimits struct {
	Min     *ir.Version
	Max     *ir.Version
	Allowed []ir.Version
}

func (VersionLimits) limits() {}

func (VersionLimits) fits(dt ir.DataType) bool { return dt == ir.TypeVersion }

// Check validates a version against the limits.
func (l VersionLimits) Check(v ir.Version) error {
	if l.Min != nil && v.Compare(*l.Min) < 0 {
		return fmt.Errorf("%s is below minimum %s", v, *l.Min)
	}
	if l.Max != nil && v.Compare(*l.Max) > 0 {
		return fmt.Errorf("%s is above maximum %s", v, *l.Max)
	}
	if len(l.Allowed) > 0 && !slices.Contains(l.Allowed, v) {
		return fmt.Errorf("%s is not an allowed version", v)
	}
	return nil
}

func (l VersionLimits) check(v ir.IRValue) error {
	ver, err := ir.As[ir.Version](v)
	if err != nil {
		return err
	}
	return l.Check(ver)
}

func (l VersionLimits) clone() Limits {
	return VersionLimits{Min: clonePtr(l.Min), Max: clonePtr(l.Max), Allowed: slices.Clone(l.Allowed)}
}

func (l VersionLimits) wellFormed() error {
	if l.Min != nil && l.Max != nil && l.Min.Compare(*l.Max) > 0 {
		return fmt.Errorf("minimum %s exceeds maximum %s", *l.Min, *l.Max)
	}
	for _, a := range l.Allowed {
		if err := (VersionLimits{Min: l.Min, Max: l.Max}).Check(a); err != nil {
			return fmt.Errorf("allowed value: %w", err)
		}
	}
	return nil
}

// describeLimits renders limits for diagnostics.
func describeLimits(l Limits) string {
	switch lim := l.(type) {
	case nil:
		return ""
	case VersionLimits:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[uint8]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[uint16]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[uint32]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[float32]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[string]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	case FieldLimits[int32]:
		return describeBounds(lim.Min, lim.Max, lim.Allowed)
	default:
		return fmt.Sprintf("%T", l)
	}
}

func describeBounds[T any](lo, hi *T, allowed []T) string {
	var s string
	switch {
	case lo != nil && hi != nil:
		s = fmt.Sprintf("[%v, %v]", *lo, *hi)
	case lo != nil:
		s = fmt.Sprintf(">= %v", *lo)
	case hi != nil:
		s = fmt.Sprintf("<= %v", *hi)
	}
	if len(allowed) > 0 {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("in %v", allowed)
	}
	return s
}
