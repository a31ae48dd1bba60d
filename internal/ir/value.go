package ir

import (
	"fmt"
)

// MaxMessageLen bounds the byte length of an IRMessageRef.
const MaxMessageLen = 4096

// IRValue is a sealed interface over the value variants a field may carry.
// Only the IR* types in this package implement it. The data type of a field
// is always derived from its value through DataType.
type IRValue interface {
	irValue() // Sealed - only these types implement it
	DataType() DataType
}

// IRUint8 is an 8-bit unsigned integer value.
type IRUint8 uint8

func (IRUint8) irValue()           {}
func (IRUint8) DataType() DataType { return TypeUint8 }

// IRUint16 is a 16-bit unsigned integer value.
type IRUint16 uint16

func (IRUint16) irValue()           {}
func (IRUint16) DataType() DataType { return TypeUint16 }

// IRUint32 is a 32-bit unsigned integer value.
type IRUint32 uint32

func (IRUint32) irValue()           {}
func (IRUint32) DataType() DataType { return TypeUint32 }

// IRFloat is a 32-bit floating point value.
type IRFloat float32

func (IRFloat) irValue()           {}
func (IRFloat) DataType() DataType { return TypeFloat }

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue()           {}
func (IRBool) DataType() DataType { return TypeBool }

// IRString is an owned string value.
type IRString string

func (IRString) irValue()           {}
func (IRString) DataType() DataType { return TypeString }

// IRMessageRef is a string value that borrows caller-owned bytes, typically
// a slice of a receive buffer. It must not outlive that buffer. The length
// is capped at MaxMessageLen.
type IRMessageRef []byte

func (IRMessageRef) irValue()           {}
func (IRMessageRef) DataType() DataType { return TypeString }

// String returns a copy of the referenced bytes.
func (m IRMessageRef) String() string { return string(m) }

// IREnum is a member of one of the protocol enumerations. Type selects the
// enumeration and must satisfy DataType.IsEnum.
type IREnum struct {
	Type   DataType
	Member int32
}

func (IREnum) irValue()             {}
func (e IREnum) DataType() DataType { return e.Type }

// IRVersion is a version triple value.
type IRVersion Version

func (IRVersion) irValue()           {}
func (IRVersion) DataType() DataType { return TypeVersion }

// IRTimestamp is a device timestamp value.
type IRTimestamp Timestamp

func (IRTimestamp) irValue()           {}
func (IRTimestamp) DataType() DataType { return TypeTimestamp }

// NewIREnum creates an enum value, rejecting non-enum data types.
func NewIREnum(t DataType, member int32) (IREnum, error) {
	if !t.IsEnum() {
		return IREnum{}, fmt.Errorf("%w: %s is not an enum type", ErrInvalidValue, t)
	}
	return IREnum{Type: t, Member: member}, nil
}

// NewIRMessageRef wraps b without copying it.
func NewIRMessageRef(b []byte) (IRMessageRef, error) {
	if len(b) > MaxMessageLen {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds %d", ErrInvalidValue, len(b), MaxMessageLen)
	}
	return IRMessageRef(b), nil
}

// checkValue reports values that no field may hold.
func checkValue(v IRValue) error {
	switch val := v.(type) {
	case nil:
		return ErrNilValue
	case IREnum:
		if !val.Type.IsEnum() {
			return fmt.Errorf("%w: %s is not an enum type", ErrInvalidValue, val.Type)
		}
	case IRMessageRef:
		if len(val) > MaxMessageLen {
			return fmt.Errorf("%w: message of %d bytes exceeds %d", ErrInvalidValue, len(val), MaxMessageLen)
		}
	}
	return nil
}

// Native is the set of Go types a value can be read back as.
type Native interface {
	uint8 | uint16 | uint32 | float32 | bool | string | IREnum | Version | Timestamp
}

// As extracts the native Go value held by v. It returns a TypeMismatchError
// when T does not correspond to v's variant. Both IRString and IRMessageRef
// read as string.
func As[T Native](v IRValue) (T, error) {
	var zero T
	var out any
	switch val := v.(type) {
	case IRUint8:
		out = uint8(val)
	case IRUint16:
		out = uint16(val)
	case IRUint32:
		out = uint32(val)
	case IRFloat:
		out = float32(val)
	case IRBool:
		out = bool(val)
	case IRString:
		out = string(val)
	case IRMessageRef:
		out = string(val)
	case IREnum:
		out = val
	case IRVersion:
		out = Version(val)
	case IRTimestamp:
		out = Timestamp(val)
	}
	t, ok := out.(T)
	if !ok {
		got := TypeInvalid
		if v != nil {
			got = v.DataType()
		}
		return zero, &TypeMismatchError{Want: fmt.Sprintf("%T", zero), Got: got}
	}
	return t, nil
}

// Equal reports whether a and b hold the same variant and value.
// IRString and IRMessageRef with the same bytes are not equal.
func Equal(a, b IRValue) bool {
	switch x := a.(type) {
	case IRMessageRef:
		y, ok := b.(IRMessageRef)
		return ok && string(x) == string(y)
	default:
		if _, ok := b.(IRMessageRef); ok {
			return false
		}
		return a == b
	}
}

// FormatValue renders v for diagnostics and text output.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case IRString:
		return fmt.Sprintf("%q", string(val))
	case IRMessageRef:
		return fmt.Sprintf("%q", string(val))
	case IREnum:
		return fmt.Sprintf("%s(%d)", val.Type, val.Member)
	case IRVersion:
		return Version(val).String()
	case IRTimestamp:
		return Timestamp(val).String()
	case IRFloat:
		return fmt.Sprintf("%g", float32(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}
