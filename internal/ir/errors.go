package ir

import (
	"errors"
	"fmt"
)

// Sentinel errors for IR construction and access.
var (
	ErrFieldNotFound    = errors.New("field not found")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrDuplicateField   = errors.New("duplicate field")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNilValue         = errors.New("nil value")
	ErrInvalidValue     = errors.New("invalid value")
)

// FieldNotFoundError reports a lookup of a name that is not present.
type FieldNotFoundError struct {
	Name FieldName
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found", e.Name)
}

// Is matches ErrFieldNotFound.
func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// TypeMismatchError reports a typed read whose requested native type does
// not match the stored variant.
type TypeMismatchError struct {
	Field FieldName
	Want  string
	Got   DataType
}

func (e *TypeMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("type mismatch: want %s, value is %s", e.Want, e.Got)
	}
	return fmt.Sprintf("field %q: type mismatch: want %s, value is %s", e.Field, e.Want, e.Got)
}

// Is matches ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// IsFieldNotFound returns true if err is or wraps a missing-field error.
func IsFieldNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound)
}

// IsTypeMismatch returns true if err is or wraps a type mismatch error.
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}
