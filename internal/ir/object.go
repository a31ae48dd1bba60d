package ir

import (
	"fmt"
	"iter"
	"slices"
)

// Capacities of the two object kinds used by the protocol.
const (
	// AnswerCapacity is the maximum number of fields in an answer.
	AnswerCapacity = 16

	// CommandArgsCapacity is the maximum number of arguments of a command call.
	CommandArgsCapacity = 4
)

// IRField is a named value. Its type tag is derived from the value.
type IRField struct {
	Name  FieldName
	Value IRValue
}

// F is shorthand for constructing an IRField.
// Example: NewIRObject(CommandArgsCapacity, F("freq", IRUint32(100000)))
func F(name FieldName, v IRValue) IRField {
	return IRField{Name: name, Value: v}
}

// Type returns the data type of the field's value.
func (f IRField) Type() DataType {
	if f.Value == nil {
		return TypeInvalid
	}
	return f.Value.DataType()
}

// CheckType reports whether the field carries a value of type dt.
func (f IRField) CheckType(dt DataType) bool {
	return f.Type() == dt
}

// String renders the field as name=value.
func (f IRField) String() string {
	return fmt.Sprintf("%s=%s", f.Name, FormatValue(f.Value))
}

// IRObject is a bounded, insertion-ordered collection of uniquely named
// fields. It is built once by NewIRObject and never mutated afterwards, so
// copies may be shared freely across goroutines.
type IRObject struct {
	fields   []IRField
	capacity int
}

// NewIRObject builds an object of the given capacity. It rejects nil or
// invalid values, duplicate names and more fields than capacity.
func NewIRObject(capacity int, fields ...IRField) (IRObject, error) {
	if len(fields) > capacity {
		return IRObject{}, fmt.Errorf("%w: %d fields, capacity %d", ErrCapacityExceeded, len(fields), capacity)
	}
	seen := make(map[FieldName]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return IRObject{}, fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := checkValue(f.Value); err != nil {
			return IRObject{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return IRObject{fields: slices.Clone(fields), capacity: capacity}, nil
}

// MustIRObject is like NewIRObject but panics on error.
// Use only in tests or for static tables.
func MustIRObject(capacity int, fields ...IRField) IRObject {
	obj, err := NewIRObject(capacity, fields...)
	if err != nil {
		panic(err)
	}
	return obj
}

// Field returns the field named name, or a FieldNotFoundError.
func (o IRObject) Field(name FieldName) (IRField, error) {
	if f, ok := o.Lookup(name); ok {
		return f, nil
	}
	return IRField{}, &FieldNotFoundError{Name: name}
}

// Lookup returns the field named name and whether it was present.
func (o IRObject) Lookup(name FieldName) (IRField, bool) {
	for _, f := range o.fields {
		if f.Name == name {
			return f, true
		}
	}
	return IRField{}, false
}

// Has reports whether a field named name is present.
func (o IRObject) Has(name FieldName) bool {
	_, ok := o.Lookup(name)
	return ok
}

// Len returns the number of fields.
func (o IRObject) Len() int { return len(o.fields) }

// Cap returns the capacity the object was built with.
func (o IRObject) Cap() int { return o.capacity }

// Fields returns the fields in insertion order. The returned slice is a
// copy; IRMessageRef values still share their borrowed bytes.
func (o IRObject) Fields() []IRField {
	return slices.Clone(o.fields)
}

// Names returns field names in insertion order.
func (o IRObject) Names() []FieldName {
	names := make([]FieldName, len(o.fields))
	for i, f := range o.fields {
		names[i] = f.Name
	}
	return names
}

// All iterates over fields in insertion order.
func (o IRObject) All() iter.Seq2[FieldName, IRValue] {
	return func(yield func(FieldName, IRValue) bool) {
		for _, f := range o.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// Equal reports whether both objects hold equal fields in the same order.
// Capacity is not compared.
func (o IRObject) Equal(other IRObject) bool {
	return slices.EqualFunc(o.fields, other.fields, func(a, b IRField) bool {
		return a.Name == b.Name && Equal(a.Value, b.Value)
	})
}

// ValueAs returns the native value of the named field. It returns a
// FieldNotFoundError when the field is absent and a TypeMismatchError when
// T does not match the stored variant.
func ValueAs[T Native](o IRObject, name FieldName) (T, error) {
	var zero T
	f, err := o.Field(name)
	if err != nil {
		return zero, err
	}
	v, err := As[T](f.Value)
	if err != nil {
		if tm, ok := err.(*TypeMismatchError); ok {
			tm.Field = name
		}
		return zero, err
	}
	return v, nil
}
