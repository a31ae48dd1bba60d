package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Sentinel errors for schema construction and validation.
var (
	// ErrSchemaMismatch reports a value or limits variant whose type
	// disagrees with the declared data type.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrValidationFailed reports a value that violates its field type.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnknownCommandCode reports a code absent from a protocol descriptor.
	ErrUnknownCommandCode = errors.New("unknown command code")

	// ErrCommandUnsupported reports a code that the descriptor lists as not
	// supported in this protocol version.
	ErrCommandUnsupported = errors.New("command not supported")

	// ErrInvalidTable reports a protocol table that fails its checks.
	ErrInvalidTable = errors.New("invalid protocol table")
)

// ValidationError describes why a value was rejected by a field type.
type ValidationError struct {
	// Field is the parameter or answer field being validated, when known.
	Field ir.FieldName

	// Want is the declared data type.
	Want ir.DataType

	// Got is the data type of the rejected value.
	Got ir.DataType

	// Reason is a human-readable description.
	Reason string

	// Mismatch is set when the value has the wrong variant altogether.
	Mismatch bool
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	if e.Mismatch {
		fmt.Fprintf(&b, "schema mismatch: want %s, got %s", e.Want, e.Got)
		if e.Reason != "" {
			fmt.Fprintf(&b, ": %s", e.Reason)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "validation failed: %s", e.Reason)
	return b.String()
}

// Is matches ErrValidationFailed, and ErrSchemaMismatch for wrong variants.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed || (e.Mismatch && target == ErrSchemaMismatch)
}

// withField returns err with the field name attached when err is a
// ValidationError.
func withField(err error, name ir.FieldName) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		cp := *ve
		cp.Field = name
		return &cp
	}
	return fmt.Errorf("field %q: %w", name, err)
}

// UnknownCodeError reports a command or answer code that the protocol
// descriptor does not define.
type UnknownCodeError struct {
	Code     ir.CommandCode
	Protocol string
	Answer   bool
}

func (e *UnknownCodeError) Error() string {
	kind := "command"
	if e.Answer {
		kind = "answer"
	}
	return fmt.Sprintf("unknown %s code %d in protocol %s", kind, e.Code, e.Protocol)
}

// Is matches ErrUnknownCommandCode.
func (e *UnknownCodeError) Is(target error) bool {
	return target == ErrUnknownCommandCode
}

// UnsupportedCommandError reports a command explicitly marked unsupported
// by the active protocol version.
type UnsupportedCommandError struct {
	Code     ir.CommandCode
	Protocol string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("command %d is not supported by protocol %s", e.Code, e.Protocol)
}

// Is matches ErrCommandUnsupported.
func (e *UnsupportedCommandError) Is(target error) bool {
	return target == ErrCommandUnsupported
}

// UnknownAliasError reports a command alias absent from a descriptor.
type UnknownAliasError struct {
	Alias    string
	Protocol string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("unknown command %q in protocol %s", e.Alias, e.Protocol)
}

// Is matches ErrUnknownCommandCode.
func (e *UnknownAliasError) Is(target error) bool {
	return target == ErrUnknownCommandCode
}

// TableIssue is a single problem found while checking a protocol table.
type TableIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (i TableIssue) Error() string {
	return fmt.Sprintf("[%s] %s: %s", i.Code, i.Field, i.Message)
}

// TableError collects every issue found in one protocol table.
type TableError struct {
	Protocol string
	Issues   []TableIssue
}

func (e *TableError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Error()
	}
	return fmt.Sprintf("invalid protocol table %s: %s", e.Protocol, strings.Join(msgs, "; "))
}

// Is matches ErrInvalidTable.
func (e *TableError) Is(target error) bool {
	return target == ErrInvalidTable
}

// IsValidationFailed returns true if err is or wraps a validation failure.
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsSchemaMismatch returns true if err is or wraps a schema mismatch.
func IsSchemaMismatch(err error) bool {
	return errors.Is(err, ErrSchemaMismatch)
}
