package harness

import (
	"errors"
	"slices"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
	"github.com/usepat/SW-soniccontrol/internal/session"
)

// Reject kinds a step may expect.
const (
	RejectSyntax           = "syntax"
	RejectUnknownCommand   = "unknown_command"
	RejectUnsupported      = "unsupported"
	RejectMismatchedAnswer = "mismatched_answer"
	RejectSchemaMismatch   = "schema_mismatch"
	RejectMissingField     = "missing_field"
	RejectValidationFailed = "validation_failed"
)

// RejectKinds lists the kinds in classification order.
var RejectKinds = []string{
	RejectSyntax,
	RejectUnknownCommand,
	RejectUnsupported,
	RejectMismatchedAnswer,
	RejectSchemaMismatch,
	RejectMissingField,
	RejectValidationFailed,
}

func validRejectKind(kind string) bool {
	return slices.Contains(RejectKinds, kind)
}

// RejectKind classifies a schema or session error. It returns "" for errors
// that are not protocol rejections, such as journal failures.
func RejectKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, correspondence.ErrSyntax):
		return RejectSyntax
	case errors.Is(err, schema.ErrUnknownCommandCode):
		return RejectUnknownCommand
	case errors.Is(err, schema.ErrCommandUnsupported):
		return RejectUnsupported
	case session.IsMismatchedAnswer(err):
		return RejectMismatchedAnswer
	// A wrong variant matches both sentinels; mismatch is the more specific.
	case errors.Is(err, schema.ErrSchemaMismatch):
		return RejectSchemaMismatch
	case errors.Is(err, ir.ErrFieldNotFound):
		return RejectMissingField
	case errors.Is(err, schema.ErrValidationFailed):
		return RejectValidationFailed
	}
	return ""
}
