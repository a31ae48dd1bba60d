package session

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes session errors.
type ErrorCode string

const (
	// ErrCodeQuotaExceeded indicates a transaction issued more calls than allowed.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeMismatchedAnswer indicates an answer that does not reply to its call.
	ErrCodeMismatchedAnswer ErrorCode = "MISMATCHED_ANSWER"

	// ErrCodeAnswered indicates a second answer for the same call.
	ErrCodeAnswered ErrorCode = "ALREADY_ANSWERED"
)

// Error is a failure detected while journaling a transaction.
type Error struct {
	Code    ErrorCode
	Message string
	Token   string
}

func (e *Error) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s (token=%s)", e.Code, e.Message, e.Token)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsQuotaError reports whether err is a quota violation.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsMismatchedAnswer reports whether err is an answer/call mismatch.
func IsMismatchedAnswer(err error) bool {
	return hasCode(err, ErrCodeMismatchedAnswer)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
