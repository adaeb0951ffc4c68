package synclog

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes log errors.
type ErrorCode string

const (
	// ErrCodeInvalidEntry: an appended or restored entry violates a log invariant.
	ErrCodeInvalidEntry ErrorCode = "INVALID_ENTRY"

	// ErrCodeInvalidRange: negative or inverted revision bounds.
	ErrCodeInvalidRange ErrorCode = "INVALID_RANGE"

	// ErrCodeOutOfRange: a point lookup outside the unconfirmed window.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"

	// ErrCodeIllegalState: the operation is not allowed in the log's current state.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"
)

// LogError is returned by Log operations that reject their input.
type LogError struct {
	Code     ErrorCode
	Message  string
	Revision int64
}

// Error implements the error interface.
func (e *LogError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, rev int64, format string, args ...any) *LogError {
	return &LogError{Code: code, Revision: rev, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code ErrorCode) bool {
	var le *LogError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsInvalidEntry reports whether err is an ErrCodeInvalidEntry LogError.
func IsInvalidEntry(err error) bool { return hasCode(err, ErrCodeInvalidEntry) }

// IsInvalidRange reports whether err is an ErrCodeInvalidRange LogError.
func IsInvalidRange(err error) bool { return hasCode(err, ErrCodeInvalidRange) }

// IsOutOfRange reports whether err is an ErrCodeOutOfRange LogError.
func IsOutOfRange(err error) bool { return hasCode(err, ErrCodeOutOfRange) }

// IsIllegalState reports whether err is an ErrCodeIllegalState LogError.
func IsIllegalState(err error) bool { return hasCode(err, ErrCodeIllegalState) }
