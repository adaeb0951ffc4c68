package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during a synchronization round.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RoundID identifies the failed round.
	RoundID string

	// Revision is the revision being processed, if any.
	Revision int64

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLocked indicates the root is locked or inside a transaction.
	ErrCodeLocked RuntimeErrorCode = "LOCKED"

	// ErrCodeTransportFailed indicates fetching server events failed.
	ErrCodeTransportFailed RuntimeErrorCode = "TRANSPORT_FAILED"

	// ErrCodeRemoteGap indicates server revisions do not continue the log.
	ErrCodeRemoteGap RuntimeErrorCode = "REMOTE_GAP"

	// ErrCodeInvalidRemote indicates a malformed server event or one
	// outside the log's base address.
	ErrCodeInvalidRemote RuntimeErrorCode = "INVALID_REMOTE"

	// ErrCodeReplayFailed indicates rollback or replay of the tree failed.
	ErrCodeReplayFailed RuntimeErrorCode = "REPLAY_FAILED"

	// ErrCodePersistFailed indicates the log could not be stored.
	ErrCodePersistFailed RuntimeErrorCode = "PERSIST_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RoundID != "" {
		msg += fmt.Sprintf(" (round=%s)", e.RoundID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func newRuntimeError(code RuntimeErrorCode, roundID string, rev int64, err error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		RoundID:  roundID,
		Revision: rev,
		Err:      err,
	}
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsLocked returns true if the round was refused because the root was busy.
func IsLocked(err error) bool { return hasCode(err, ErrCodeLocked) }

// IsTransportError returns true if fetching server events failed.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransportFailed) }

// IsRemoteGap returns true if the server batch did not continue the log.
func IsRemoteGap(err error) bool { return hasCode(err, ErrCodeRemoteGap) }

// IsInvalidRemote returns true if the server batch held a malformed event.
func IsInvalidRemote(err error) bool { return hasCode(err, ErrCodeInvalidRemote) }

// IsReplayError returns true if rolling back or replaying the tree failed.
func IsReplayError(err error) bool { return hasCode(err, ErrCodeReplayFailed) }

// IsPersistError returns true if storing the log failed.
func IsPersistError(err error) bool { return hasCode(err, ErrCodePersistFailed) }
