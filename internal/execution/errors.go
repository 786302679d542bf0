package execution

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the pipeline stage or outcome an Error belongs to.
type ErrorKind string

const (
	ErrKindStage         ErrorKind = "STAGE"
	ErrKindSpawn         ErrorKind = "SPAWN"
	ErrKindPoll          ErrorKind = "POLL"
	ErrKindLogs          ErrorKind = "LOGS"
	ErrKindTaskFailed    ErrorKind = "TASK_FAILED"
	ErrKindTaskCancelled ErrorKind = "TASK_CANCELLED"
	ErrKindNoOutput      ErrorKind = "NO_OUTPUT"
)

// Error is a fatal pipeline error.
type Error struct {
	Kind     ErrorKind
	Message  string
	TaskPath string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTaskError reports whether err describes the task's own outcome rather
// than a failure to talk to the service.
func IsTaskError(err error) bool {
	switch KindOf(err) {
	case ErrKindTaskFailed, ErrKindTaskCancelled, ErrKindNoOutput:
		return true
	}
	return false
}
