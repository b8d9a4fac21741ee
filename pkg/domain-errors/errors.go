// Package derrors provides coded domain errors.
//
// Services return these so callers can branch on stable codes instead of
// matching error strings. Stores return sentinel errors (pkg/platform/sentinel)
// and services translate them into coded errors at the boundary.
package derrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error classification.
type Code string

const (
	// CodeInternal marks unexpected failures that callers cannot act on.
	CodeInternal Code = "internal"
	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks uniqueness or concurrent-modification violations.
	CodeConflict Code = "conflict"
	// CodeValidation marks well-formed input that fails a business rule.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks malformed input rejected at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeInvariantViolation marks illegal state transitions on an aggregate.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeConfiguration marks missing or invalid operator configuration.
	// Never retryable; batch runs skip the subject.
	CodeConfiguration Code = "configuration"
	// CodeUnavailable marks transient transport failures (timeout, 5xx).
	// Retryable under the caller's retry policy.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout marks operations aborted by deadline or cancellation.
	CodeTimeout Code = "timeout"
)

// Error is a coded domain error. Construct via New or Wrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the chain for
// errors.Is / errors.As. Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is so callers need only one import.
func Is(err, target error) bool { return errors.Is(err, target) }

// Retryable reports whether the error classifies as transient per the
// screening error taxonomy: transport-level failures are retryable,
// configuration and validation failures are not.
func Retryable(err error) bool {
	return HasCode(err, CodeUnavailable) || HasCode(err, CodeTimeout)
}
