package gateway

import (
	"errors"
	"fmt"
)

// Code classifies a failed operation.
type Code string

const (
	CodeInvalidRequest        Code = "invalid_request"
	CodeBusinessRuleViolation Code = "business_rule_violation"
	CodeSystemFailure         Code = "system_failure"
)

// Error is a failed operation. Message is always safe to show to the caller;
// Err carries the underlying cause for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest}
	ErrBusinessRule   = &Error{Code: CodeBusinessRuleViolation}
	ErrSystemFailure  = &Error{Code: CodeSystemFailure}
)

func invalid(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

func rejected(msg string) *Error {
	return &Error{Code: CodeBusinessRuleViolation, Message: msg}
}

func failed(msg string, err error) *Error {
	return &Error{Code: CodeSystemFailure, Message: msg, Err: err}
}

// CodeOf reports the code of err, or CodeSystemFailure for foreign errors.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeSystemFailure
}
