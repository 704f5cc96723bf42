// Package apperror defines the error values returned across the service
// boundary. Each carries a Code the transport maps to a status and an
// optional Field naming the input it refers to.
package apperror

import (
	"errors"
	"fmt"
)

// RootField is the envelope key for errors not tied to an input field.
const RootField = "root"

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Key is the envelope key the error is reported under.
func (e *AppError) Key() string {
	if e.Field == "" {
		return RootField
	}
	return e.Field
}

// Constructors
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Validation is a malformed-input error reported against field.
func Validation(field, msg string) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: msg, Field: field}
}

func NotFound(field, msg string) *AppError {
	return &AppError{Code: CodeNotFound, Message: msg, Field: field}
}

func AlreadyExists(field, msg string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: msg, Field: field}
}

func Unauthorized(msg string) *AppError {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) *AppError {
	return New(CodePermissionDenied, msg)
}

// Stale reports a conditional update that matched nothing.
func Stale(msg string) *AppError {
	return New(CodeFailedPrecondition, msg)
}

// Transaction hides cause behind a generic message. The cause stays
// reachable through Unwrap for logging.
func Transaction(cause error) *AppError {
	return Wrap(CodeInternal, "something went wrong", cause)
}

// As returns the *AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeUnknown
}
