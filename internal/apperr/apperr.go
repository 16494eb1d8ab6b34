// Package apperr defines the error taxonomy shared by every service. Each
// failure carries a Code that the HTTP layer maps to a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	InvalidArgument   Code = "INVALID_ARGUMENT"
	NotFound          Code = "NOT_FOUND"
	InvalidState      Code = "INVALID_STATE"
	InsufficientFunds Code = "INSUFFICIENT_FUNDS"
	LimitExceeded     Code = "LIMIT_EXCEEDED"
	SelfTransfer      Code = "SELF_TRANSFER"
	Unauthorized      Code = "UNAUTHORIZED"
	Forbidden         Code = "FORBIDDEN"
	GatewayError      Code = "GATEWAY_ERROR"
	Internal          Code = "INTERNAL"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Code, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Code, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap builds a classified error around a cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Invalid reports a malformed or out of range request.
func Invalid(op, message string) *Error {
	return New(InvalidArgument, op, message)
}

// Missing reports that resource does not exist or is not visible to the caller.
func Missing(op, resource string) *Error {
	return New(NotFound, op, resource+" not found")
}

// State reports an operation that conflicts with the current record state.
func State(op, message string) *Error {
	return New(InvalidState, op, message)
}

// Limit reports an exceeded amount or count ceiling.
func Limit(op, message string) *Error {
	return New(LimitExceeded, op, message)
}

// Deny reports an authenticated caller lacking a permission.
func Deny(op, message string) *Error {
	return New(Forbidden, op, message)
}

// Unauthenticated reports missing or invalid credentials.
func Unauthenticated(op, message string) *Error {
	return New(Unauthorized, op, message)
}

// Gateway wraps a failed call to the payment processor.
func Gateway(op string, err error) *Error {
	return Wrap(GatewayError, op, "payment gateway request failed", err)
}

// Internalf wraps an unexpected failure. The message is never shown to callers.
func Internalf(op string, err error) *Error {
	if err == nil {
		return nil
	}
	return Wrap(Internal, op, "internal server error", err)
}

// CodeOf returns the code of the first classified error in the chain, or
// Internal when the chain carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err is classified with code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != Internal {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps a code to the response status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument, SelfTransfer, InsufficientFunds:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case InvalidState:
		return http.StatusConflict
	case LimitExceeded:
		return http.StatusUnprocessableEntity
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case GatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
