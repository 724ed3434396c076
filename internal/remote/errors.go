package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Code classifies a remote error for the retry policy.
type Code int

const (
	CodeUnknown Code = iota
	CodeUnavailable
	CodeDeadlineExceeded
	CodeResourceExhausted
	CodePermissionDenied
	CodeInvalidArgument
	CodeNotFound
	CodeUnauthenticated
)

func (c Code) String() string {
	switch c {
	case CodeUnavailable:
		return "unavailable"
	case CodeDeadlineExceeded:
		return "deadline_exceeded"
	case CodeResourceExhausted:
		return "resource_exhausted"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Error is a remote operation failure with its classification attached.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified remote error.
func Errorf(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the classification of err, CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeUnknown
}

// Retryable reports whether err is transient: service unavailable, deadline
// exceeded, resource exhausted, or a generic network failure. Everything else
// is fatal and must not be retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeUnavailable, CodeDeadlineExceeded, CodeResourceExhausted:
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
