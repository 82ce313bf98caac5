// Package errors classifies bus and service failures for retry
// decisions. The bus surfaces plain sentinel errors; this package maps
// them to codes and categories so callers (the service runner's connect
// loop, supervisors) can decide between retrying and giving up without
// string-matching error text.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
)

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransport covers transport-level failures: the
	// connection could not be established or was lost. Retryable.
	CategoryTransport ErrorCategory = "transport"

	// CategoryProtocol covers wire-format mismatches between
	// services. Retry will not help until a service is fixed.
	CategoryProtocol ErrorCategory = "protocol"

	// CategoryApplication covers failures inside application
	// handlers. Isolated to the handler; not retried by the bus.
	CategoryApplication ErrorCategory = "application"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// ErrorCode identifies specific failure types.
type ErrorCode string

const (
	// Transport
	ErrCodeConnection   ErrorCode = "CONNECTION_FAILED" // connect failed; retry with backoff
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"     // operation while disconnected
	ErrCodeTimeout      ErrorCode = "TIMEOUT"           // no reply within the window
	ErrCodeCancelled    ErrorCode = "CANCELLED"         // caller cancelled the request
	ErrCodeClosed       ErrorCode = "CLOSED"            // bus shut down mid-operation

	// Protocol
	ErrCodeDecode ErrorCode = "DECODE_FAILED" // malformed payload on the wire

	// Application
	ErrCodeHandler ErrorCode = "HANDLER_FAILED" // handler raised during dispatch

	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Category returns the error category for a code.
func (c ErrorCode) Category() ErrorCategory {
	switch c {
	case ErrCodeConnection, ErrCodeNotConnected, ErrCodeTimeout, ErrCodeCancelled, ErrCodeClosed:
		return CategoryTransport
	case ErrCodeDecode:
		return CategoryProtocol
	case ErrCodeHandler:
		return CategoryApplication
	default:
		return CategoryApplication
	}
}

// Retryable returns true if the operation may succeed on retry. A
// timeout is retried with a fresh correlation id; a decode failure
// indicates a version mismatch and is never retried automatically.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeConnection, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// Error carries a code alongside the underlying cause.
type Error struct {
	code    ErrorCode
	message string
	cause   error
}

// New creates a coded error.
func New(code ErrorCode, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates a coded error around a cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.code.Category()
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Classify maps any error to its code. Bus sentinels and DecodeError
// are recognized; a coded *Error reports its own code; everything else
// is ErrCodeUnknown.
func Classify(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code()
	}

	var decodeErr *bus.DecodeError
	if stderrors.As(err, &decodeErr) {
		return ErrCodeDecode
	}

	switch {
	case stderrors.Is(err, bus.ErrConnection):
		return ErrCodeConnection
	case stderrors.Is(err, bus.ErrNotConnected):
		return ErrCodeNotConnected
	case stderrors.Is(err, bus.ErrTimeout):
		return ErrCodeTimeout
	case stderrors.Is(err, bus.ErrCancelled):
		return ErrCodeCancelled
	case stderrors.Is(err, bus.ErrClosed):
		return ErrCodeClosed
	default:
		return ErrCodeUnknown
	}
}

// Retryable reports whether the failed operation may succeed on retry.
func Retryable(err error) bool {
	return Classify(err).Retryable()
}
