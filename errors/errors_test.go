package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
)

func TestClassifyBusSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{bus.ErrConnection, ErrCodeConnection},
		{bus.ErrNotConnected, ErrCodeNotConnected},
		{bus.ErrTimeout, ErrCodeTimeout},
		{bus.ErrCancelled, ErrCodeCancelled},
		{bus.ErrClosed, ErrCodeClosed},
		{&bus.DecodeError{Topic: "t", Err: fmt.Errorf("bad json")}, ErrCodeDecode},
		{fmt.Errorf("something else"), ErrCodeUnknown},
		{nil, ErrCodeUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestClassifyWrapped(t *testing.T) {
	err := fmt.Errorf("request to vision service: %w", bus.ErrTimeout)
	if got := Classify(err); got != ErrCodeTimeout {
		t.Errorf("Classify(wrapped timeout) = %s", got)
	}

	err = fmt.Errorf("connect: %w", fmt.Errorf("%w: dial refused", bus.ErrConnection))
	if got := Classify(err); got != ErrCodeConnection {
		t.Errorf("Classify(nested connection) = %s", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{bus.ErrConnection, true},
		{bus.ErrTimeout, true},
		{bus.ErrNotConnected, false},
		{bus.ErrClosed, false},
		{bus.ErrCancelled, false},
		{&bus.DecodeError{Err: fmt.Errorf("bad")}, false},
		{fmt.Errorf("unknown"), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeConnection, CategoryTransport},
		{ErrCodeTimeout, CategoryTransport},
		{ErrCodeDecode, CategoryProtocol},
		{ErrCodeHandler, CategoryApplication},
		{ErrCodeUnknown, CategoryApplication},
	}

	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.want {
			t.Errorf("%s.Category() = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestCodedError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Wrap(ErrCodeConnection, "connect to broker", cause)

	if err.Code() != ErrCodeConnection {
		t.Errorf("Code = %s", err.Code())
	}
	if err.Category() != CategoryTransport {
		t.Errorf("Category = %s", err.Category())
	}
	if !stderrors.Is(err, cause) {
		t.Error("Unwrap chain broken")
	}
	if got := Classify(fmt.Errorf("outer: %w", err)); got != ErrCodeConnection {
		t.Errorf("Classify(wrapped coded error) = %s", got)
	}
	if err.Error() != "connect to broker: dial tcp: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewWithoutCause(t *testing.T) {
	err := New(ErrCodeHandler, "vision handler raised")
	if err.Error() != "vision handler raised" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Unwrap should be nil")
	}
	if Retryable(err) {
		t.Error("handler errors must not be retryable")
	}
}
