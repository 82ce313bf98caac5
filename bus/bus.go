package bus

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	// ErrConnection indicates the transport could not be established.
	ErrConnection = errors.New("connection failed")

	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed indicates the bus was closed while the operation was pending.
	ErrClosed = errors.New("bus closed")

	// ErrTimeout indicates no reply arrived within the request timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrCancelled indicates a request was cancelled by its context.
	ErrCancelled = errors.New("request cancelled")

	// ErrInvalidTopic indicates an empty topic or one containing whitespace.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrTopicClaimed indicates a reply handler is already registered
	// for the topic. A topic has at most one reply provider.
	ErrTopicClaimed = errors.New("reply handler already registered for topic")
)

// Payload is the unit of application data carried over the bus: a
// mapping from string keys to JSON-representable values (strings,
// numbers, booleans, null, nested maps and lists). Numbers decode as
// float64, exact for integers within 53 bits.
type Payload map[string]any

// Message is an inbound event delivered to an EventHandler.
type Message struct {
	// Topic the message was published to.
	Topic string

	// Payload is the decoded application data.
	Payload Payload
}

// EventHandler is invoked once per message received on a subscribed
// topic. A panic inside the handler is caught, logged, and never
// propagates to other handlers or the dispatch loop.
type EventHandler func(msg *Message)

// ReplyFunc computes a response payload for an incoming request. The
// returned payload is published back to the requester automatically,
// tagged with the request's correlation id. Returning an error (or
// panicking) suppresses the reply and is reported through logging; the
// requester observes a timeout.
type ReplyFunc func(request Payload) (Payload, error)

// Config holds bus client configuration. Immutable after construction.
type Config struct {
	// DefaultTimeout applies when Request is called with a
	// non-positive timeout. Default: 5s.
	DefaultTimeout time.Duration

	// BufferSize for subscription channels. A subscriber whose
	// buffer is full drops messages (the transport is at-most-once).
	// Default: 256.
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Second,
		BufferSize:     256,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultConfig().BufferSize
	}
	return c
}

// ValidateTopic checks that a topic is non-empty and free of whitespace.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, " \t\r\n") {
		return ErrInvalidTopic
	}
	return nil
}
