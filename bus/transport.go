package bus

import "context"

// RawMessage is a message as seen by a transport: topic plus opaque
// bytes. Envelope decoding happens above the transport.
type RawMessage struct {
	Topic string
	Data  []byte
}

// Transport owns one physical connection to the broker and exposes raw
// publish/subscribe primitives. Implementations must make Connect and
// Disconnect idempotent, deliver messages at most once, and preserve
// per-topic order on each subscription's channel.
type Transport interface {
	// Connect establishes the connection. Calling it while already
	// connected is a no-op. Failure surfaces an error wrapping
	// ErrConnection.
	Connect(ctx context.Context) error

	// Connected reports whether the transport is currently usable.
	Connected() bool

	// Publish sends bytes to a topic, fire-and-forget. Returns
	// ErrNotConnected after Disconnect.
	Publish(topic string, data []byte) error

	// Subscribe yields inbound messages on a topic until the
	// subscription is unsubscribed or the transport disconnects,
	// at which point the channel is closed.
	Subscribe(topic string) (RawSubscription, error)

	// Disconnect closes the connection. Every active subscription's
	// channel is closed; no message is delivered afterwards.
	Disconnect() error
}

// RawSubscription is an active transport-level subscription.
type RawSubscription interface {
	// Messages returns the channel of inbound messages. Closed when
	// the subscription ends.
	Messages() <-chan *RawMessage

	// Unsubscribe cancels the subscription and closes the channel.
	Unsubscribe() error
}
