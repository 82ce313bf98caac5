package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/logging"
)

// inboxPrefix is the topic prefix reserved for per-request private
// reply topics. Part of the wire contract: services never publish to
// an inbox except through a request's reply_to field.
const inboxPrefix = "_INBOX."

// Client is a bus handle for one service. It composes a Transport with
// payload encoding, a correlation registry for request/reply, and a
// subscription dispatcher. Construct it explicitly and pass it into
// every component that needs it; there is no process-wide client.
//
// All methods are safe for concurrent use. Any number of Request calls
// may be in flight at once; each is correlated and resolved
// independently.
type Client struct {
	config    Config
	transport Transport
	log       *logging.Logger

	mu        sync.Mutex
	connected bool
	pending   *pendingRegistry
	dispatch  *dispatcher
}

// New creates a bus client over the given transport. A nil logger
// defaults to a fresh one.
func New(cfg Config, transport Transport, log *logging.Logger) *Client {
	if log == nil {
		log = logging.New()
	}
	return &Client{
		config:    cfg.withDefaults(),
		transport: transport,
		log:       log.WithComponent("bus"),
	}
}

// NewNATS creates a bus client over a NATS transport built from cfg.
func NewNATS(cfg Config, natsCfg NATSConfig, log *logging.Logger) *Client {
	return New(cfg, NewNATSTransport(natsCfg), log)
}

// Connect establishes the transport connection. Idempotent: calling it
// while connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	c.pending = newPendingRegistry()
	c.dispatch = newDispatcher(c.transport, c.log, c.sendEnvelope)
	c.connected = true
	return nil
}

// Connected reports whether the client is connected.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.transport.Connected()
}

// Close disconnects the bus. Every outstanding request is unblocked
// with ErrClosed, every subscription is torn down, and no handler runs
// afterwards. Idempotent; the client may Connect again later.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	pending := c.pending
	dispatch := c.dispatch
	c.mu.Unlock()

	cancelled := pending.pendingCount()

	// Pending requests first: a handler blocked inside Request must
	// unblock before the dispatcher waits for its pump to exit.
	pending.close()
	dispatch.closeAll()
	err := c.transport.Disconnect()

	c.log.Disconnected(cancelled)
	return err
}

// Publish sends a fire-and-forget event. It completes once the encoded
// envelope is handed to the transport; broker-side delivery is
// best-effort, at most once.
func (c *Client) Publish(topic string, payload Payload) error {
	if _, err := c.state(); err != nil {
		return err
	}
	return c.sendEnvelope(topic, &Envelope{Topic: topic, Payload: payload})
}

// Subscribe registers an event handler invoked once per message on the
// topic, in per-topic delivery order, until Unsubscribe or Close.
func (c *Client) Subscribe(topic string, h EventHandler) (*Subscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	state, err := c.state()
	if err != nil {
		return nil, err
	}
	return state.dispatch.addEventSubscription(topic, h)
}

// ReplyHandler registers a reply provider: whenever a request envelope
// arrives on the topic, fn computes a response payload and the client
// publishes it back to the requester automatically, tagged with the
// request's correlation id. At most one provider per topic; a second
// registration fails with ErrTopicClaimed.
func (c *Client) ReplyHandler(topic string, fn ReplyFunc) (*Subscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	state, err := c.state()
	if err != nil {
		return nil, err
	}
	return state.dispatch.addReplySubscription(topic, fn)
}

// Request publishes a request and blocks until a correlated reply
// arrives, the timeout elapses (ErrTimeout), ctx is cancelled
// (ErrCancelled), or the bus closes (ErrClosed). A non-positive
// timeout uses the configured default.
//
// The reply flows over a private per-request inbox topic; the
// subscription is torn down unconditionally before Request returns.
// A reply that decodes badly surfaces as *DecodeError.
func (c *Client) Request(ctx context.Context, topic string, payload Payload, timeout time.Duration) (Payload, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	state, err := c.state()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}

	pr, err := state.pending.register(timeout)
	if err != nil {
		return nil, err
	}

	inbox := inboxPrefix + uuid.NewString()
	raw, err := c.transport.Subscribe(inbox)
	if err != nil {
		state.pending.fail(pr.id, err)
		return nil, err
	}
	// The transient inbox subscription never outlives the call.
	defer raw.Unsubscribe()

	go c.pumpReplies(state.pending, pr.id, raw)

	env := &Envelope{
		Topic:         topic,
		Payload:       payload,
		CorrelationID: pr.id,
		ReplyTo:       inbox,
	}
	if err := c.sendEnvelope(topic, env); err != nil {
		state.pending.fail(pr.id, err)
		return nil, err
	}

	c.log.RequestIssued(topic, pr.id, timeout)

	select {
	case <-pr.done:
	case <-ctx.Done():
		if state.pending.fail(pr.id, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())) {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		// A reply or timeout won the race; use its outcome.
		<-pr.done
	}

	if pr.err != nil {
		return nil, pr.err
	}
	return pr.payload, nil
}

// pumpReplies feeds inbox messages for one request into the correlation
// registry. It exits when the inbox subscription is torn down.
func (c *Client) pumpReplies(pending *pendingRegistry, correlationID string, raw RawSubscription) {
	for msg := range raw.Messages() {
		env, err := decodeEnvelope(msg.Topic, msg.Data)
		if err != nil {
			// A corrupt reply is a protocol mismatch, not a
			// timeout; surface it to the waiting caller.
			pending.fail(correlationID, err)
			continue
		}
		if env.CorrelationID != correlationID {
			c.log.LateReply(msg.Topic, env.CorrelationID)
			continue
		}
		if !pending.resolve(correlationID, env.Payload) {
			c.log.LateReply(msg.Topic, env.CorrelationID)
		}
	}
}

// state snapshots the connected client internals, or fails with
// ErrNotConnected.
func (c *Client) state() (*clientState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || !c.transport.Connected() {
		return nil, ErrNotConnected
	}
	return &clientState{pending: c.pending, dispatch: c.dispatch}, nil
}

type clientState struct {
	pending  *pendingRegistry
	dispatch *dispatcher
}

// sendEnvelope encodes and publishes one envelope. Dispatcher replies
// and client publishes share this path.
func (c *Client) sendEnvelope(topic string, env *Envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return c.transport.Publish(topic, data)
}
