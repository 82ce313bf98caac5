package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSTransport implements Transport over a NATS connection.
type NATSTransport struct {
	config NATSConfig

	mu   sync.Mutex
	conn *nats.Conn
	subs map[*natsSub]struct{}
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	// URL is the broker URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// ReconnectWait is the time to wait between reconnection attempts
	// after an unexpected drop. The NATS client resubscribes every
	// active subscription on reconnect; in-flight state is never
	// silently dropped.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration

	// BufferSize for subscription channels.
	BufferSize int
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
		BufferSize:     DefaultConfig().BufferSize,
	}
}

// NewNATSTransport creates a NATS transport. No connection is made
// until Connect.
func NewNATSTransport(cfg NATSConfig) *NATSTransport {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultNATSConfig().ReconnectWait
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultNATSConfig().ConnectTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultNATSConfig().BufferSize
	}

	return &NATSTransport{
		config: cfg,
		subs:   make(map[*natsSub]struct{}),
	}
}

// buildNATSOptions constructs NATS connection options from config.
func buildNATSOptions(cfg NATSConfig) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	return opts
}

// Connect establishes the broker connection. No-op while connected.
func (t *NATSTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && !t.conn.IsClosed() {
		return nil
	}

	conn, err := nats.Connect(t.config.URL, buildNATSOptions(t.config)...)
	if err != nil {
		return fmt.Errorf("%w: nats connect %s: %v", ErrConnection, t.config.URL, err)
	}

	t.conn = conn
	t.subs = make(map[*natsSub]struct{})
	return nil
}

// Connected reports whether the broker connection is usable.
func (t *NATSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.conn.IsClosed()
}

// Publish sends bytes to a topic.
func (t *NATSTransport) Publish(topic string, data []byte) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return ErrNotConnected
	}

	if err := conn.Publish(topic, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe creates a transport subscription on a topic.
func (t *NATSTransport) Subscribe(topic string) (RawSubscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	sub := &natsSub{
		transport: t,
		ch:        make(chan *RawMessage, t.config.BufferSize),
	}

	natsSubscription, err := t.conn.Subscribe(topic, func(m *nats.Msg) {
		sub.deliver(&RawMessage{
			Topic: m.Subject,
			Data:  m.Data,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	sub.sub = natsSubscription
	t.subs[sub] = struct{}{}
	return sub, nil
}

// Disconnect closes the connection and every active subscription.
func (t *NATSTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	subs := t.subs
	t.conn = nil
	t.subs = make(map[*natsSub]struct{})
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	for sub := range subs {
		sub.teardown()
	}
	conn.Close()
	return nil
}

func (t *NATSTransport) removeSub(sub *natsSub) {
	t.mu.Lock()
	delete(t.subs, sub)
	t.mu.Unlock()
}

// natsSub wraps a NATS subscription behind RawSubscription. The mutex
// orders callback deliveries against channel close: a message callback
// still in flight when Unsubscribe runs must never hit a closed
// channel.
type natsSub struct {
	transport *NATSTransport
	sub       *nats.Subscription

	mu     sync.Mutex
	ch     chan *RawMessage
	closed bool
}

// Messages returns the message channel.
func (s *natsSub) Messages() <-chan *RawMessage {
	return s.ch
}

func (s *natsSub) deliver(msg *RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// Buffer full, drop message
	}
}

// Unsubscribe cancels the subscription.
func (s *natsSub) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.transport.removeSub(s)
	return s.sub.Unsubscribe()
}

// teardown closes the subscription during transport disconnect; the
// registry entry is already gone.
func (s *natsSub) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.sub.Unsubscribe()
}
