package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryTransport implements Transport in-process. Useful for tests and
// single-process deployments where all services share one binary.
//
// Delivery matches the broker contract: at most once (a subscriber with
// a full buffer drops), per-topic order preserved, exact topic match
// (no wildcards).
type MemoryTransport struct {
	bufferSize int

	mu        sync.RWMutex
	subs      map[string][]*memorySub
	connected atomic.Bool
}

type memorySub struct {
	topic     string
	ch        chan *RawMessage
	closed    atomic.Bool
	transport *MemoryTransport
}

// NewMemoryTransport creates an in-process transport.
func NewMemoryTransport(bufferSize int) *MemoryTransport {
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}

	return &MemoryTransport{
		bufferSize: bufferSize,
		subs:       make(map[string][]*memorySub),
	}
}

// Connect marks the transport usable. No-op while connected.
func (t *MemoryTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.connected.Swap(true) {
		return nil
	}

	t.mu.Lock()
	if t.subs == nil {
		t.subs = make(map[string][]*memorySub)
	}
	t.mu.Unlock()
	return nil
}

// Connected reports whether the transport is usable.
func (t *MemoryTransport) Connected() bool {
	return t.connected.Load()
}

// Publish delivers bytes to every subscriber of the exact topic.
// Delivery happens before Publish returns; each subscriber's channel
// preserves publish order.
func (t *MemoryTransport) Publish(topic string, data []byte) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if !t.connected.Load() {
		return ErrNotConnected
	}

	msg := &RawMessage{Topic: topic, Data: data}

	// Delivery happens under the read lock; channels are only closed
	// under the write lock, so a send never races a close.
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, sub := range t.subs[topic] {
		if !sub.closed.Load() {
			select {
			case sub.ch <- msg:
			default:
				// Buffer full, drop message
			}
		}
	}
	return nil
}

// Subscribe creates a subscription on a topic.
func (t *MemoryTransport) Subscribe(topic string) (RawSubscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if !t.connected.Load() {
		return nil, ErrNotConnected
	}

	sub := &memorySub{
		topic:     topic,
		ch:        make(chan *RawMessage, t.bufferSize),
		transport: t,
	}

	t.mu.Lock()
	t.subs[topic] = append(t.subs[topic], sub)
	t.mu.Unlock()

	return sub, nil
}

// Disconnect tears down every subscription and marks the transport
// unusable. A later Connect starts from a clean slate.
func (t *MemoryTransport) Disconnect() error {
	if !t.connected.Swap(false) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, subs := range t.subs {
		for _, sub := range subs {
			if !sub.closed.Swap(true) {
				close(sub.ch)
			}
		}
	}
	t.subs = make(map[string][]*memorySub)
	return nil
}

// SubscriptionCount reports active subscriptions across all topics.
func (t *MemoryTransport) SubscriptionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, subs := range t.subs {
		n += len(subs)
	}
	return n
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *RawMessage {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	t := s.transport
	t.mu.Lock()
	subs := t.subs[s.topic]
	for i, sub := range subs {
		if sub == s {
			t.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[s.topic]) == 0 {
		delete(t.subs, s.topic)
	}
	close(s.ch)
	t.mu.Unlock()
	return nil
}
