package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/logging"
)

type handlerKind int

const (
	kindEvent handlerKind = iota
	kindReply
)

// Subscription is an active handler registration. It lives from
// Subscribe/ReplyHandler until Unsubscribe or bus disconnect.
type Subscription struct {
	topic     string
	kind      handlerKind
	onEvent   EventHandler
	onRequest ReplyFunc

	raw    RawSubscription
	d      *dispatcher
	closed atomic.Bool
	done   chan struct{}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe deregisters the handler and cancels the underlying
// transport subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.d.remove(s)
	return s.raw.Unsubscribe()
}

// dispatcher routes inbound envelopes to registered handlers. It is the
// subscription manager: handlers are kept in an explicit registry keyed
// by topic and kind, and each subscription runs one pump goroutine that
// invokes its handlers in transport delivery order. The pump is fed by
// the transport's buffered channel, so a slow handler delays only its
// own topic, never the transport's inbound loop or other handlers.
type dispatcher struct {
	transport Transport
	log       *logging.Logger
	send      func(topic string, env *Envelope) error

	mu      sync.Mutex
	events  map[string][]*Subscription
	replies map[string]*Subscription
	closed  bool
}

func newDispatcher(transport Transport, log *logging.Logger, send func(string, *Envelope) error) *dispatcher {
	return &dispatcher{
		transport: transport,
		log:       log,
		send:      send,
		events:    make(map[string][]*Subscription),
		replies:   make(map[string]*Subscription),
	}
}

// addEventSubscription registers a fire-on-every-message handler.
func (d *dispatcher) addEventSubscription(topic string, h EventHandler) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	raw, err := d.transport.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		topic:   topic,
		kind:    kindEvent,
		onEvent: h,
		raw:     raw,
		d:       d,
		done:    make(chan struct{}),
	}
	d.events[topic] = append(d.events[topic], sub)

	go sub.pump()
	return sub, nil
}

// addReplySubscription registers a respond-once handler. A topic has at
// most one reply provider; a second registration fails with
// ErrTopicClaimed rather than racing the first for requests.
func (d *dispatcher) addReplySubscription(topic string, fn ReplyFunc) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if _, claimed := d.replies[topic]; claimed {
		return nil, fmt.Errorf("%w: %s", ErrTopicClaimed, topic)
	}

	raw, err := d.transport.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		topic:     topic,
		kind:      kindReply,
		onRequest: fn,
		raw:       raw,
		d:         d,
		done:      make(chan struct{}),
	}
	d.replies[topic] = sub

	go sub.pump()
	return sub, nil
}

// remove deregisters a subscription.
func (d *dispatcher) remove(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch s.kind {
	case kindEvent:
		subs := d.events[s.topic]
		for i, sub := range subs {
			if sub == s {
				d.events[s.topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(d.events[s.topic]) == 0 {
			delete(d.events, s.topic)
		}
	case kindReply:
		if d.replies[s.topic] == s {
			delete(d.replies, s.topic)
		}
	}
}

// count reports registered subscriptions of both kinds.
func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.replies)
	for _, subs := range d.events {
		n += len(subs)
	}
	return n
}

// closeAll tears down every subscription and waits for all pumps to
// exit, so no handler runs after disconnect.
func (d *dispatcher) closeAll() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	var all []*Subscription
	for _, subs := range d.events {
		all = append(all, subs...)
	}
	for _, sub := range d.replies {
		all = append(all, sub)
	}
	d.events = make(map[string][]*Subscription)
	d.replies = make(map[string]*Subscription)
	d.mu.Unlock()

	for _, sub := range all {
		sub.closed.Store(true)
		sub.raw.Unsubscribe()
	}
	for _, sub := range all {
		<-sub.done
	}
}

// pump reads raw messages for one subscription and invokes its handler
// in delivery order. It exits when the transport subscription's channel
// closes.
func (s *Subscription) pump() {
	defer close(s.done)

	for raw := range s.raw.Messages() {
		env, err := decodeEnvelope(raw.Topic, raw.Data)
		if err != nil {
			s.d.log.DecodeFailure(raw.Topic, err)
			continue
		}
		s.d.dispatch(s, env)
	}
}

// dispatch invokes one subscription's handler for one envelope. A
// handler failure (error return or panic) is logged and contained; it
// never stops dispatch of later messages or crashes the pump.
func (d *dispatcher) dispatch(s *Subscription, env *Envelope) {
	switch s.kind {
	case kindEvent:
		if err := invokeEvent(s.onEvent, env); err != nil {
			d.log.HandlerError(env.Topic, err)
		}
	case kindReply:
		if !env.isRequest() {
			// A bare event on a reply-provider topic has no
			// reply path; nothing to do.
			d.log.Debug("non_request_on_reply_topic", map[string]interface{}{
				"topic": env.Topic,
			})
			return
		}
		resp, err := invokeReply(s.onRequest, env)
		if err != nil {
			d.log.HandlerError(env.Topic, err)
			return
		}
		reply := &Envelope{
			Topic:         env.ReplyTo,
			Payload:       resp,
			CorrelationID: env.CorrelationID,
		}
		if err := d.send(env.ReplyTo, reply); err != nil {
			d.log.HandlerError(env.Topic, fmt.Errorf("publish reply: %w", err))
		}
	}
}

func invokeEvent(h EventHandler, env *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	h(&Message{Topic: env.Topic, Payload: env.Payload})
	return nil
}

func invokeReply(fn ReplyFunc, env *Envelope) (resp Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(env.Payload)
}
