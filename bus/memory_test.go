package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newConnectedMemory(t *testing.T) *MemoryTransport {
	t.Helper()
	mt := NewMemoryTransport(0)
	if err := mt.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	return mt
}

func TestMemoryTransportPublishSubscribe(t *testing.T) {
	mt := newConnectedMemory(t)
	defer mt.Disconnect()

	sub, err := mt.Subscribe("test.topic")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	if err := mt.Publish("test.topic", []byte("hello")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "hello" {
			t.Errorf("data = %q", msg.Data)
		}
		if msg.Topic != "test.topic" {
			t.Errorf("topic = %q", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestMemoryTransportConnectIdempotent(t *testing.T) {
	mt := NewMemoryTransport(0)

	for i := 0; i < 3; i++ {
		if err := mt.Connect(context.Background()); err != nil {
			t.Fatalf("Connect #%d error: %v", i, err)
		}
	}
	if !mt.Connected() {
		t.Error("not connected after Connect")
	}
	mt.Disconnect()
}

func TestMemoryTransportNotConnected(t *testing.T) {
	mt := NewMemoryTransport(0)

	if err := mt.Publish("t", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish = %v, want ErrNotConnected", err)
	}
	if _, err := mt.Subscribe("t"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe = %v, want ErrNotConnected", err)
	}
}

func TestMemoryTransportPublishAfterDisconnect(t *testing.T) {
	mt := newConnectedMemory(t)
	mt.Disconnect()

	if err := mt.Publish("t", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestMemoryTransportDisconnectClosesSubscriptions(t *testing.T) {
	mt := newConnectedMemory(t)

	sub, _ := mt.Subscribe("test.topic")
	mt.Disconnect()

	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Error("received message after disconnect")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed on disconnect")
	}

	if got := mt.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount = %d after disconnect", got)
	}
}

func TestMemoryTransportUnsubscribe(t *testing.T) {
	mt := newConnectedMemory(t)
	defer mt.Disconnect()

	sub, _ := mt.Subscribe("test.topic")
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe error: %v", err)
	}
	// Safe to call again.
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe error: %v", err)
	}

	if got := mt.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount = %d after unsubscribe", got)
	}

	if err := mt.Publish("test.topic", []byte("x")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if _, ok := <-sub.Messages(); ok {
		t.Error("received message after unsubscribe")
	}
}

func TestMemoryTransportExactTopicMatch(t *testing.T) {
	mt := newConnectedMemory(t)
	defer mt.Disconnect()

	sub, _ := mt.Subscribe("system.file.search")
	mt.Publish("system.file", []byte("no"))
	mt.Publish("system.file.search.extra", []byte("no"))
	mt.Publish("system.file.search", []byte("yes"))

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "yes" {
			t.Errorf("got %q, want only exact-topic message", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("exact-topic message never arrived")
	}
}

func TestMemoryTransportPerTopicOrder(t *testing.T) {
	mt := newConnectedMemory(t)
	defer mt.Disconnect()

	sub, _ := mt.Subscribe("ordered")
	const n = 100
	for i := 0; i < n; i++ {
		mt.Publish("ordered", []byte(fmt.Sprintf("%03d", i)))
	}

	for i := 0; i < n; i++ {
		select {
		case msg := <-sub.Messages():
			want := fmt.Sprintf("%03d", i)
			if string(msg.Data) != want {
				t.Fatalf("message %d = %q, want %q", i, msg.Data, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d never arrived", i)
		}
	}
}

func TestMemoryTransportReconnect(t *testing.T) {
	mt := newConnectedMemory(t)
	mt.Disconnect()

	if err := mt.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	defer mt.Disconnect()

	sub, err := mt.Subscribe("after.reconnect")
	if err != nil {
		t.Fatalf("Subscribe after reconnect error: %v", err)
	}
	mt.Publish("after.reconnect", []byte("back"))

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "back" {
			t.Errorf("data = %q", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery after reconnect")
	}
}
