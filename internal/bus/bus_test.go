package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnConnected, Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindConnConnected {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConnConnected)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Publish should stamp events with a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("rt.", 10)
	defer unsub()

	b.Emit(KindConnDisconnected, nil)
	b.Emit(KindRTMessage, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindRTMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindRTMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The conn event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()
	unsub() // double unsubscribe must be safe

	b.Emit(KindChatUpdated, nil)

	// The channel is closed on unsubscribe and must carry no events.
	select {
	case evt, ok := <-ch:
		if ok {
			t.Errorf("received event after unsubscribe: %v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	b.Emit(KindChatUpdated, 1)
	// Buffer is full; this one is dropped rather than blocking.
	b.Emit(KindChatUpdated, 2)

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("payload = %v, want 1", evt.Payload)
	}
	select {
	case evt := <-ch:
		t.Errorf("second event should have been dropped, got %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
