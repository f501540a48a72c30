package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 4)
	defer unsub()

	b.Emit(KindMessage, "payload")

	select {
	case evt := <-ch:
		if evt.Kind != KindMessage {
			t.Errorf("kind = %q, want %q", evt.Kind, KindMessage)
		}
		if evt.Payload != "payload" {
			t.Errorf("payload = %v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	waCh, unsubWA := b.Subscribe("wa.", 4)
	defer unsubWA()
	allCh, unsubAll := b.Subscribe("", 4)
	defer unsubAll()

	b.Emit(KindConnected, nil)

	select {
	case evt := <-waCh:
		t.Errorf("wa. subscriber received %q", evt.Kind)
	default:
	}

	select {
	case evt := <-allCh:
		if evt.Kind != KindConnected {
			t.Errorf("kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("catch-all subscriber missed event")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("wa.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Emit(KindMessage, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 4)
	unsub()
	unsub() // safe to call twice

	b.Emit(KindMessage, nil)
	select {
	case evt := <-ch:
		t.Errorf("unsubscribed channel received %q", evt.Kind)
	default:
	}
}
