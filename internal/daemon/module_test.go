package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/pcarvalho/wacrm/internal/bus"
)

func TestBootstrapOnConnectSurvivesImmediateConnect(t *testing.T) {
	b := bus.New()
	ran := make(chan struct{})

	cancel := bootstrapOnConnect(b, func(context.Context) {
		close(ran)
	})
	defer cancel()

	// The connection may settle before the waiting goroutine is even
	// scheduled; the buffered subscription must still catch the event.
	b.Emit(bus.KindConnected, nil)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("bootstrap did not run after connected event")
	}
}

func TestBootstrapOnConnectCancel(t *testing.T) {
	b := bus.New()
	ran := make(chan struct{})

	cancel := bootstrapOnConnect(b, func(context.Context) {
		close(ran)
	})
	cancel()
	time.Sleep(20 * time.Millisecond)

	b.Emit(bus.KindConnected, nil)

	select {
	case <-ran:
		t.Fatal("bootstrap ran after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
