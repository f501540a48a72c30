package autoreply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pcarvalho/wacrm/internal/bus"
)

type fakeResponder struct {
	reply string
	err   error
	calls int
}

func (f *fakeResponder) Generate(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeSender struct {
	queued []string
}

func (f *fakeSender) Enqueue(key, text string) (string, error) {
	f.queued = append(f.queued, key+"|"+text)
	return "q1", nil
}

type fixedOverrides map[string]Override

func (f fixedOverrides) AutoReplyOverride(key string) Override { return f[key] }

func TestDispatcherEndToEnd(t *testing.T) {
	b := bus.New()
	resp := &fakeResponder{reply: "generated reply"}
	snd := &fakeSender{}
	d := NewDispatcher(b, NewConfigStore(Config{Enabled: true, PrivateOnly: true}),
		fixedOverrides{}, resp, snd, nil)
	results := d.Results(4)

	d.Start(context.Background())
	defer d.Stop()

	b.Emit(bus.KindAutoReplyInbound, Inbound{
		RawKey:      privateKey,
		ResolvedKey: privateKey,
		Text:        "hello there",
	})

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("dispatch error: %v", res.Err)
		}
		if res.ReplyID != "q1" {
			t.Errorf("reply id = %q", res.ReplyID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dispatch result")
	}

	if resp.calls != 1 {
		t.Errorf("responder calls = %d, want 1", resp.calls)
	}
	if len(snd.queued) != 1 {
		t.Fatalf("queued = %v, want one entry", snd.queued)
	}
}

func TestDispatcherSuppressedSkipsResponder(t *testing.T) {
	b := bus.New()
	resp := &fakeResponder{reply: "never"}
	d := NewDispatcher(b, NewConfigStore(Config{Enabled: true}),
		fixedOverrides{privateKey: OverrideOff}, resp, &fakeSender{}, nil)

	decision := d.Handle(context.Background(), inbound(privateKey, "hi"))
	if decision.Dispatch {
		t.Fatal("expected suppression")
	}
	d.Stop()
	if resp.calls != 0 {
		t.Errorf("responder called %d times for suppressed message", resp.calls)
	}
}

func TestDispatcherGenerationFailureContained(t *testing.T) {
	b := bus.New()
	resp := &fakeResponder{err: errors.New("generator down")}
	snd := &fakeSender{}
	d := NewDispatcher(b, NewConfigStore(Config{Enabled: true}),
		fixedOverrides{}, resp, snd, nil)
	results := d.Results(1)

	d.Handle(context.Background(), inbound(privateKey, "hi"))
	d.Stop()

	select {
	case res := <-results:
		if res.Err == nil {
			t.Error("expected error result")
		}
	default:
		t.Fatal("no result recorded")
	}
	if len(snd.queued) != 0 {
		t.Errorf("queued = %v, want none on failure", snd.queued)
	}
}
