package autoreply

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/metrics"
	"go.uber.org/zap"
)

// Responder turns an instruction into generated reply text.
type Responder interface {
	Generate(ctx context.Context, key, instruction string) (string, error)
}

// Sender queues an outgoing message. Satisfied by *outbox.Queue.
type Sender interface {
	Enqueue(key, text string) (string, error)
}

// OverrideSource looks up the per-contact override. Satisfied by *crm.Store.
type OverrideSource interface {
	AutoReplyOverride(key string) Override
}

// Result reports one finished dispatch attempt. Tests observe these; the
// daemon only logs them.
type Result struct {
	Key      string
	Decision Decision
	ReplyID  string
	Err      error
}

// Dispatcher consumes inbound events from the bus, applies the policy, and
// runs generation calls on their own goroutines so a slow generator never
// blocks message ingestion.
type Dispatcher struct {
	bus       *bus.Bus
	cfg       *ConfigStore
	overrides OverrideSource
	responder Responder
	sender    Sender
	logger    *zap.Logger

	genTimeout time.Duration
	cancel     context.CancelFunc
	inflight   sync.WaitGroup

	mu      sync.Mutex
	results chan Result
}

// NewDispatcher wires the dispatcher. All collaborators are required except
// logger.
func NewDispatcher(b *bus.Bus, cfg *ConfigStore, overrides OverrideSource, responder Responder, sender Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		bus:        b,
		cfg:        cfg,
		overrides:  overrides,
		responder:  responder,
		sender:     sender,
		logger:     logger,
		genTimeout: 2 * time.Minute,
	}
}

// Results exposes a channel of completed dispatch attempts for tests. Must
// be called before Start.
func (d *Dispatcher) Results(buffer int) <-chan Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.results == nil {
		d.results = make(chan Result, buffer)
	}
	return d.results
}

// Start subscribes to inbound auto-reply events.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	ch, unsub := d.bus.Subscribe(bus.KindAutoReplyInbound, 128)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				in, ok := evt.Payload.(Inbound)
				if !ok {
					d.logger.Warn("unexpected autoreply payload", zap.String("kind", evt.Kind))
					continue
				}
				d.handle(ctx, in)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the subscription and waits for in-flight generations.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.inflight.Wait()
}

// Handle evaluates the policy for one inbound message and dispatches when
// allowed. Exported for the engine tests; Start feeds it from the bus.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) Decision {
	return d.handle(ctx, in)
}

func (d *Dispatcher) handle(ctx context.Context, in Inbound) Decision {
	decision := Decide(in, d.overrides.AutoReplyOverride(in.ResolvedKey), d.cfg.Get())
	metrics.AutoReplies.WithLabelValues(decision.Reason).Inc()

	if !decision.Dispatch {
		d.logger.Debug("auto-reply suppressed",
			zap.String("key", in.ResolvedKey),
			zap.String("reason", decision.Reason))
		return decision
	}

	d.logger.Info("auto-reply dispatching",
		zap.String("key", decision.Key),
		zap.Int("text_len", len(decision.Text)))

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.generate(ctx, decision)
	}()
	return decision
}

func (d *Dispatcher) generate(ctx context.Context, decision Decision) {
	ctx, cancel := context.WithTimeout(ctx, d.genTimeout)
	defer cancel()

	instruction := fmt.Sprintf(
		"Someone sent this message: %q. Reply naturally as the assistant. Be helpful and friendly.",
		decision.Text)

	res := Result{Key: decision.Key, Decision: decision}

	reply, err := d.responder.Generate(ctx, decision.Key, instruction)
	if err != nil {
		res.Err = err
		d.logger.Error("auto-reply generation failed",
			zap.String("key", decision.Key), zap.Error(err))
	} else if reply != "" {
		res.ReplyID, res.Err = d.sender.Enqueue(decision.Key, reply)
		if res.Err != nil {
			d.logger.Error("auto-reply enqueue failed",
				zap.String("key", decision.Key), zap.Error(res.Err))
		} else {
			d.logger.Info("auto-reply queued",
				zap.String("key", decision.Key), zap.String("reply_id", res.ReplyID))
		}
	}

	d.mu.Lock()
	results := d.results
	d.mu.Unlock()
	if results != nil {
		select {
		case results <- res:
		default:
		}
	}
}
