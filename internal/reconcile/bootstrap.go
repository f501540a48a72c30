package reconcile

import (
	"context"
	"strings"

	"github.com/pcarvalho/wacrm/internal/identity"
	"github.com/pcarvalho/wacrm/internal/keys"
	"go.uber.org/zap"
)

// IdentityResult pairs a phone key with its LID, when the transport knows
// one. LID is empty otherwise.
type IdentityResult struct {
	Phone string
	LID   string
}

// IdentityLookup is the bulk existence/identity query against the external
// transport. Satisfied by *wa.Adapter.
type IdentityLookup interface {
	ResolveIdentities(ctx context.Context, phones []string) ([]IdentityResult, error)
}

// BootstrapResult reports one finished bootstrap run.
type BootstrapResult struct {
	Registered int
	Err        error
}

// Bootstrap is the only pulled evidence source: for every phone key in the
// store that lacks a reverse mapping, ask the transport for its LID and
// register whatever comes back. Idempotent and safe to retry; a transport
// failure is contained here and reported, never raised into the event
// pipeline.
func (e *Engine) Bootstrap(ctx context.Context, lookup IdentityLookup) BootstrapResult {
	var phones []string
	for _, key := range e.store.Keys() {
		if keys.IsPhone(key) && e.ids.LIDFor(key) == "" {
			phones = append(phones, key)
		}
	}
	if len(phones) == 0 {
		return BootstrapResult{}
	}

	results, err := lookup.ResolveIdentities(ctx, phones)
	if err != nil {
		e.logger.Warn("identity bootstrap lookup failed", zap.Error(err))
		return BootstrapResult{Err: err}
	}

	registered := 0
	for _, res := range results {
		if res.LID == "" || res.Phone == "" {
			continue
		}
		ev := identity.Evidence{
			// Upstream sometimes answers with bare users; normalize
			// before the suffix guard sees them.
			LID:    ensureSuffix(res.LID, keys.LIDSuffix),
			Phone:  ensureSuffix(res.Phone, keys.PhoneSuffix),
			Source: identity.SourceBootstrap,
		}
		if e.register(ev) {
			registered++
		}
	}

	if registered > 0 {
		e.logger.Info("identity bootstrap complete", zap.Int("registered", registered))
	}
	return BootstrapResult{Registered: registered}
}

// StartBootstrap runs Bootstrap on its own goroutine. The returned channel
// receives exactly one result; the daemon ignores it, tests observe it.
func (e *Engine) StartBootstrap(ctx context.Context, lookup IdentityLookup) <-chan BootstrapResult {
	done := make(chan BootstrapResult, 1)
	go func() {
		done <- e.Bootstrap(ctx, lookup)
		close(done)
	}()
	return done
}

func ensureSuffix(key, suffix string) string {
	if strings.Contains(key, "@") {
		return key
	}
	return key + suffix
}
