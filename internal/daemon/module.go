// Package daemon composes the application with fx and owns its lifecycle.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pcarvalho/wacrm/internal/autoreply"
	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/config"
	"github.com/pcarvalho/wacrm/internal/contacts"
	"github.com/pcarvalho/wacrm/internal/crm"
	"github.com/pcarvalho/wacrm/internal/httpapi"
	"github.com/pcarvalho/wacrm/internal/identity"
	"github.com/pcarvalho/wacrm/internal/lock"
	"github.com/pcarvalho/wacrm/internal/logging"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"github.com/pcarvalho/wacrm/internal/outbox"
	"github.com/pcarvalho/wacrm/internal/persist"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/responder"
	"github.com/pcarvalho/wacrm/internal/session"
	"github.com/pcarvalho/wacrm/internal/status"
	"github.com/pcarvalho/wacrm/internal/wa"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module composes all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideIdentityMap,
			provideMessageStore,
			provideNameDirectory,
			provideCRM,
			provideAutoReplyConfig,
			provideQueue,
			provideFlusher,
			provideAdapter,
			provideEngine,
			provideResponder,
			provideDispatcher,
			provideSender,
			provideHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideIdentityMap(logger *zap.Logger) *identity.Map {
	return identity.NewMap(logger)
}

func provideMessageStore(ids *identity.Map, logger *zap.Logger) *msgstore.Store {
	return msgstore.New(ids, logger)
}

func provideNameDirectory(logger *zap.Logger) *contacts.Directory {
	return contacts.NewDirectory(logger)
}

func provideCRM(logger *zap.Logger) *crm.Store {
	return crm.NewStore(logger)
}

func provideAutoReplyConfig(p Params) *autoreply.ConfigStore {
	return autoreply.NewConfigStore(p.Config.AutoReply)
}

func provideQueue() *outbox.Queue {
	return outbox.NewQueue()
}

func provideFlusher(
	p Params,
	logger *zap.Logger,
	ids *identity.Map,
	store *msgstore.Store,
	names *contacts.Directory,
	crmStore *crm.Store,
	arCfg *autoreply.ConfigStore,
	queue *outbox.Queue,
) *persist.Flusher {
	f := persist.NewFlusher(session.SnapshotDir(p.SessionName), p.Config.FlushInterval(), logger)
	f.Register("identity", ids)
	f.Register("messages", store)
	f.Register("names", names)
	f.Register("crm", crmStore)
	f.Register("autoreply", arCfg)
	f.Register("outbox", queue)
	return f
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideEngine(ids *identity.Map, store *msgstore.Store, names *contacts.Directory, b *bus.Bus, logger *zap.Logger) *reconcile.Engine {
	return reconcile.NewEngine(ids, store, names, b, logger)
}

// provideResponder returns nil when no generation path is configured; the
// dispatcher is then left unstarted and auto-reply is effectively off.
func provideResponder(p Params, logger *zap.Logger) *responder.Client {
	rc := p.Config.Responder
	if rc.Endpoint == "" && rc.OpenAIKey == "" {
		logger.Warn("no responder endpoint or OpenAI key configured, auto-reply disabled")
		return nil
	}
	client, err := responder.New(responder.Options{
		Endpoint:  rc.Endpoint,
		OpenAIKey: rc.OpenAIKey,
		Model:     rc.Model,
		Logger:    logger,
	})
	if err != nil {
		logger.Warn("responder unavailable", zap.Error(err))
		return nil
	}
	return client
}

func provideDispatcher(
	b *bus.Bus,
	arCfg *autoreply.ConfigStore,
	crmStore *crm.Store,
	client *responder.Client,
	queue *outbox.Queue,
	logger *zap.Logger,
) *autoreply.Dispatcher {
	if client == nil {
		return nil
	}
	return autoreply.NewDispatcher(b, arCfg, crmStore, client, queue, logger)
}

func provideSender(queue *outbox.Queue, store *msgstore.Store, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(queue, store, adapter, b, logger)
}

func provideHTTPServer(
	p Params,
	machine *status.Machine,
	store *msgstore.Store,
	ids *identity.Map,
	names *contacts.Directory,
	engine *reconcile.Engine,
	adapter *wa.Adapter,
	queue *outbox.Queue,
	crmStore *crm.Store,
	arCfg *autoreply.ConfigStore,
	b *bus.Bus,
	logger *zap.Logger,
) *httpapi.Server {
	return httpapi.NewServer(p.Config.ListenAddr, httpapi.Deps{
		Machine:   machine,
		Store:     store,
		Identity:  ids,
		Names:     names,
		Engine:    engine,
		Lookup:    adapter,
		Queue:     queue,
		CRM:       crmStore,
		AutoReply: arCfg,
		Bus:       b,
		Logger:    logger,
	})
}

// bootstrapOnConnect runs fn once after the next connected event. The
// subscription is taken before this returns, so a connection completing
// immediately after cannot slip past it. The returned func cancels the
// wait and fn's context.
func bootstrapOnConnect(b *bus.Bus, fn func(context.Context)) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	ch, unsub := b.Subscribe(bus.KindConnected, 1)
	go func() {
		defer unsub()
		select {
		case <-ch:
			fn(ctx)
		case <-ctx.Done():
		}
	}()
	return cancel
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *httpapi.Server,
	lk *lock.Lock,
	adapter *wa.Adapter,
	engine *reconcile.Engine,
	dispatcher *autoreply.Dispatcher,
	sender *outbox.Sender,
	flusher *persist.Flusher,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	var cancelBootstrap context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			flusher.RestoreAll()
			engine.Start(context.Background())
			engine.RecoverNames()

			handler := wa.NewEventHandler(adapter, b, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			if dispatcher != nil {
				dispatcher.Start(context.Background())
			}
			sender.Start(context.Background())
			flusher.Start(context.Background())
			_ = srv.Start()

			// Run the identity bootstrap once the connection settles.
			cancelBootstrap = bootstrapOnConnect(b, func(ctx context.Context) {
				engine.StartBootstrap(ctx, adapter)
			})

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, starting QR pairing")
				_ = machine.Transition(status.AuthRequired)
				go func() {
					events, err := adapter.StartQRAuth(context.Background())
					if err != nil {
						logger.Error("QR pairing failed to start", zap.Error(err))
						_ = machine.Transition(status.Error)
						return
					}
					for evt := range events {
						switch evt.Type {
						case wa.AuthEventQRCode:
							logger.Info("scan the QR code to pair", zap.String("png", evt.QRPath))
						case wa.AuthEventAuthenticated:
							logger.Info("device paired")
						case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
							logger.Error("pairing failed", zap.String("reason", evt.Message))
							_ = machine.Transition(status.Error)
						}
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancelBootstrap != nil {
				cancelBootstrap()
			}
			if dispatcher != nil {
				dispatcher.Stop()
			}
			sender.Stop()
			engine.Stop()
			adapter.Disconnect()
			_ = srv.Stop(ctx)
			flusher.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
