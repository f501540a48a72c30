// Package httpapi serves the daemon's local HTTP API: status, message
// queries, identity management, sending, auto-reply config, CRM, and
// Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pcarvalho/wacrm/internal/autoreply"
	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/contacts"
	"github.com/pcarvalho/wacrm/internal/crm"
	"github.com/pcarvalho/wacrm/internal/identity"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"github.com/pcarvalho/wacrm/internal/outbox"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/status"
)

// Deps are the components the API exposes.
type Deps struct {
	Machine   *status.Machine
	Store     *msgstore.Store
	Identity  *identity.Map
	Names     *contacts.Directory
	Engine    *reconcile.Engine
	Lookup    reconcile.IdentityLookup // nil until the transport is up
	Queue     *outbox.Queue
	CRM       *crm.Store
	AutoReply *autoreply.ConfigStore
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// Server is the HTTP API server.
type Server struct {
	deps Deps
	http *http.Server
}

// NewServer builds the server for addr. Logger may be nil.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the chi router. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/chats/{key}/messages", s.handleMessages)

		r.Route("/identity", func(r chi.Router) {
			r.Get("/", s.handleIdentityList)
			r.Post("/mappings", s.handleRegisterMapping)
			r.Post("/phone-shares", s.handlePhoneShare)
			r.Post("/bootstrap", s.handleBootstrap)
		})

		r.Post("/messages", s.handleSend)

		r.Get("/autoreply", s.handleAutoReplyGet)
		r.Put("/autoreply", s.handleAutoReplyPut)

		r.Route("/crm", func(r chi.Router) {
			r.Get("/tags", s.handleAllTags)
			r.Post("/notes", s.handleAddGlobalNote)
			r.Get("/notes", s.handleSearchNotes)
			r.Delete("/notes/{id}", s.handleDeleteNote)

			r.Route("/reminders", func(r chi.Router) {
				r.Get("/", s.handleListReminders)
				r.Post("/", s.handleAddReminder)
				r.Post("/{id}/complete", s.handleCompleteReminder)
				r.Post("/{id}/cancel", s.handleCancelReminder)
			})

			r.Route("/contacts/{key}", func(r chi.Router) {
				r.Get("/", s.handleProfile)
				r.Post("/notes", s.handleAddNote)
				r.Get("/notes", s.handleListNotes)
				r.Post("/tags", s.handleAddTags)
				r.Delete("/tags", s.handleRemoveTags)
				r.Put("/metadata", s.handleSetMetadata)
				r.Put("/autoreply", s.handleContactAutoReply)
			})
		})
	})

	return r
}

// Start begins serving.
func (s *Server) Start() error {
	s.deps.Logger.Info("http api listening", zap.String("addr", s.http.Addr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("http api stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
