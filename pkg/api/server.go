// Package api exposes the ledger over HTTP for a front end.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/engine"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/session"
	"ledger-core/pkg/store"
	"ledger-core/pkg/txlog"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is implemented by store layers that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the components the server routes to.
type Dependencies struct {
	Accounts *accounts.Store
	Sessions *session.Manager
	Engine   *engine.Engine
	Log      *txlog.Log

	// Store is reported by /health, and pinged when it implements Pinger.
	Store store.Layer

	Metrics metrics.MetricsCollector

	// Registry, when set, serves /metrics and records HTTP request metrics.
	Registry *prometheus.Registry

	Logger *logging.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns a default configuration. WriteTimeout leaves
// room for the commit delay on confirm.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server provides the ledger HTTP endpoints.
type Server struct {
	deps    Dependencies
	router  *mux.Router
	server  *http.Server
	config  ServerConfig
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	started time.Time
}

// NewServer wires the routes. The Prometheus registry, when present, gets
// the HTTP request metrics registered on it.
func NewServer(deps Dependencies, config ServerConfig) (*Server, error) {
	s := &Server{
		deps:    deps,
		router:  mux.NewRouter(),
		config:  config,
		metrics: metrics.OrNoOp(deps.Metrics),
		logger:  logging.OrGlobal(deps.Logger, "api"),
		started: time.Now(),
	}

	if deps.Registry != nil {
		hm := newHTTPMetrics()
		if err := hm.register(deps.Registry); err != nil {
			return nil, err
		}
		s.router.Use(hm.middleware)
		s.router.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics/json", s.handleMetricsJSON).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/accounts", s.handleRegister).Methods(http.MethodPost)

	v1.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	v1.HandleFunc("/session/pin", s.handleVerifyPIN).Methods(http.MethodPost)

	v1.HandleFunc("/account", s.handleGetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/account/card/block", s.handleBlockCard).Methods(http.MethodPost)
	v1.HandleFunc("/account/card/freeze", s.handleFreezeCard).Methods(http.MethodPost)
	v1.HandleFunc("/account/card/freeze", s.handleUnfreezeCard).Methods(http.MethodDelete)

	// Literal routes before /transactions/{id}.
	v1.HandleFunc("/transactions/pending", s.handleGetPending).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/pending", s.handleAbandon).Methods(http.MethodDelete)
	v1.HandleFunc("/transactions/pending/confirm", s.handleConfirm).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/quote", s.handleQuote).Methods(http.MethodPost)
	v1.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	v1.HandleFunc("/transactions", s.handleBegin).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)

	v1.HandleFunc("/quotes/flight", s.handleFlightQuote).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in a goroutine. Listen errors other than a clean shutdown
// are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", zap.String("addr", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(srw, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", routeTemplate(r)),
			zap.Int("status", srw.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}
