// Package server exposes the comparison engine over HTTP: query CRUD, a
// websocket event stream, and operational endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/events"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/orchestrator"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/provider"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/scheduler"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

// Enqueuer submits tasks and exposes the dead letter queue.
type Enqueuer interface {
	Enqueue(kind scheduler.TaskKind, queryID string) (string, error)
	DeadLetters() []scheduler.DLQEntry
}

// Server holds the HTTP surface and its dependencies.
type Server struct {
	store    store.Store
	orch     *orchestrator.Orchestrator
	registry *provider.Registry
	notifier *events.Notifier
	tasks    Enqueuer

	httpServer *http.Server
}

// New wires the router and returns a server ready to start.
func New(cfg config.ServerConfig, st store.Store, orch *orchestrator.Orchestrator, reg *provider.Registry, notifier *events.Notifier, tasks Enqueuer) *Server {
	s := &Server{
		store:    st,
		orch:     orch,
		registry: reg,
		notifier: notifier,
		tasks:    tasks,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Route("/queries", func(r chi.Router) {
			r.Post("/", s.handleCreateQuery)
			r.Get("/", s.handleListQueries)
			r.Get("/{id}", s.handleGetQuery)
			r.Get("/{id}/events", s.handleQueryEvents)
			r.Delete("/{id}/cache", s.handleInvalidateCache)
		})
		r.Post("/credentials", s.handleSetCredential)
		r.Get("/dlq", s.handleDeadLetters)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	zap.L().Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return eris.Wrap(s.httpServer.Shutdown(ctx), "server: shutdown")
}

// requestLogger logs one line per request with latency and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
