// Package api exposes the admin data layer over HTTP.
//
// Every endpoint is a read: list and detail views over users,
// conversations, and messages, plus aggregated dashboard reporting.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, request id, logging, CORS)
//   - params.go: query parameter parsing
//   - health.go: liveness and database health endpoints
//   - users.go, conversations.go, messages.go: entity endpoints
//   - stats.go: dashboard reporting endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8200"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Store is the slice of the data layer the HTTP handlers consume.
// *store.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	DBHealth(ctx context.Context) (*store.DBHealth, error)

	ListUsers(ctx context.Context, filter store.UserFilter, limit, offset int) (*store.Page[store.UserRow], error)
	GetUser(ctx context.Context, id int64, convLimit, convOffset int) (*store.UserDetail, error)

	ListConversations(ctx context.Context, filter store.ConversationFilter, limit, offset int) (*store.Page[store.ConversationRow], error)
	GetConversation(ctx context.Context, id int64) (*store.ConversationDetail, error)

	ListMessages(ctx context.Context, filter store.MessageFilter, limit, offset int) (*store.Page[store.MessageRow], error)

	DashboardStats(ctx context.Context) (*store.DashboardStats, error)
	Activity(ctx context.Context) (*store.Activity, error)
	TopTools(ctx context.Context, limit int) ([]store.ToolCount, error)
}

// Server is the HTTP server for the admin REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health        *HealthHandler
	users         *UserHandler
	conversations *ConversationHandler
	messages      *MessageHandler
	stats         *StatsHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(st Store, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:           mux,
		logger:        logger,
		health:        NewHealthHandler(st, logger),
		users:         NewUserHandler(st, logger),
		conversations: NewConversationHandler(st, logger),
		messages:      NewMessageHandler(st, logger),
		stats:         NewStatsHandler(st, logger),
	}

	// Register all routes
	s.health.RegisterRoutes(mux)
	s.users.RegisterRoutes(mux)
	s.conversations.RegisterRoutes(mux)
	s.messages.RegisterRoutes(mux)
	s.stats.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request id → logging → CORS → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		corsMiddleware,
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
