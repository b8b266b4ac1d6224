// Package api provides the HTTP REST and websocket surface of lanekb.
//
// Endpoints map 1:1 to the knowledge base manager and chat service
// contracts:
//
//	POST   /api/kb                    create knowledge base
//	GET    /api/kb                    list knowledge bases
//	GET    /api/kb/{id}               get knowledge base
//	DELETE /api/kb/{id}               delete knowledge base
//	POST   /api/kb/{id}/documents     upload document (multipart)
//	POST   /api/kb/{id}/process       build indices
//	POST   /api/kb/{id}/ask           one-shot retrieval
//	GET    /api/kb/{id}/transcripts   recent questions
//	GET    /api/kb/{id}/stream        websocket chat session
//	GET    /health                    liveness probe
//	GET    /ready                     readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - kb.go: knowledge base lifecycle endpoints
//   - ask.go: request/response retrieval endpoints
//   - stream.go: websocket chat sessions
//   - response.go: JSON response and error mapping helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/lanekb/lanekb/internal/chat"
	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3900"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds request header reads.
	ReadHeaderTimeout = 10 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the lanekb API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health *HealthHandler
	kb     *KBHandler
	ask    *AskHandler
	stream *StreamHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(manager *kb.Manager, service *chat.Service, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(manager, logger),
		kb:     NewKBHandler(manager, logger),
		ask:    NewAskHandler(service, logger),
		stream: NewStreamHandler(service, logger),
	}

	s.health.RegisterRoutes(mux)
	s.kb.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)
	s.stream.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully. Write timeouts are left unset because
// websocket sessions are long-lived.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
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
