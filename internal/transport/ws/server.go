package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/config"
)

// Server is the HTTP listener hosting the WebSocket endpoint and the health
// check. It implements the lifecycle Service interface.
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *zap.Logger
}

// NewServer builds the HTTP server around the WebSocket handler.
//
// Precondition: handler and logger must be non-nil.
func NewServer(cfg config.ServerConfig, handler *Handler, logger *zap.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/ws", handler.ServeWS)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.Addr(),
			Handler:     router,
			ReadTimeout: cfg.ReadTimeout,
			// WriteTimeout is deliberately left unset: it would sever
			// long-lived WebSocket connections. Per-write deadlines are
			// enforced by the session write pump instead.
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins serving and blocks until the listener closes.
//
// Postcondition: Returns nil on graceful shutdown, or the listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening",
		zap.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the listener down, bounded by the configured
// shutdown timeout.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown", zap.Error(err))
	}
}
