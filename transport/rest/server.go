package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

func New(logger *slog.Logger, port string, games gameUseCase) *Server {
	return &Server{
		logger: logger.With("component", "http"),
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(logger, games),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// NewRouter wires routes and returns an http.Handler.
func NewRouter(logger *slog.Logger, games gameUseCase) http.Handler {
	h := &handlers{
		logger: logger.With("component", "rest"),
		games:  games,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequest)

	r.Get("/ping", pingHandler)
	r.Get("/stats", h.stats)
	r.Post("/games", h.create)
	r.Route("/games/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.close)
		r.Post("/turn", h.turn)
		r.Post("/reset", h.reset)
		r.Get("/events", h.events)
	})

	return r
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (that *Server) Start() error {
	that.logger.Info("Starting HTTP server", "addr", that.srv.Addr)

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
