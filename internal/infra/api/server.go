package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/usecase"
)

// Server exposes the chat use case over JSON and pushes state changes on /ws.
type Server struct {
	uc      usecase.ChatUseCase
	hub     *Hub
	timeout time.Duration
	log     *zerolog.Logger
	srv     *http.Server
}

func NewServer(cfg config.HTTPConfig, uc usecase.ChatUseCase, hub *Hub, log *zerolog.Logger) *Server {
	s := &Server{uc: uc, hub: hub, timeout: cfg.RequestTimeout, log: log}
	if hub != nil {
		hub.attach(uc)
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(Timeout(s.timeout))
		}
		r.Get("/state", s.getState)
		r.Get("/models", s.listModels)
		r.Get("/quick-actions", s.listQuickActions)
		r.Post("/sessions", s.createSession)
		r.Put("/sessions/current", s.selectSession)
		r.Get("/sessions/{id}", s.getSession)
		r.Post("/messages", s.postMessage)
		r.Put("/settings", s.putSettings)
	})
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.srv.Shutdown(ctx)
}
