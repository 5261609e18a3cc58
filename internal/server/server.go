// Package server exposes the synthesis adapter over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/kokorod/internal/bus"
	"github.com/loqalabs/kokorod/internal/config"
	"github.com/loqalabs/kokorod/internal/history"
	"github.com/loqalabs/kokorod/internal/synth"
)

type Server struct {
	cfg         config.Config
	logger      *slog.Logger
	adapter     *synth.Adapter
	history     *history.Store
	events      bus.Publisher
	metrics     *synthMetrics
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

// New assembles the server. The adapter must be constructed before serving
// begins; a nil adapter keeps the server permanently not-ready. The history
// store and event publisher are optional.
func New(cfg config.Config, logger *slog.Logger, adapter *synth.Adapter, store *history.Store, events bus.Publisher) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "http-server")),
		adapter: adapter,
		history: store,
		events:  events,
	}
}

// Handler builds the route table. Split out from Start so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Handler(metricHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("POST /tts", s.handleTTS)
	mux.HandleFunc("GET /history", s.handleHistory)
	if metricHandler != nil {
		mux.Handle("GET /metrics", metricHandler)
	}
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	s.tracerClose = shutdownTelemetry

	if s.metrics, err = newSynthMetrics(); err != nil {
		s.logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.HTTP.Bind, s.cfg.HTTP.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(metricHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if s.adapter != nil {
		s.ready.Store(true)
	}
	s.logger.Info("server started",
		slog.String("addr", addr),
		slog.String("engine_mode", s.cfg.Engine.Mode),
		slog.String("lang_code", s.cfg.Engine.LangCode))

	<-ctx.Done()
	s.logger.Info("server stopping")
	s.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	s.wg.Wait()

	if s.tracerClose != nil {
		if err := s.tracerClose(shutdownCtx); err != nil {
			s.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}
