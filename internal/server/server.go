package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelarena/internal/arena"
	"modelarena/internal/backend"
	"modelarena/internal/config"
	"modelarena/internal/core"
	"modelarena/internal/generator"
	"modelarena/internal/metrics"
	"modelarena/internal/rating"
	"modelarena/internal/storage"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	router *gin.Engine

	arena          *arena.Service
	battleStore    core.BattleStore
	ratings        *rating.Tracker
	metricsService *metrics.MetricsService

	config config.ServerConfig

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer wires storage, backends and the battle service behind the HTTP routes.
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}
	if len(cfg.Models) < core.MinModelsPerBattle {
		return nil, fmt.Errorf("%w: %d configured", core.ErrNotEnoughModels, len(cfg.Models))
	}

	cfg.Logger.Info("Initializing arena with %d models", len(cfg.Models))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})
	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	battleStore, err := storage.InitBattleStore(ctx, cfg.RedisURL, cfg.Arena.KeyPrefix,
		cfg.Arena.StrictVersions, cfg.Arena.ProbeInterval, cfg.Logger)
	if err != nil {
		_ = metricsService.Close()
		return nil, fmt.Errorf("failed to create battle store: %w", err)
	}

	ratingStore, err := rating.OpenStore(ctx, rating.StoreOptions{
		Backend:   cfg.Ratings.Backend,
		RedisURL:  cfg.RedisURL,
		KeyPrefix: cfg.Arena.KeyPrefix,
		DBPath:    cfg.Ratings.DBPath,
		Initial:   cfg.Ratings.Initial,
	}, cfg.Logger)
	if err != nil {
		_ = battleStore.Close()
		_ = metricsService.Close()
		return nil, fmt.Errorf("failed to open rating store: %w", err)
	}

	ids := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		ids = append(ids, m.ID)
	}
	tracker := rating.NewTracker(ratingStore, cfg.Ratings.K, cfg.Ratings.Initial, ids, cfg.Logger)

	httpClient := createOptimizedHTTPClient(cfg.HTTPClientSettings)
	client := backend.NewClient(httpClient, metricsService, cfg.Logger)

	service := arena.NewService(arena.Options{
		Store:     battleStore,
		Generator: generator.New(client, cfg.Models, cfg.Arena.BothFailPolicy, cfg.Logger),
		Ratings:   tracker,
		Metrics:   metricsService,
		Logger:    cfg.Logger,
		Models:    cfg.Models,
		Settings:  cfg.Arena,
	})

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:           cfg.Port,
		ginMode:        cfg.GinMode,
		arena:          service,
		battleStore:    battleStore,
		ratings:        tracker,
		metricsService: metricsService,
		config:         cfg,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	server.setupRoutes()

	cfg.Logger.Info("Battles stored in %s mode", battleStore.Status())
	return server, nil
}

func createOptimizedHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
	}

	// Per-call deadlines come from each model's timeout; this is only a ceiling.
	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // generation on a slow local backend
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("Server starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
		s.shutdownCancel()
	}()
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.battleStore != nil {
		if err := s.battleStore.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close battle store: %w", err))
		}
	}

	if s.ratings != nil {
		if err := s.ratings.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close rating store: %w", err))
		}
	}

	return closeErr
}
