package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/hostprov/internal/shell/api"
	"github.com/artpar/hostprov/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitPanelError      = 3
	ExitHTTPServerError = 4
	ExitProvisionFailed = 5
)

// =============================================================================
// Server
// =============================================================================

// Server represents the hostprov application server.
type Server struct {
	config     *Config
	app        *App
	httpServer *http.Server
	sslWatcher *workers.SSLWatcher
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook.secret not set, payment webhook endpoint disabled")
	}

	handler := api.SetupAPI(api.APIConfig{
		Checkout:      app.checkout,
		Panel:         app.orchestrator,
		DB:            app.store,
		Logger:        logger,
		Gatherer:      app.registry,
		WebhookSecret: cfg.Webhook.Secret,
		Version:       Version,
		ServerURL:     cfg.Server.PublicURL,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Flip ssl_active once AutoSSL issues the certificate
	var sslWatcher *workers.SSLWatcher
	if cfg.SSL.WatchEnabled {
		sslWatcher = workers.NewSSLWatcher(app.store, app.prober.Probe, workers.SSLWatcherConfig{
			Interval:      cfg.SSL.WatchInterval,
			MaxConcurrent: cfg.SSL.WatchParallel,
			BatchSize:     cfg.SSL.WatchBatchSize,
		}, logger)
		logger.Info("ssl watcher enabled", "interval", cfg.SSL.WatchInterval)
	} else {
		logger.Info("ssl watcher disabled")
	}

	return &Server{
		config:     cfg,
		app:        app,
		httpServer: httpServer,
		sslWatcher: sslWatcher,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.sslWatcher != nil {
		s.sslWatcher.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// In-flight orders finish before the database closes
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.sslWatcher != nil {
		s.sslWatcher.Stop()
	}

	if err := s.app.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
