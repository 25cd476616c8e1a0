// Package server provides the HTTP API over the action safety engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"adwatch-hq/sentinel/pkg/audit"
	"adwatch-hq/sentinel/pkg/config"
	"adwatch-hq/sentinel/pkg/policy/engine"
)

// Server is the HTTP API server for the policy engine.
type Server struct {
	config       config.ServerConfig
	engine       *engine.Engine
	auditor      *audit.Recorder
	auditStore   audit.Store
	metricsPath  string
	metricsH     http.Handler
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options configures a Server.
type Options struct {
	// Config is the HTTP server configuration. Required.
	Config config.ServerConfig

	// Engine is the decision engine. Required.
	Engine *engine.Engine

	// Auditor records admin and decision events. Optional.
	Auditor *audit.Recorder

	// AuditStore serves audit trail queries. Optional.
	AuditStore audit.Store

	// MetricsPath mounts the metrics handler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler

	// Logger receives request logs. Default: slog.Default().
	Logger *slog.Logger
}

// New creates a server from the given options.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		config:       opts.Config,
		engine:       opts.Engine,
		auditor:      opts.Auditor,
		auditStore:   opts.AuditStore,
		metricsPath:  opts.MetricsPath,
		metricsH:     opts.MetricsHandler,
		logger:       opts.Logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/check", s.handleCheck)
	mux.HandleFunc("POST /api/v1/check/batch", s.handleCheckBatch)
	mux.HandleFunc("POST /api/v1/executions", s.handleRecordExecution)
	mux.HandleFunc("GET /api/v1/quota", s.handleQuotaStatus)
	mux.HandleFunc("POST /api/v1/quota/reset", s.handleQuotaReset)
	mux.HandleFunc("GET /api/v1/emergency", s.handleEmergencyState)
	mux.HandleFunc("POST /api/v1/emergency/activate", s.handleEmergencyActivate)
	mux.HandleFunc("POST /api/v1/emergency/deactivate", s.handleEmergencyDeactivate)
	mux.HandleFunc("GET /api/v1/whitelist", s.handleWhitelistList)
	mux.HandleFunc("POST /api/v1/whitelist", s.handleWhitelistAdd)
	mux.HandleFunc("DELETE /api/v1/whitelist/{entity_id}", s.handleWhitelistRemove)
	mux.HandleFunc("GET /api/v1/ruleset", s.handleRuleSet)
	mux.HandleFunc("GET /api/v1/audit", s.handleAuditList)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.metricsPath != "" && s.metricsH != nil {
		mux.Handle("GET "+s.metricsPath, s.metricsH)
	}

	return s.withRequestLogging(mux)
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
	})
}
