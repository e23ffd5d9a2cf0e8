// Package webui exposes the agent's operational HTTP surface: status and
// summary queries, manual collection and analysis, and scheduler control.
// Every /api route sits behind the ops password; /health does not.
package webui

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fin_backend/collector"
	"fin_backend/db"
	"fin_backend/fimcp"
	"fin_backend/logging"
	"fin_backend/quota"

	"go.uber.org/zap"
)

// CollectorControl is the slice of the collector the ops surface drives.
type CollectorControl interface {
	Collect(ctx context.Context) collector.CollectResult
	Start()
	Stop()
	IsRunning() bool
	Stats() collector.StatsSnapshot
}

// InsightGenerator is the slice of the insight coordinator the ops surface
// drives.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, force bool) (int, error)
}

// SessionReporter is the slice of the provider client the status endpoint
// reads.
type SessionReporter interface {
	Subject() string
	Session() fimcp.Session
}

// QuotaReporter is the slice of the quota ledger the status endpoint reads.
type QuotaReporter interface {
	Usage() quota.Check
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	// Port to listen on (default 3000).
	Port int
	// Host to bind to (default "localhost").
	Host string
	// ReadTimeout for requests (default 30s).
	ReadTimeout time.Duration
	// WriteTimeout for responses (default 30s).
	WriteTimeout time.Duration
	// IdleTimeout for keep-alive connections (default 120s).
	IdleTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown (default 30s).
	ShutdownTimeout time.Duration

	// ProviderURL and Interval are echoed on the status endpoint.
	ProviderURL string
	Interval    time.Duration
}

// DefaultServerConfig returns a ServerConfig with the usual defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            3000,
		Host:            "localhost",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the ops HTTP server. It owns no domain state; every handler
// delegates to the collector, coordinator, repository, or quota ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	logger     *logging.Logger

	guard       *PasswordGuard
	collector   CollectorControl
	coordinator InsightGenerator
	repo        *db.Repository
	quota       QuotaReporter
	session     SessionReporter
}

// NewServer wires the ops surface. guard must not be nil: the surface never
// runs unauthenticated.
func NewServer(
	config ServerConfig,
	guard *PasswordGuard,
	collectorControl CollectorControl,
	coordinator InsightGenerator,
	repo *db.Repository,
	quotaReporter QuotaReporter,
	session SessionReporter,
	logger *logging.Logger,
) (*Server, error) {
	if guard == nil {
		return nil, fmt.Errorf("password guard is required")
	}

	defaults := DefaultServerConfig()
	if config.Port <= 0 {
		config.Port = defaults.Port
	}
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		logger:      logger.Named("webui"),
		guard:       guard,
		collector:   collectorControl,
		coordinator: coordinator,
		repo:        repo,
		quota:       quotaReporter,
		session:     session,
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.logger.Info("ops server created", zap.String("addr", addr))
	return s, nil
}

func (s *Server) setupRoutes() {
	// Liveness check stays open; everything else requires the ops password.
	s.mux.HandleFunc("/health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("/api/status", s.handleStatus)
	api.HandleFunc("/api/summary", s.handleSummary)
	api.HandleFunc("/api/insights", s.handleInsights)
	api.HandleFunc("/api/collect", s.handleCollect)
	api.HandleFunc("/api/analyze", s.handleAnalyze)
	api.HandleFunc("/api/scheduler/start", s.handleSchedulerStart)
	api.HandleFunc("/api/scheduler/stop", s.handleSchedulerStop)
	api.HandleFunc("/api/query", s.handleQuery)

	s.mux.Handle("/api/", s.guard.Middleware(api))
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens for requests and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("ops server starting", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.logger.Info("ops server stopped")
	return nil
}
