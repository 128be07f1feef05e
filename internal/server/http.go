package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumeboost/internal/ai"
	"resumeboost/internal/analysis"
	"resumeboost/internal/billing"
	"resumeboost/internal/config"
	"resumeboost/internal/dashboard"
	rbErrors "resumeboost/internal/errors"
	"resumeboost/internal/observability"
	"resumeboost/internal/quota"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	AnalysisID string `json:"analysisId,omitempty"`
}

// Services bundles the application services the HTTP layer fronts.
type Services struct {
	Analysis  *analysis.Service
	Dashboard *dashboard.Service
	Billing   *billing.Service
	Quota     *quota.Service
	AI        *ai.Service
}

// Server holds configuration for the HTTP server
type Server struct {
	Version string

	Config   *config.Config
	Services Services

	RateLimiter *LimiterManager
	Obs         *observability.Manager
	Logger      *rbErrors.Logger
}

// NewServer creates a new Server instance
func NewServer(cfg *config.Config, version string, services Services, obs *observability.Manager, logger *rbErrors.Logger) *Server {
	var rateLimiter *LimiterManager
	if cfg.Server.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.Server.RateLimit.RequestsPerMin,
			cfg.Server.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Version:     version,
		Config:      cfg,
		Services:    services,
		RateLimiter: rateLimiter,
		Obs:         obs,
		Logger:      logger,
	}
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	mux := s.setupRoutes()
	handler := s.Obs.HTTPMiddleware()(mux)
	addr := fmt.Sprintf("%s:%s", s.Config.Server.Host, s.Config.Server.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		IdleTimeout:  s.Config.Server.IdleTimeout,
	}

	return s.startWithGracefulShutdown(httpServer)
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	tlsEnabled := s.Config.Server.TLSCertFile != "" && s.Config.Server.TLSKeyFile != ""

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", tlsEnabled)

		var err error
		if tlsEnabled {
			err = server.ListenAndServeTLS(s.Config.Server.TLSCertFile, s.Config.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())

		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}
