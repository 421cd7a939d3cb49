// Package server provides the HTTP API of the CV publisher: publishing with
// live progress over Server-Sent Events, cancellation, job status, token
// checks, page previews and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/metrics"
	"github.com/jonathan/cv-publisher/internal/provider"
	"github.com/jonathan/cv-publisher/internal/publish"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/server/middleware"
	"github.com/jonathan/cv-publisher/internal/server/ratelimit"
)

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	orchestrator *publish.Orchestrator
	adapter      provider.Adapter
	renderer     *rendering.Renderer
	registry     *prom.Registry
	rateLimiter  *ratelimit.Limiter
	logger       *slog.Logger
	defaults     PublishDefaults
}

// PublishDefaults fill fields a publish request leaves empty.
type PublishDefaults struct {
	Project    string
	Template   string
	IncludePDF bool
}

// Config holds server configuration
type Config struct {
	Addr         string
	Orchestrator *publish.Orchestrator
	Adapter      provider.Adapter
	Renderer     *rendering.Renderer
	// Registry backs /metrics; nil serves the default registry.
	Registry *prom.Registry
	// Token is used when a request carries no Authorization header.
	Token     string
	Defaults  PublishDefaults
	RateLimit *ratelimit.Config
	Logger    *slog.Logger
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil || cfg.Adapter == nil || cfg.Renderer == nil {
		return nil, fmt.Errorf("server: orchestrator, adapter and renderer are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		adapter:      cfg.Adapter,
		renderer:     cfg.Renderer,
		registry:     cfg.Registry,
		rateLimiter:  ratelimit.NewLimiter(cfg.RateLimit),
		logger:       logger,
		defaults:     cfg.Defaults,
	}

	auth := middleware.BearerToken(cfg.Token)

	// Setup router
	mux := http.NewServeMux()
	mux.Handle("POST /publish", auth(http.HandlerFunc(s.handlePublish)))
	mux.HandleFunc("POST /publish/cancel", s.handleCancel)
	mux.HandleFunc("GET /publish/status", s.handleStatus)
	mux.Handle("POST /validate-token", auth(http.HandlerFunc(s.handleValidateToken)))
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("GET /templates", s.handleTemplates)
	mux.Handle("GET /metrics", metrics.HTTPHandler(cfg.Registry))
	mux.HandleFunc("GET /health", s.handleHealth)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: publish streams for as long as the build runs
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until ctx is canceled, then cancels any in-flight publish and
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	if s.orchestrator.Cancel() {
		s.logger.Info("Canceled in-flight publish")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over the limit of expensive endpoints
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		}
		if !info.Allowed {
			retry := int(info.RetryAfter.Round(time.Second).Seconds())
			if retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
			s.logger.Warn("Rate limit exceeded",
				slog.String("client", clientID(r)),
				slog.String("path", r.URL.Path))
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Rate limit exceeded. Please try again later.",
				"retry_after": retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			logfields.Duration(time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Error encoding JSON response", logfields.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// clientID is the remote IP of the request.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
