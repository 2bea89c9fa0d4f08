package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP server
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig server settings
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig default server settings
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         5000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// NewHandler builds the routed handler with the middleware chain applied.
func NewHandler(config ServerConfig, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
		deps.Logger = logger
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}
	if deps.Feed != nil && len(config.AllowedOrigins) > 0 {
		origins := config.AllowedOrigins
		deps.Feed.SetCheckOrigin(func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || OriginAllowed(origins, origin)
		})
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, deps)

	chain := Chain(
		RecoveryMiddleware(logger),                 // 1. recover panics first
		LoggerMiddleware(logger),                   // 2. request log
		SecurityHeadersMiddleware,                  // 3. security headers
		CORSMiddleware(config.AllowedOrigins),      // 4. CORS
		RequestSizeMiddleware(config.MaxBodyBytes), // 5. body cap
	)
	return chain(mux)
}

// NewServer creates the HTTP server
func NewServer(config ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewHandler(config, deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// Start listens on the configured port and blocks until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}
