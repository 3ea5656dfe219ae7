package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/api/middleware"
	"github.com/pixelrealm/territory-engine/internal/api/rest"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/ratelimit"
)

// Config holds the server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Auth         middleware.AuthConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	ledger     *engine.Ledger
	finalizer  *engine.Finalizer
	admin      *engine.Admin
	reader     *engine.Reader
	bidLimiter ratelimit.Limiter
	httpServer *http.Server
}

// New creates a new API server
func New(
	cfg Config,
	ledger *engine.Ledger,
	finalizer *engine.Finalizer,
	admin *engine.Admin,
	reader *engine.Reader,
	bidLimiter ratelimit.Limiter,
) *Server {
	if bidLimiter == nil {
		bidLimiter = ratelimit.NewNoopLimiter()
	}
	return &Server{
		config:     cfg,
		ledger:     ledger,
		finalizer:  finalizer,
		admin:      admin,
		reader:     reader,
		bidLimiter: bidLimiter,
	}
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())

	restHandler := rest.NewHandler(s.ledger, s.finalizer, s.admin, s.reader)
	rest.SetupRoutes(router, restHandler, s.config.Auth, s.bidLimiter)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
