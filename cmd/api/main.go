package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/api/middleware"
	"github.com/pixelrealm/territory-engine/internal/api/server"
	"github.com/pixelrealm/territory-engine/internal/broadcast"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/config"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/ratelimit"
	"github.com/pixelrealm/territory-engine/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Service:         "api-server",
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Territory Engine API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store and adapters
	dataStore := store.NewPGStore(db)
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	// Initialize cache (optional: an empty addr runs without one)
	auctionCache := cache.NewNoopCache()
	var redisClient adapter.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient = adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx); err != nil {
			logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		defer func() { _ = redisClient.Close() }()
		auctionCache = cache.NewRedisCache(redisClient, jsonAdapter, cfg.Redis.TTL)
		logger.InfoCtx(ctx, "Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.WarnCtx(ctx, "Redis not configured, reads go straight to the database")
	}

	// Per-bidder bid throttling (optional: zero per_minute disables it)
	bidLimiter := ratelimit.NewBidLimiter(ratelimit.Config{
		PerMinute:           cfg.RateLimit.PerMinute,
		Burst:               cfg.RateLimit.Burst,
		EnableLocalFallback: cfg.RateLimit.EnableLocalFallback,
	}, redisClient, clock)
	defer bidLimiter.Close()

	// Initialize broadcast publisher (optional: an empty URL drops events)
	publisher := broadcast.NewNoopPublisher()
	if cfg.NATS.URL != "" {
		publisher, err = broadcast.NewNatsPublisher(broadcast.Config{
			URL:            cfg.NATS.URL,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS not configured, events will not be broadcast")
	}

	// Assemble the settlement engine
	engineCfg := engine.Config{
		BidIncrement:     decimal.NewFromInt(cfg.Auction.BidIncrement),
		MinimumBasePrice: decimal.NewFromInt(cfg.Auction.MinimumBasePrice),
		ProtectionWindow: cfg.Auction.ProtectionWindow,
		AuctionDuration:  cfg.Auction.AuctionDuration,
	}
	transfer := engine.NewTransferService(clock, engineCfg)
	finalizer := engine.NewFinalizer(dataStore, auctionCache, publisher, transfer, clock, engineCfg)
	ledger := engine.NewLedger(dataStore, auctionCache, publisher, clock, engineCfg, func(auctionID int64) {
		// Repair settlement for the expired auction the bid just exposed.
		go func() {
			repairCtx, repairCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer repairCancel()
			if _, err := finalizer.Finalize(repairCtx, auctionID, domain.TriggerInlineRepair); err != nil {
				logger.Error(err, zap.Int64("auctionID", auctionID))
			}
		}()
	})
	admin := engine.NewAdmin(dataStore, auctionCache, clock, engineCfg)
	reader := engine.NewReader(dataStore, auctionCache)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, ledger, finalizer, admin, reader, bidLimiter)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
