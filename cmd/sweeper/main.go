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
	"github.com/pixelrealm/territory-engine/internal/broadcast"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/config"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Service:         "sweeper",
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Settlement Sweeper")

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

	// Initialize cache so settlements invalidate read-path snapshots
	auctionCache := cache.NewNoopCache()
	if cfg.Redis.Addr != "" {
		redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx); err != nil {
			logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		defer func() { _ = redisClient.Close() }()
		auctionCache = cache.NewRedisCache(redisClient, jsonAdapter, cfg.Redis.TTL)
		logger.InfoCtx(ctx, "Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.WarnCtx(ctx, "Redis not configured, settlements will not invalidate any cache")
	}

	// Initialize broadcast publisher
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
		logger.WarnCtx(ctx, "NATS not configured, settlement events will not be broadcast")
	}

	// Assemble the finalizer
	engineCfg := engine.Config{
		BidIncrement:     decimal.NewFromInt(cfg.Auction.BidIncrement),
		MinimumBasePrice: decimal.NewFromInt(cfg.Auction.MinimumBasePrice),
		ProtectionWindow: cfg.Auction.ProtectionWindow,
		AuctionDuration:  cfg.Auction.AuctionDuration,
	}
	transfer := engine.NewTransferService(clock, engineCfg)
	finalizer := engine.NewFinalizer(dataStore, auctionCache, publisher, transfer, clock, engineCfg)

	// Initialize settlement sweeper
	sweepConfig := &sweeper.SettlementSweeperConfig{
		BatchSize:      cfg.Sweep.BatchSize,
		WorkerPoolSize: cfg.Sweep.Worker.WorkerPoolSize,
		SweepInterval:  cfg.Sweep.SweepInterval,
	}
	settlementSweeper := sweeper.NewSettlementSweeper(sweepConfig, dataStore, finalizer, clock)

	logger.InfoCtx(ctx, "Initialized settlement sweeper",
		zap.Int("batch_size", cfg.Sweep.BatchSize),
		zap.Int("worker_pool_size", cfg.Sweep.Worker.WorkerPoolSize),
		zap.Duration("sweep_interval", cfg.Sweep.SweepInterval),
	)

	// Start the sweeper in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := settlementSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	// Give the sweeper time to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	if err := settlementSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
