package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
)

const (
	// IDLE_SWEEP_INTERVAL is how long to sleep when a cycle finds nothing to settle
	IDLE_SWEEP_INTERVAL = 10 * time.Second
)

// SettlementSweeperConfig holds configuration for the settlement sweeper
type SettlementSweeperConfig struct {
	BatchSize      int           // Expired auctions to settle per cycle
	WorkerPoolSize int           // Concurrent settlements
	SweepInterval  time.Duration // Time to sleep between non-empty cycles
}

// settlementSweeper implements the Sweeper interface for expired-auction settlement.
// Multiple replicas can run against the same database: each settlement takes the
// auction row lock, and losers of the race settle into the idempotent no-op path.
type settlementSweeper struct {
	config    *SettlementSweeperConfig
	store     store.Store
	finalizer *engine.Finalizer
	pool      pond.Pool
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewSettlementSweeper creates a new settlement sweeper
func NewSettlementSweeper(
	config *SettlementSweeperConfig,
	st store.Store,
	finalizer *engine.Finalizer,
	clock adapter.Clock,
) Sweeper {
	return &settlementSweeper{
		config:    config,
		store:     st,
		finalizer: finalizer,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *settlementSweeper) Name() string {
	return "settlement-sweeper"
}

// Start begins the sweeper's main loop
func (s *settlementSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting settlement sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("sweep_interval", s.config.SweepInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Settlement sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Settlement sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for in-flight settlements to complete
func (s *settlementSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *settlementSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping settlement sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Settlement sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Settlement sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle settles one batch of expired auctions
func (s *settlementSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	// No claim step: every expired auction in the batch is offered to the
	// finalizer, which sorts out races via the row lock.
	auctions, err := s.store.ListExpiredActiveAuctions(ctx, startTime, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired auctions: %w", err)
	}

	if len(auctions) == 0 {
		if !s.sleep(ctx, IDLE_SWEEP_INTERVAL) {
			return ctx.Err()
		}
		return nil
	}

	logger.InfoCtx(ctx, "Found expired auctions to settle", zap.Int("count", len(auctions)))

	var settledCount, repairedCount, skippedCount atomic.Int32

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	for _, auction := range auctions {
		s.pool.Submit(func() {
			result, err := s.finalizer.Finalize(ctx, auction.ID, domain.TriggerSweep)
			if err != nil {
				// Another replica may have settled or cancelled it first.
				if errors.Is(err, domain.ErrInvalidAuctionState) || errors.Is(err, domain.ErrAuctionNotFound) {
					skippedCount.Add(1)
					return
				}
				logger.ErrorCtx(ctx, err, zap.Int64("auctionID", auction.ID))
				return
			}
			if result.Settled {
				settledCount.Add(1)
			}
			if result.Repaired {
				repairedCount.Add(1)
			}
		})
	}

	s.pool.StopAndWait()

	duration := s.clock.Since(startTime)
	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", duration),
		zap.Int("total", len(auctions)),
		zap.Int32("settled", settledCount.Load()),
		zap.Int32("repaired", repairedCount.Load()),
		zap.Int32("skipped", skippedCount.Load()),
	)

	if !s.sleep(ctx, s.config.SweepInterval) {
		return ctx.Err()
	}

	return nil
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns true if sleep completed normally.
func (s *settlementSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
