package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// StartAuctionInput carries an auction open request
type StartAuctionInput struct {
	TerritoryID int64
	// MinBid overrides the seeded opening bid when positive; otherwise the
	// territory's market base is used
	MinBid decimal.Decimal
	// Duration overrides the default bidding window when positive
	Duration time.Duration
	// Force opens the auction even inside an active protection window
	Force bool
}

// Admin opens and cancels auctions. Both operations serialize on row locks the
// same way settlement does, so they compose safely with concurrent bids and
// sweeps.
type Admin struct {
	store store.Store
	cache cache.Cache
	clock adapter.Clock
	cfg   Config
}

// NewAdmin creates the admin operations service
func NewAdmin(s store.Store, c cache.Cache, clock adapter.Clock, cfg Config) *Admin {
	return &Admin{store: s, cache: c, clock: clock, cfg: cfg}
}

// StartAuction opens a new auction for a territory and marks it contested.
// It fails when the territory already references an auction, or when the
// territory is inside its protection window and Force is not set.
func (a *Admin) StartAuction(ctx context.Context, input StartAuctionInput) (*schema.Auction, error) {
	now := a.clock.Now()
	var auction *schema.Auction

	err := a.store.Transaction(ctx, func(tx store.Store) error {
		territory, err := tx.GetTerritoryForUpdate(ctx, input.TerritoryID)
		if err != nil {
			return err
		}
		if territory == nil {
			return domain.ErrTerritoryNotFound
		}
		if territory.CurrentAuctionID != nil {
			return domain.ErrAuctionAlreadyRunning
		}
		if !input.Force && territory.ProtectionEndsAt != nil && territory.ProtectionEndsAt.After(now) {
			return domain.ErrTerritoryProtected
		}

		minBid := input.MinBid
		if !minBid.IsPositive() {
			minBid = ResolveMarketBase(territory, decimal.Zero, a.cfg.MinimumBasePrice)
		}
		duration := input.Duration
		if duration <= 0 {
			duration = a.cfg.AuctionDuration
		}

		auction = &schema.Auction{
			TerritoryID: territory.ID,
			Status:      domain.AuctionStatusActive,
			MinBid:      minBid,
			CurrentBid:  decimal.Zero,
			EndTime:     now.Add(duration),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateAuction(ctx, auction); err != nil {
			return err
		}
		return tx.SetTerritoryContested(ctx, territory.ID, auction.ID)
	})
	if err != nil {
		return nil, err
	}

	a.cache.InvalidateTerritory(ctx, input.TerritoryID)

	logger.InfoCtx(ctx, "auction opened",
		zap.Int64("auctionID", auction.ID),
		zap.Int64("territoryID", input.TerritoryID),
		zap.String("minBid", auction.MinBid.String()),
		zap.Time("endTime", auction.EndTime),
		zap.Bool("force", input.Force))

	return auction, nil
}

// CancelAuction voids an active auction without settling it. The territory
// returns to its pre-auction state and no ownership changes hands; accepted
// bids stay in the ledger for audit but can never win.
func (a *Admin) CancelAuction(ctx context.Context, auctionID int64) error {
	now := a.clock.Now()
	var territoryID int64

	err := a.store.Transaction(ctx, func(tx store.Store) error {
		auction, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return domain.ErrAuctionNotFound
		}
		if auction.Status.Terminal() {
			return domain.ErrInvalidAuctionState
		}
		territoryID = auction.TerritoryID

		if err := tx.MarkAuctionCancelled(ctx, auction.ID); err != nil {
			return err
		}

		territory, err := tx.GetTerritoryForUpdate(ctx, auction.TerritoryID)
		if err != nil {
			return err
		}
		if territory == nil || territory.CurrentAuctionID == nil || *territory.CurrentAuctionID != auction.ID {
			return nil
		}
		return tx.ReleaseTerritory(ctx, territory.ID, idleSovereignty(territory, now))
	})
	if err != nil {
		return err
	}

	a.cache.InvalidateAuction(ctx, auctionID)
	a.cache.InvalidateTerritory(ctx, territoryID)

	logger.InfoCtx(ctx, "auction cancelled",
		zap.Int64("auctionID", auctionID),
		zap.Int64("territoryID", territoryID))

	return nil
}
