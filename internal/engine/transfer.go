package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// TransferService moves ownership of a territory to an auction winner. It runs
// entirely inside the caller's transaction, with both the auction and territory
// rows already locked, and every step is safe to repeat: the territory update is
// guarded on the ruler changing, the ownership record insert skips duplicates,
// and the transfer stamp only fills a nil column.
type TransferService struct {
	clock adapter.Clock
	cfg   Config
}

// NewTransferService creates an ownership transfer service
func NewTransferService(clock adapter.Clock, cfg Config) *TransferService {
	return &TransferService{clock: clock, cfg: cfg}
}

// Transfer applies the winner's conquest and returns the territory's new
// adaptive market base. tx must be the transactional store that locked both rows.
func (t *TransferService) Transfer(
	ctx context.Context,
	tx store.Store,
	territory *schema.Territory,
	auction *schema.Auction,
	winner *Winner,
) (decimal.Decimal, error) {
	now := t.clock.Now()

	oldBase := ResolveMarketBase(territory, winner.Amount, t.cfg.MinimumBasePrice)
	newBase := NextMarketBase(oldBase, winner.Amount)

	sameRuler := territory.RulerID != nil && *territory.RulerID == winner.UserID
	if sameRuler {
		// The incumbent defended their territory. The guarded ruler update
		// would skip the row, so only drop the auction reference here; the
		// ruler, protection window, and market base stay as they are.
		if err := tx.ClearTerritoryAuction(ctx, territory.ID, auction.ID); err != nil {
			return decimal.Zero, err
		}
		newBase = oldBase
	} else {
		if err := tx.UpdateTerritoryRuler(ctx, store.UpdateRulerInput{
			TerritoryID:        territory.ID,
			RulerID:            winner.UserID,
			RulerName:          winner.UserName,
			AdaptiveMarketBase: newBase,
			ProtectionEndsAt:   ProtectionEnd(now, t.cfg.ProtectionWindow),
		}); err != nil {
			return decimal.Zero, err
		}
	}

	record := &schema.OwnershipRecord{
		TerritoryID: territory.ID,
		UserID:      winner.UserID,
		UserName:    winner.UserName,
		Price:       winner.Amount,
		AuctionID:   auction.ID,
		AcquiredAt:  now,
	}
	inserted, err := tx.InsertOwnershipRecord(ctx, record)
	if err != nil {
		return decimal.Zero, err
	}
	if !inserted {
		logger.DebugCtx(ctx, "ownership record already exists, repair pass",
			zap.Int64("auctionID", auction.ID))
	}

	if err := tx.CloseOpenOwnershipRecords(ctx, territory.ID, auction.ID, now); err != nil {
		return decimal.Zero, err
	}

	if err := tx.StampAuctionTransferred(ctx, auction.ID, now); err != nil {
		return decimal.Zero, err
	}

	return newBase, nil
}
