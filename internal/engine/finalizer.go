package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/broadcast"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
)

// SettlementResult is the outcome of a finalize call
type SettlementResult struct {
	AuctionID   int64
	TerritoryID int64
	Trigger     domain.TriggerKind
	// Winner is nil when the auction closed with no eligible bids
	Winner *Winner
	// NewMarketBase is set when the settlement moved ownership to a new ruler
	NewMarketBase *decimal.Decimal
	// Repaired is true when the auction was already ended before this call
	Repaired bool
	// Settled is true when this call performed writes. A repair pass that found
	// a fully converged settlement reports Settled=false and emits no event.
	Settled bool
}

// Finalizer settles auctions. All three trigger kinds (manual, sweep,
// inline-repair) run the same path, and the path is idempotent: concurrent and
// repeated calls for the same auction converge on one winner, one ownership
// record, and one territory state. Serialization comes from the auction row
// lock; losers of the race find the work done and take the repair path.
type Finalizer struct {
	store     store.Store
	cache     cache.Cache
	publisher broadcast.Publisher
	transfer  *TransferService
	clock     adapter.Clock
	cfg       Config
}

// NewFinalizer creates an auction finalizer
func NewFinalizer(
	s store.Store,
	c cache.Cache,
	p broadcast.Publisher,
	transfer *TransferService,
	clock adapter.Clock,
	cfg Config,
) *Finalizer {
	return &Finalizer{
		store:     s,
		cache:     c,
		publisher: p,
		transfer:  transfer,
		clock:     clock,
		cfg:       cfg,
	}
}

// Finalize settles one auction. A manual trigger may end an active auction
// before its end time; sweep and inline-repair triggers require the end time
// to have passed. Finalizing an ended auction runs a repair pass that re-applies
// any missing settlement effects. Cancelled auctions are never settled.
func (f *Finalizer) Finalize(ctx context.Context, auctionID int64, trigger domain.TriggerKind) (*SettlementResult, error) {
	traceID := ulid.Make().String()
	now := f.clock.Now()

	result := &SettlementResult{
		AuctionID: auctionID,
		Trigger:   trigger,
	}

	err := f.store.Transaction(ctx, func(tx store.Store) error {
		auction, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return domain.ErrAuctionNotFound
		}
		result.TerritoryID = auction.TerritoryID

		switch auction.Status {
		case domain.AuctionStatusCancelled:
			return domain.ErrInvalidAuctionState
		case domain.AuctionStatusEnded:
			result.Repaired = true
		case domain.AuctionStatusActive:
			if trigger != domain.TriggerManual && now.Before(auction.EndTime) {
				return domain.ErrInvalidAuctionState
			}
		default:
			return domain.ErrInvalidAuctionState
		}

		// Bids admitted after the end time never win, regardless of how late
		// this settlement runs.
		candidate, err := tx.WinningBidCandidate(ctx, auction.ID, auction.EndTime)
		if err != nil {
			return err
		}
		winner := reconcileWinner(candidate, auction)
		result.Winner = winner

		territory, err := tx.GetTerritoryForUpdate(ctx, auction.TerritoryID)
		if err != nil {
			return err
		}
		if territory == nil {
			return domain.ErrTerritoryNotFound
		}

		if result.Repaired && settlementConverged(auction, territory, winner) {
			logger.DebugCtx(ctx, "settlement already converged",
				zap.String("traceID", traceID),
				zap.Int64("auctionID", auction.ID))
			return nil
		}

		// Winner fields are written on every pass so a repair after a partial
		// failure still lands on the same values.
		var (
			winningBidID  *int64
			winnerID      *string
			winnerName    *string
			winningAmount *decimal.Decimal
		)
		if winner != nil {
			winningBidID = winner.BidID
			winnerID = &winner.UserID
			winnerName = &winner.UserName
			winningAmount = &winner.Amount
		}
		if err := tx.MarkAuctionEnded(ctx, auction.ID, winningBidID, winnerID, winnerName, winningAmount); err != nil {
			return err
		}

		if winner != nil {
			newBase, err := f.transfer.Transfer(ctx, tx, territory, auction, winner)
			if err != nil {
				return err
			}
			result.NewMarketBase = &newBase
		} else {
			if err := tx.ReleaseTerritory(ctx, territory.ID, idleSovereignty(territory, now)); err != nil {
				return err
			}
		}

		result.Settled = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Settled {
		return result, nil
	}

	f.cache.InvalidateAuction(ctx, result.AuctionID)
	f.cache.InvalidateTerritory(ctx, result.TerritoryID)

	event := &domain.SettlementEvent{
		EventID:     uuid.New().String(),
		AuctionID:   result.AuctionID,
		TerritoryID: result.TerritoryID,
		Trigger:     trigger,
		SettledAt:   now,
	}
	if result.Winner != nil {
		event.WinnerUserID = &result.Winner.UserID
		event.WinnerName = &result.Winner.UserName
		event.WinningAmount = &result.Winner.Amount
	}
	event.NewMarketBase = result.NewMarketBase
	f.publisher.PublishSettlement(ctx, event)

	fields := []zap.Field{
		zap.String("traceID", traceID),
		zap.Int64("auctionID", result.AuctionID),
		zap.Int64("territoryID", result.TerritoryID),
		zap.String("trigger", string(trigger)),
		zap.Bool("repaired", result.Repaired),
	}
	if result.Winner != nil {
		fields = append(fields,
			zap.String("winnerID", result.Winner.UserID),
			zap.String("amount", result.Winner.Amount.String()))
	}
	logger.InfoCtx(ctx, "auction settled", fields...)

	return result, nil
}
