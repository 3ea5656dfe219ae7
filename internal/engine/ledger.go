package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/broadcast"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// FinalizeTrigger requests a settlement for an auction outside the current
// transaction. The ledger fires it when a bid reveals an expired auction.
type FinalizeTrigger func(auctionID int64)

// PlaceBidInput carries a bid request into the ledger
type PlaceBidInput struct {
	AuctionID int64
	UserID    string
	UserName  string
	Amount    decimal.Decimal
}

// BidResult is the committed outcome of an accepted bid
type BidResult struct {
	Auction    *schema.Auction
	Bid        *schema.Bid
	MinNextBid decimal.Decimal
}

// Ledger admits bids. Admission is serialized per auction by the auction row
// lock; there are no in-process locks, so any number of API replicas can admit
// bids concurrently.
type Ledger struct {
	store     store.Store
	cache     cache.Cache
	publisher broadcast.Publisher
	clock     adapter.Clock
	cfg       Config
	finalize  FinalizeTrigger
}

// NewLedger creates a bid ledger. finalize may be nil, in which case bids
// against expired auctions are rejected without requesting a settlement.
func NewLedger(
	s store.Store,
	c cache.Cache,
	p broadcast.Publisher,
	clock adapter.Clock,
	cfg Config,
	finalize FinalizeTrigger,
) *Ledger {
	return &Ledger{
		store:     s,
		cache:     c,
		publisher: p,
		clock:     clock,
		cfg:       cfg,
		finalize:  finalize,
	}
}

// PlaceBid validates and admits a bid under the auction row lock. A bid is
// rejected with BidTooLowError unless it reaches the current highest bid plus
// the fixed increment (or the auction's minimum bid when there are none). A bid
// against an auction whose end time has passed is rejected and a settlement is
// requested for that auction.
func (l *Ledger) PlaceBid(ctx context.Context, input PlaceBidInput) (*BidResult, error) {
	if !input.Amount.IsPositive() {
		return nil, &domain.BidTooLowError{MinNextBid: l.cfg.BidIncrement}
	}

	now := l.clock.Now()
	var (
		result  BidResult
		expired bool
	)

	err := l.store.Transaction(ctx, func(tx store.Store) error {
		auction, err := tx.GetAuctionForUpdate(ctx, input.AuctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return domain.ErrAuctionNotFound
		}
		if auction.Status != domain.AuctionStatusActive {
			return domain.ErrAuctionNotActive
		}
		if !now.Before(auction.EndTime) {
			expired = true
			return domain.ErrAuctionExpired
		}

		highest, err := tx.HighestBidAmount(ctx, auction.ID)
		if err != nil {
			return err
		}
		minNext := MinNextBid(highest, auction.MinBid, l.cfg.BidIncrement)
		if input.Amount.LessThan(minNext) {
			return &domain.BidTooLowError{MinNextBid: minNext}
		}

		bid := &schema.Bid{
			AuctionID: auction.ID,
			UserID:    input.UserID,
			UserName:  input.UserName,
			Amount:    input.Amount,
			CreatedAt: now,
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.UpdateAuctionCurrentBid(ctx, auction.ID, input.Amount, input.UserID, input.UserName); err != nil {
			return err
		}

		auction.CurrentBid = input.Amount
		auction.CurrentBidderID = &bid.UserID
		auction.CurrentBidderName = &bid.UserName
		result = BidResult{
			Auction:    auction,
			Bid:        bid,
			MinNextBid: MinNextBid(input.Amount, auction.MinBid, l.cfg.BidIncrement),
		}
		return nil
	})
	if err != nil {
		if expired && l.finalize != nil {
			// The transaction rolled back; settle the stale auction out of band
			// so the next caller sees a terminal status.
			l.finalize(input.AuctionID)
		}
		return nil, err
	}

	l.cache.InvalidateAuction(ctx, result.Auction.ID)

	event := &domain.BidEvent{
		EventID:     uuid.New().String(),
		AuctionID:   result.Auction.ID,
		TerritoryID: result.Auction.TerritoryID,
		UserID:      result.Bid.UserID,
		UserName:    result.Bid.UserName,
		Amount:      result.Bid.Amount,
		MinNextBid:  result.MinNextBid,
		PlacedAt:    result.Bid.CreatedAt,
	}
	l.publisher.PublishBid(ctx, event)

	logger.InfoCtx(ctx, "bid accepted",
		zap.Int64("auctionID", result.Auction.ID),
		zap.String("userID", result.Bid.UserID),
		zap.String("amount", result.Bid.Amount.String()))

	return &result, nil
}

// MinNextBidFor returns the smallest acceptable bid for an auction right now.
// It reads without locks; the answer can be stale by the time a bid arrives.
func (l *Ledger) MinNextBidFor(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	auction, err := l.store.GetAuction(ctx, auctionID)
	if err != nil {
		return decimal.Zero, err
	}
	if auction == nil {
		return decimal.Zero, domain.ErrAuctionNotFound
	}
	highest, err := l.store.HighestBidAmount(ctx, auctionID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read highest bid: %w", err)
	}
	return MinNextBid(highest, auction.MinBid, l.cfg.BidIncrement), nil
}
