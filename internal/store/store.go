package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// UpdateRulerInput carries the guarded territory mutation applied on ownership transfer
type UpdateRulerInput struct {
	TerritoryID        int64
	RulerID            string
	RulerName          string
	AdaptiveMarketBase decimal.Decimal
	ProtectionEndsAt   time.Time
}

// Store defines the interface for database operations.
//
// Lock ordering: callers that lock both rows must acquire the auction row
// before the territory row. The engine is the only caller that takes both.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// Transaction runs fn inside a database transaction. The Store passed to fn
	// operates on the transaction; nested calls join the outer transaction.
	Transaction(ctx context.Context, fn func(Store) error) error

	// GetAuction retrieves an auction by ID (nil, nil when missing)
	GetAuction(ctx context.Context, id int64) (*schema.Auction, error)
	// GetAuctionForUpdate retrieves an auction by ID holding a row lock.
	// Must be called inside a Transaction.
	GetAuctionForUpdate(ctx context.Context, id int64) (*schema.Auction, error)
	// GetTerritory retrieves a territory by ID (nil, nil when missing)
	GetTerritory(ctx context.Context, id int64) (*schema.Territory, error)
	// GetTerritoryForUpdate retrieves a territory by ID holding a row lock.
	// Must be called inside a Transaction, after any auction lock.
	GetTerritoryForUpdate(ctx context.Context, id int64) (*schema.Territory, error)

	// CreateAuction inserts a new auction row
	CreateAuction(ctx context.Context, auction *schema.Auction) error
	// CreateBid appends a bid row
	CreateBid(ctx context.Context, bid *schema.Bid) error
	// HighestBidAmount returns the highest accepted bid amount for an auction (zero when none)
	HighestBidAmount(ctx context.Context, auctionID int64) (decimal.Decimal, error)
	// WinningBidCandidate returns the highest bid with created_at <= cutoff,
	// ties broken by earliest created_at then lowest id (nil, nil when none)
	WinningBidCandidate(ctx context.Context, auctionID int64, cutoff time.Time) (*schema.Bid, error)
	// ListAuctionBids returns an auction's bids in admission order
	ListAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, error)

	// UpdateAuctionCurrentBid updates the denormalized highest-bid fields
	UpdateAuctionCurrentBid(ctx context.Context, auctionID int64, amount decimal.Decimal, bidderID, bidderName string) error
	// MarkAuctionEnded sets status=ended and the winner fields. The winner
	// fields are written unconditionally so repeated settlement passes converge.
	MarkAuctionEnded(ctx context.Context, auctionID int64, winningBidID *int64, winnerID, winnerName *string, amount *decimal.Decimal) error
	// MarkAuctionCancelled sets status=cancelled
	MarkAuctionCancelled(ctx context.Context, auctionID int64) error
	// StampAuctionTransferred records when ownership transfer completed
	StampAuctionTransferred(ctx context.Context, auctionID int64, at time.Time) error

	// UpdateTerritoryRuler applies the ownership mutation: ruler, sovereignty=protected,
	// adaptive market base, protection window, and clears the auction reference
	UpdateTerritoryRuler(ctx context.Context, input UpdateRulerInput) error
	// ClearTerritoryAuction drops the territory's auction reference when it
	// still points at the given auction, leaving everything else untouched
	ClearTerritoryAuction(ctx context.Context, territoryID, auctionID int64) error
	// ReleaseTerritory clears the auction reference and restores sovereignty
	// after a settlement with no winner or a cancellation
	ReleaseTerritory(ctx context.Context, territoryID int64, sovereignty domain.Sovereignty) error
	// SetTerritoryContested marks a territory contested and records its active auction
	SetTerritoryContested(ctx context.Context, territoryID, auctionID int64) error

	// InsertOwnershipRecord appends an ownership record; a conflict on
	// auction_id is skipped silently and reported as inserted=false
	InsertOwnershipRecord(ctx context.Context, record *schema.OwnershipRecord) (inserted bool, err error)
	// CloseOpenOwnershipRecords stamps ended_at on the territory's open records,
	// excluding the record opened by the given auction
	CloseOpenOwnershipRecords(ctx context.Context, territoryID, excludeAuctionID int64, endedAt time.Time) error
	// ListTerritoryOwnershipRecords returns a territory's ownership history, newest first
	ListTerritoryOwnershipRecords(ctx context.Context, territoryID int64, limit int) ([]*schema.OwnershipRecord, error)

	// ListExpiredActiveAuctions returns up to limit active auctions whose end
	// time has passed, oldest expiry first
	ListExpiredActiveAuctions(ctx context.Context, now time.Time, limit int) ([]*schema.Auction, error)
}
