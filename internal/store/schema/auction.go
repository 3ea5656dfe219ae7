package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
)

// Auction represents the auctions table. A row is created when a territory
// becomes contested and reaches a terminal status (ended or cancelled) exactly once.
// At most one auction per territory is active at a time; the rule is enforced in
// application code under the territory row lock, not by a database constraint.
type Auction struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TerritoryID references the territory under auction
	TerritoryID int64 `gorm:"column:territory_id;not null;index"`
	// Status is the auction lifecycle state
	Status domain.AuctionStatus `gorm:"column:status;not null;type:text;default:'active';index:idx_auctions_status_end_time,priority:1"`
	// MinBid is the smallest acceptable opening bid
	MinBid decimal.Decimal `gorm:"column:min_bid;not null;type:numeric(20,2);default:0"`
	// CurrentBid is the denormalized highest accepted bid (0 when none)
	CurrentBid decimal.Decimal `gorm:"column:current_bid;not null;type:numeric(20,2);default:0"`
	// CurrentBidderID is the denormalized highest bidder (nil when no bids)
	CurrentBidderID *string `gorm:"column:current_bidder_id;type:text"`
	// CurrentBidderName is the highest bidder's display name
	CurrentBidderName *string `gorm:"column:current_bidder_name;type:text"`
	// EndTime is when bidding closes; bids with created_at past it never win
	EndTime time.Time `gorm:"column:end_time;not null;type:timestamptz;index:idx_auctions_status_end_time,priority:2"`
	// WinningBidID references the winning bid row, when the winner came from the ledger
	WinningBidID *int64 `gorm:"column:winning_bid_id"`
	// WinnerUserID is the settled winner (nil before settlement or when no bids)
	WinnerUserID *string `gorm:"column:winner_user_id;type:text"`
	// WinnerName is the settled winner's display name
	WinnerName *string `gorm:"column:winner_name;type:text"`
	// WinningAmount is the settled winning amount
	WinningAmount *decimal.Decimal `gorm:"column:winning_amount;type:numeric(20,2)"`
	// TransferredAt is when ownership transfer completed (nil until then;
	// an ended auction with a winner and a nil TransferredAt is a repair candidate)
	TransferredAt *time.Time `gorm:"column:transferred_at;type:timestamptz"`
	// CreatedAt is the timestamp when the auction opened
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last mutation
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Auction model
func (Auction) TableName() string {
	return "auctions"
}
