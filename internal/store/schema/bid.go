package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid represents the bids table. Rows are append-only: they are created while
// the auction is active and never mutated or deleted. Insertion order matches
// non-decreasing acceptance thresholds because admission happens under the
// auction row lock.
type Bid struct {
	// ID is the internal database primary key; lower IDs were admitted earlier,
	// which is what the winner tie-break relies on
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// AuctionID references the auction this bid belongs to
	AuctionID int64 `gorm:"column:auction_id;not null;index:idx_bids_auction_amount,priority:1"`
	// UserID is the bidder's user ID
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// UserName is the bidder's display name, denormalized for settlement and reads
	UserName string `gorm:"column:user_name;not null;type:text"`
	// Amount is the bid amount
	Amount decimal.Decimal `gorm:"column:amount;not null;type:numeric(20,2);index:idx_bids_auction_amount,priority:2,sort:desc"`
	// CreatedAt is the admission timestamp; bids created after the auction's
	// end time are excluded from winner determination
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Bid model
func (Bid) TableName() string {
	return "bids"
}
