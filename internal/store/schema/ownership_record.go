package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OwnershipRecord represents the ownership_records table - the append-only
// audit trail of territory ownership. A record is opened exactly once per
// auction that produced a winner; the unique index on auction_id is what makes
// repeated transfer attempts (repair passes) safe. The only permitted update
// is closing a record by setting ended_at.
type OwnershipRecord struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TerritoryID references the territory the record covers
	TerritoryID int64 `gorm:"column:territory_id;not null;index"`
	// UserID is the owner during this period
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// UserName is the owner's display name
	UserName string `gorm:"column:user_name;not null;type:text"`
	// Price is the winning amount that acquired the territory
	Price decimal.Decimal `gorm:"column:price;not null;type:numeric(20,2)"`
	// AuctionID is the auction that produced this record; unique so a duplicate
	// insert is a conflict no-op rather than a second record
	AuctionID int64 `gorm:"column:auction_id;not null;uniqueIndex"`
	// AcquiredAt is when ownership started
	AcquiredAt time.Time `gorm:"column:acquired_at;not null;type:timestamptz"`
	// EndedAt is when ownership ended (nil while the record is open)
	EndedAt *time.Time `gorm:"column:ended_at;type:timestamptz"`
	// CreatedAt is the timestamp when this row was written
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OwnershipRecord model
func (OwnershipRecord) TableName() string {
	return "ownership_records"
}
