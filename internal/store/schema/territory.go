package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
)

// Territory represents the territories table - the contested resource whose
// ownership is auctioned. Rows are seeded once and live indefinitely; they are
// mutated only by ownership transfer, auction start/release, or explicit admin edit.
type Territory struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the territory's display name
	Name string `gorm:"column:name;not null;type:text"`
	// RulerID is the current owner's user ID (nil when unconquered)
	RulerID *string `gorm:"column:ruler_id;type:text;index"`
	// RulerName is the current owner's display name, denormalized for read paths
	RulerName *string `gorm:"column:ruler_name;type:text"`
	// Sovereignty is the territory's ownership state
	Sovereignty domain.Sovereignty `gorm:"column:sovereignty;not null;type:text;default:'unconquered'"`
	// BasePrice is the seed price configured for the territory
	BasePrice decimal.Decimal `gorm:"column:base_price;not null;type:numeric(20,2);default:0"`
	// AdaptiveMarketBase is the EMA-smoothed reference price used to seed the next auction
	AdaptiveMarketBase decimal.Decimal `gorm:"column:adaptive_market_base;not null;type:numeric(20,2);default:0"`
	// ProtectionEndsAt is when the post-conquest protection window closes (nil when none)
	ProtectionEndsAt *time.Time `gorm:"column:protection_ends_at;type:timestamptz"`
	// CurrentAuctionID references the single active auction for this territory.
	// The unique index tolerates NULLs, so at most one territory can reference a
	// given auction while idle territories carry no reference.
	CurrentAuctionID *int64 `gorm:"column:current_auction_id;uniqueIndex"`
	// CreatedAt is the timestamp when this row was seeded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last mutation
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Territory model
func (Territory) TableName() string {
	return "territories"
}
