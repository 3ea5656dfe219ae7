package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidEvent is broadcast after a bid has been committed.
// Delivery is best-effort and at-least-once; consumers must tolerate duplicates.
type BidEvent struct {
	EventID     string          `json:"event_id"`
	AuctionID   int64           `json:"auction_id"`
	TerritoryID int64           `json:"territory_id"`
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	MinNextBid  decimal.Decimal `json:"min_next_bid"`
	PlacedAt    time.Time       `json:"placed_at"`
}

// SettlementEvent is broadcast after an auction settlement has committed.
// A repair pass that performed no writes does not emit one.
type SettlementEvent struct {
	EventID       string           `json:"event_id"`
	AuctionID     int64            `json:"auction_id"`
	TerritoryID   int64            `json:"territory_id"`
	Trigger       TriggerKind      `json:"trigger"`
	WinnerUserID  *string          `json:"winner_user_id,omitempty"`
	WinnerName    *string          `json:"winner_name,omitempty"`
	WinningAmount *decimal.Decimal `json:"winning_amount,omitempty"`
	NewMarketBase *decimal.Decimal `json:"new_market_base,omitempty"`
	SettledAt     time.Time        `json:"settled_at"`
}
