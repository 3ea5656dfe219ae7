package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the settlement engine's product constants
type Config struct {
	// BidIncrement is the fixed amount each bid must exceed the current
	// highest bid by. Fixed, not a percentage.
	BidIncrement decimal.Decimal
	// MinimumBasePrice is the last-resort reference price when a territory has
	// no adaptive base, no seed price, and no winning amount
	MinimumBasePrice decimal.Decimal
	// ProtectionWindow is how long a conquest shields a territory from
	// forced re-auction sweeps
	ProtectionWindow time.Duration
	// AuctionDuration is the default bidding window for a new auction
	AuctionDuration time.Duration
}

// DefaultConfig returns the product defaults
func DefaultConfig() Config {
	return Config{
		BidIncrement:     decimal.NewFromInt(1),
		MinimumBasePrice: decimal.NewFromInt(10),
		ProtectionWindow: 7 * 24 * time.Hour,
		AuctionDuration:  24 * time.Hour,
	}
}
