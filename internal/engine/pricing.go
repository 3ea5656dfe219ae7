package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// Adaptive market base EMA weights and clamps. The weights are fixed by
// product rule: 70% old base, 30% winning amount, with the result clamped to
// [0.7x, 3.0x] of the old base before rounding up.
var (
	emaOldWeight    = decimal.RequireFromString("0.7")
	emaNewWeight    = decimal.RequireFromString("0.3")
	baseCapFactor   = decimal.RequireFromString("3.0")
	baseFloorFactor = decimal.RequireFromString("0.7")
)

// NextMarketBase computes the adaptive market base after a sale at amount.
// For oldBase > 0 the result always lies in [ceil(0.7*oldBase), ceil(3.0*oldBase)].
func NextMarketBase(oldBase, amount decimal.Decimal) decimal.Decimal {
	raw := oldBase.Mul(emaOldWeight).Add(amount.Mul(emaNewWeight))
	capped := decimal.Min(raw, oldBase.Mul(baseCapFactor))
	floored := decimal.Max(capped, oldBase.Mul(baseFloorFactor))
	return floored.Ceil()
}

// ResolveMarketBase returns the reference price for a territory: the adaptive
// market base when set, else the seed base price, else the given amount, else
// the configured minimum.
func ResolveMarketBase(territory *schema.Territory, amount, minimum decimal.Decimal) decimal.Decimal {
	if territory.AdaptiveMarketBase.IsPositive() {
		return territory.AdaptiveMarketBase
	}
	if territory.BasePrice.IsPositive() {
		return territory.BasePrice
	}
	if amount.IsPositive() {
		return amount
	}
	return minimum
}

// MinNextBid computes the smallest amount the next bid must reach. The
// increment is a fixed constant rather than a percentage of the current bid;
// that is a deliberate product choice.
func MinNextBid(highest, minBid, increment decimal.Decimal) decimal.Decimal {
	if highest.IsPositive() {
		return highest.Add(increment)
	}
	return minBid
}

// ProtectionEnd computes when a freshly conquered territory's protection
// window closes. Every caller path goes through this one function so repeated
// transfer attempts produce identical values.
func ProtectionEnd(now time.Time, window time.Duration) time.Time {
	return now.Add(window)
}
