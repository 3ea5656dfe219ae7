package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNextMarketBase(t *testing.T) {
	tests := []struct {
		name     string
		oldBase  string
		amount   string
		expected string
	}{
		{
			name:     "blended average rounds up",
			oldBase:  "100",
			amount:   "150",
			expected: "115", // 0.7*100 + 0.3*150 = 115
		},
		{
			name:     "fractional result ceils",
			oldBase:  "95",
			amount:   "101",
			expected: "97", // 66.5 + 30.3 = 96.8
		},
		{
			name:     "huge sale capped at 3x",
			oldBase:  "100",
			amount:   "100000",
			expected: "300",
		},
		{
			name:     "tiny sale floored at 0.7x",
			oldBase:  "100",
			amount:   "1",
			expected: "70",
		},
		{
			name:     "sale at old base keeps it",
			oldBase:  "50",
			amount:   "50",
			expected: "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMarketBase(d(tt.oldBase), d(tt.amount))
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestNextMarketBaseBounds(t *testing.T) {
	// Whatever the sale price, the new base stays within [ceil(0.7x), ceil(3x)]
	// of the old base.
	oldBase := d("233")
	floor := oldBase.Mul(d("0.7")).Ceil()
	cap := oldBase.Mul(d("3.0")).Ceil()

	for _, amount := range []string{"0.01", "1", "163", "232", "233", "234", "700", "1000000"} {
		got := NextMarketBase(oldBase, d(amount))
		assert.True(t, got.GreaterThanOrEqual(floor), "amount %s: %s below floor %s", amount, got, floor)
		assert.True(t, got.LessThanOrEqual(cap), "amount %s: %s above cap %s", amount, got, cap)
	}
}

func TestResolveMarketBase(t *testing.T) {
	minimum := d("10")

	tests := []struct {
		name      string
		territory *schema.Territory
		amount    string
		expected  string
	}{
		{
			name:      "adaptive base wins",
			territory: &schema.Territory{AdaptiveMarketBase: d("120"), BasePrice: d("80")},
			amount:    "55",
			expected:  "120",
		},
		{
			name:      "seed price when no adaptive base",
			territory: &schema.Territory{BasePrice: d("80")},
			amount:    "55",
			expected:  "80",
		},
		{
			name:      "winning amount when territory has no pricing",
			territory: &schema.Territory{},
			amount:    "55",
			expected:  "55",
		},
		{
			name:      "configured minimum as last resort",
			territory: &schema.Territory{},
			amount:    "0",
			expected:  "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMarketBase(tt.territory, d(tt.amount), minimum)
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestMinNextBid(t *testing.T) {
	increment := d("1")

	// No bids yet: the auction minimum stands as-is.
	assert.True(t, d("25").Equal(MinNextBid(decimal.Zero, d("25"), increment)))

	// With a standing bid, the increment is a fixed constant on top of it.
	assert.True(t, d("96").Equal(MinNextBid(d("95"), d("25"), increment)))
	assert.True(t, d("10001").Equal(MinNextBid(d("10000"), d("25"), increment)))
}

func TestProtectionEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := ProtectionEnd(now, 7*24*time.Hour)
	assert.Equal(t, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), got)
}
