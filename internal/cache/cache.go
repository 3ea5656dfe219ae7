// Package cache is the best-effort read accelerator for auction and territory
// lookups. It owns the single encode/decode boundary: callers always exchange
// typed values, never raw bytes. Every method swallows infrastructure errors
// after logging them — a cache failure is indistinguishable from a miss, and
// settlement correctness never depends on this package.
package cache

import (
	"context"
	"fmt"

	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// Cache defines the caching port consumed by the engine and read paths
//
//go:generate mockgen -source=cache.go -destination=../mocks/cache.go -package=mocks -mock_names=Cache=MockCache
type Cache interface {
	// GetAuction returns a cached auction snapshot, or ok=false on miss or error
	GetAuction(ctx context.Context, id int64) (*schema.Auction, bool)
	// SetAuction caches an auction snapshot
	SetAuction(ctx context.Context, auction *schema.Auction)
	// GetAuctionBids returns a cached bid list, or ok=false on miss or error
	GetAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, bool)
	// SetAuctionBids caches an auction's bid list
	SetAuctionBids(ctx context.Context, auctionID int64, bids []*schema.Bid)
	// GetTerritory returns a cached territory snapshot, or ok=false on miss or error
	GetTerritory(ctx context.Context, id int64) (*schema.Territory, bool)
	// SetTerritory caches a territory snapshot
	SetTerritory(ctx context.Context, territory *schema.Territory)
	// InvalidateAuction drops every cached key for an auction
	InvalidateAuction(ctx context.Context, id int64)
	// InvalidateTerritory drops every cached key for a territory
	InvalidateTerritory(ctx context.Context, id int64)
	// InvalidatePattern drops all keys matching a glob pattern
	InvalidatePattern(ctx context.Context, pattern string)
}

func auctionKey(id int64) string {
	return fmt.Sprintf("auction:%d", id)
}

func auctionBidsKey(auctionID int64) string {
	return fmt.Sprintf("auction:%d:bids", auctionID)
}

func territoryKey(id int64) string {
	return fmt.Sprintf("territory:%d", id)
}
