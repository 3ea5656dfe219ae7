package cache

import (
	"context"

	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// noopCache satisfies Cache when no Redis instance is configured. Every read
// is a miss and every write is discarded.
type noopCache struct{}

// NewNoopCache creates a cache that does nothing
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) GetAuction(context.Context, int64) (*schema.Auction, bool)    { return nil, false }
func (noopCache) SetAuction(context.Context, *schema.Auction)                  {}
func (noopCache) GetAuctionBids(context.Context, int64) ([]*schema.Bid, bool)  { return nil, false }
func (noopCache) SetAuctionBids(context.Context, int64, []*schema.Bid)         {}
func (noopCache) GetTerritory(context.Context, int64) (*schema.Territory, bool) { return nil, false }
func (noopCache) SetTerritory(context.Context, *schema.Territory)              {}
func (noopCache) InvalidateAuction(context.Context, int64)                     {}
func (noopCache) InvalidateTerritory(context.Context, int64)                   {}
func (noopCache) InvalidatePattern(context.Context, string)                    {}
