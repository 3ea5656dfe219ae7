package engine

import (
	"context"

	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

const defaultHistoryLimit = 50

// Reader serves read paths through the cache. Cached snapshots can lag the
// database between a write commit and its invalidation; callers that cannot
// tolerate that pass bypassCache.
type Reader struct {
	store store.Store
	cache cache.Cache
}

// NewReader creates a cached reader
func NewReader(s store.Store, c cache.Cache) *Reader {
	return &Reader{store: s, cache: c}
}

// GetAuction returns an auction snapshot
func (r *Reader) GetAuction(ctx context.Context, id int64, bypassCache bool) (*schema.Auction, error) {
	if !bypassCache {
		if auction, ok := r.cache.GetAuction(ctx, id); ok {
			return auction, nil
		}
	}

	auction, err := r.store.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, domain.ErrAuctionNotFound
	}

	r.cache.SetAuction(ctx, auction)
	return auction, nil
}

// ListAuctionBids returns an auction's bids in admission order
func (r *Reader) ListAuctionBids(ctx context.Context, auctionID int64, bypassCache bool) ([]*schema.Bid, error) {
	if !bypassCache {
		if bids, ok := r.cache.GetAuctionBids(ctx, auctionID); ok {
			return bids, nil
		}
	}

	auction, err := r.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, domain.ErrAuctionNotFound
	}

	bids, err := r.store.ListAuctionBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	r.cache.SetAuctionBids(ctx, auctionID, bids)
	return bids, nil
}

// GetTerritory returns a territory snapshot
func (r *Reader) GetTerritory(ctx context.Context, id int64, bypassCache bool) (*schema.Territory, error) {
	if !bypassCache {
		if territory, ok := r.cache.GetTerritory(ctx, id); ok {
			return territory, nil
		}
	}

	territory, err := r.store.GetTerritory(ctx, id)
	if err != nil {
		return nil, err
	}
	if territory == nil {
		return nil, domain.ErrTerritoryNotFound
	}

	r.cache.SetTerritory(ctx, territory)
	return territory, nil
}

// ListTerritoryHistory returns a territory's ownership records, newest first.
// History is append-mostly and cheap to read, so it skips the cache.
func (r *Reader) ListTerritoryHistory(ctx context.Context, territoryID int64, limit int) ([]*schema.OwnershipRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	territory, err := r.store.GetTerritory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if territory == nil {
		return nil, domain.ErrTerritoryNotFound
	}

	return r.store.ListTerritoryOwnershipRecords(ctx, territoryID, limit)
}
