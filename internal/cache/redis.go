package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// redisCache implements Cache over a Redis client. All values cross the wire
// as JSON; this package is the only place that marshals or unmarshals them.
type redisCache struct {
	client adapter.RedisClient
	json   adapter.JSON
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache with the given entry TTL
func NewRedisCache(client adapter.RedisClient, jsonAdapter adapter.JSON, ttl time.Duration) Cache {
	return &redisCache{
		client: client,
		json:   jsonAdapter,
		ttl:    ttl,
	}
}

func (c *redisCache) get(ctx context.Context, key string, out interface{}) bool {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, adapter.ErrCacheMiss) {
			logger.WarnCtx(ctx, "cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := c.json.Unmarshal(data, out); err != nil {
		// A corrupt entry behaves like a miss; drop it so it cannot keep
		// poisoning reads.
		logger.WarnCtx(ctx, "cache entry undecodable, dropping", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return false
	}
	return true
}

func (c *redisCache) set(ctx context.Context, key string, value interface{}) {
	data, err := c.json.Marshal(value)
	if err != nil {
		logger.WarnCtx(ctx, "cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		logger.WarnCtx(ctx, "cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// GetAuction returns a cached auction snapshot
func (c *redisCache) GetAuction(ctx context.Context, id int64) (*schema.Auction, bool) {
	var auction schema.Auction
	if !c.get(ctx, auctionKey(id), &auction) {
		return nil, false
	}
	return &auction, true
}

// SetAuction caches an auction snapshot
func (c *redisCache) SetAuction(ctx context.Context, auction *schema.Auction) {
	c.set(ctx, auctionKey(auction.ID), auction)
}

// GetAuctionBids returns a cached bid list
func (c *redisCache) GetAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, bool) {
	var bids []*schema.Bid
	if !c.get(ctx, auctionBidsKey(auctionID), &bids) {
		return nil, false
	}
	return bids, true
}

// SetAuctionBids caches an auction's bid list
func (c *redisCache) SetAuctionBids(ctx context.Context, auctionID int64, bids []*schema.Bid) {
	c.set(ctx, auctionBidsKey(auctionID), bids)
}

// GetTerritory returns a cached territory snapshot
func (c *redisCache) GetTerritory(ctx context.Context, id int64) (*schema.Territory, bool) {
	var territory schema.Territory
	if !c.get(ctx, territoryKey(id), &territory) {
		return nil, false
	}
	return &territory, true
}

// SetTerritory caches a territory snapshot
func (c *redisCache) SetTerritory(ctx context.Context, territory *schema.Territory) {
	c.set(ctx, territoryKey(territory.ID), territory)
}

// InvalidateAuction drops the auction snapshot and any derived keys (bid lists)
func (c *redisCache) InvalidateAuction(ctx context.Context, id int64) {
	c.InvalidatePattern(ctx, auctionKey(id)+"*")
}

// InvalidateTerritory drops every cached key for a territory
func (c *redisCache) InvalidateTerritory(ctx context.Context, id int64) {
	c.InvalidatePattern(ctx, territoryKey(id)+"*")
}

// InvalidatePattern drops all keys matching a glob pattern
func (c *redisCache) InvalidatePattern(ctx context.Context, pattern string) {
	keys, err := c.client.ScanKeys(ctx, pattern)
	if err != nil {
		logger.WarnCtx(ctx, "cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		logger.WarnCtx(ctx, "cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
