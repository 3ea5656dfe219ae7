package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. It accesses the underlying *sql.DB and sets the pool
// configuration. The pool handle is created once at process start and closed
// on shutdown; nothing re-creates it implicitly.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// Transaction runs fn inside a database transaction. Nested calls join the
// outer transaction through gorm's savepoint handling.
func (s *pgStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}

// GetAuction retrieves an auction by ID
func (s *pgStore) GetAuction(ctx context.Context, id int64) (*schema.Auction, error) {
	var auction schema.Auction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &auction, nil
}

// GetAuctionForUpdate retrieves an auction by ID holding a FOR UPDATE row lock.
// Serializes all concurrent bids and finalizes for this auction only; unrelated
// auctions proceed independently.
func (s *pgStore) GetAuctionForUpdate(ctx context.Context, id int64) (*schema.Auction, error) {
	var auction schema.Auction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	return &auction, nil
}

// GetTerritory retrieves a territory by ID
func (s *pgStore) GetTerritory(ctx context.Context, id int64) (*schema.Territory, error) {
	var territory schema.Territory
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&territory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get territory: %w", err)
	}
	return &territory, nil
}

// GetTerritoryForUpdate retrieves a territory by ID holding a FOR UPDATE row lock
func (s *pgStore) GetTerritoryForUpdate(ctx context.Context, id int64) (*schema.Territory, error) {
	var territory schema.Territory
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&territory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock territory: %w", err)
	}
	return &territory, nil
}

// CreateAuction inserts a new auction row
func (s *pgStore) CreateAuction(ctx context.Context, auction *schema.Auction) error {
	if err := s.db.WithContext(ctx).Create(auction).Error; err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

// CreateBid appends a bid row
func (s *pgStore) CreateBid(ctx context.Context, bid *schema.Bid) error {
	if err := s.db.WithContext(ctx).Create(bid).Error; err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

// HighestBidAmount returns the highest accepted bid amount for an auction
func (s *pgStore) HighestBidAmount(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	var amount decimal.NullDecimal
	err := s.db.WithContext(ctx).
		Model(&schema.Bid{}).
		Select("MAX(amount)").
		Where("auction_id = ?", auctionID).
		Scan(&amount).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get highest bid: %w", err)
	}
	if !amount.Valid {
		return decimal.Zero, nil
	}
	return amount.Decimal, nil
}

// WinningBidCandidate returns the highest bid admitted no later than cutoff.
// Ties go to the first bidder to reach the amount: earliest created_at, then
// lowest id.
func (s *pgStore) WinningBidCandidate(ctx context.Context, auctionID int64, cutoff time.Time) (*schema.Bid, error) {
	var bid schema.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND created_at <= ?", auctionID, cutoff).
		Order("amount DESC").
		Order("created_at ASC").
		Order("id ASC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get winning bid candidate: %w", err)
	}
	return &bid, nil
}

// ListAuctionBids returns an auction's bids in admission order
func (s *pgStore) ListAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, error) {
	var bids []*schema.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id ASC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// UpdateAuctionCurrentBid updates the denormalized highest-bid fields
func (s *pgStore) UpdateAuctionCurrentBid(ctx context.Context, auctionID int64, amount decimal.Decimal, bidderID, bidderName string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Auction{}).
		Where("id = ?", auctionID).
		Updates(map[string]interface{}{
			"current_bid":         amount,
			"current_bidder_id":   bidderID,
			"current_bidder_name": bidderName,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update auction current bid: %w", err)
	}
	return nil
}

// MarkAuctionEnded sets status=ended and the winner fields unconditionally,
// so a repair pass rewrites the same values rather than branching.
func (s *pgStore) MarkAuctionEnded(ctx context.Context, auctionID int64, winningBidID *int64, winnerID, winnerName *string, amount *decimal.Decimal) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Auction{}).
		Where("id = ?", auctionID).
		Updates(map[string]interface{}{
			"status":         domain.AuctionStatusEnded,
			"winning_bid_id": winningBidID,
			"winner_user_id": winnerID,
			"winner_name":    winnerName,
			"winning_amount": amount,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark auction ended: %w", err)
	}
	return nil
}

// MarkAuctionCancelled sets status=cancelled
func (s *pgStore) MarkAuctionCancelled(ctx context.Context, auctionID int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Auction{}).
		Where("id = ?", auctionID).
		Update("status", domain.AuctionStatusCancelled).Error
	if err != nil {
		return fmt.Errorf("failed to mark auction cancelled: %w", err)
	}
	return nil
}

// StampAuctionTransferred records when ownership transfer completed. Only the
// first stamp is kept so repair passes don't move the timestamp.
func (s *pgStore) StampAuctionTransferred(ctx context.Context, auctionID int64, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Auction{}).
		Where("id = ? AND transferred_at IS NULL", auctionID).
		Update("transferred_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to stamp auction transferred: %w", err)
	}
	return nil
}

// UpdateTerritoryRuler applies the ownership mutation. The WHERE guard makes
// repeated transfer attempts for the same winner a no-op instead of re-writing
// identical data.
func (s *pgStore) UpdateTerritoryRuler(ctx context.Context, input UpdateRulerInput) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Territory{}).
		Where("id = ? AND (ruler_id IS NULL OR ruler_id <> ?)", input.TerritoryID, input.RulerID).
		Updates(map[string]interface{}{
			"ruler_id":             input.RulerID,
			"ruler_name":           input.RulerName,
			"sovereignty":          domain.SovereigntyProtected,
			"adaptive_market_base": input.AdaptiveMarketBase,
			"protection_ends_at":   input.ProtectionEndsAt,
			"current_auction_id":   nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update territory ruler: %w", err)
	}
	return nil
}

// ClearTerritoryAuction drops the auction reference when it still points at the
// given auction
func (s *pgStore) ClearTerritoryAuction(ctx context.Context, territoryID, auctionID int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Territory{}).
		Where("id = ? AND current_auction_id = ?", territoryID, auctionID).
		Update("current_auction_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to clear territory auction: %w", err)
	}
	return nil
}

// ReleaseTerritory clears the auction reference and restores sovereignty
func (s *pgStore) ReleaseTerritory(ctx context.Context, territoryID int64, sovereignty domain.Sovereignty) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Territory{}).
		Where("id = ?", territoryID).
		Updates(map[string]interface{}{
			"sovereignty":        sovereignty,
			"current_auction_id": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release territory: %w", err)
	}
	return nil
}

// SetTerritoryContested marks a territory contested and records its active auction
func (s *pgStore) SetTerritoryContested(ctx context.Context, territoryID, auctionID int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Territory{}).
		Where("id = ?", territoryID).
		Updates(map[string]interface{}{
			"sovereignty":        domain.SovereigntyContested,
			"current_auction_id": auctionID,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set territory contested: %w", err)
	}
	return nil
}

// InsertOwnershipRecord appends an ownership record. The ON CONFLICT DO NOTHING
// on auction_id is what makes repair passes safe: a duplicate insert is skipped
// silently instead of erroring.
func (s *pgStore) InsertOwnershipRecord(ctx context.Context, record *schema.OwnershipRecord) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "auction_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert ownership record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CloseOpenOwnershipRecords stamps ended_at on the territory's open records,
// excluding the record opened by the given auction
func (s *pgStore) CloseOpenOwnershipRecords(ctx context.Context, territoryID, excludeAuctionID int64, endedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.OwnershipRecord{}).
		Where("territory_id = ? AND auction_id <> ? AND ended_at IS NULL", territoryID, excludeAuctionID).
		Update("ended_at", endedAt).Error
	if err != nil {
		return fmt.Errorf("failed to close ownership records: %w", err)
	}
	return nil
}

// ListTerritoryOwnershipRecords returns a territory's ownership history, newest first
func (s *pgStore) ListTerritoryOwnershipRecords(ctx context.Context, territoryID int64, limit int) ([]*schema.OwnershipRecord, error) {
	var records []*schema.OwnershipRecord
	q := s.db.WithContext(ctx).
		Where("territory_id = ?", territoryID).
		Order("acquired_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list ownership records: %w", err)
	}
	return records, nil
}

// ListExpiredActiveAuctions returns up to limit active auctions whose end time
// has passed, oldest expiry first. The bound keeps per-tick sweep cost constant
// regardless of backlog size.
func (s *pgStore) ListExpiredActiveAuctions(ctx context.Context, now time.Time, limit int) ([]*schema.Auction, error) {
	var auctions []*schema.Auction
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", domain.AuctionStatusActive, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}
	return auctions, nil
}
