package engine

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// fakeStore is an in-memory Store. It mirrors the row-update guards of the
// real implementation (conditional ruler update, conflict-skipping ownership
// insert, nil-only transfer stamp) so settlement tests exercise the same
// convergence behavior the database enforces.
type fakeStore struct {
	mu sync.Mutex

	auctions    map[int64]*schema.Auction
	territories map[int64]*schema.Territory
	bids        []*schema.Bid
	records     []*schema.OwnershipRecord

	nextAuctionID int64
	nextBidID     int64
	nextRecordID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions:    make(map[int64]*schema.Auction),
		territories: make(map[int64]*schema.Territory),
	}
}

func (f *fakeStore) putAuction(a *schema.Auction) *schema.Auction {
	if a.ID == 0 {
		f.nextAuctionID++
		a.ID = f.nextAuctionID
	} else if a.ID > f.nextAuctionID {
		f.nextAuctionID = a.ID
	}
	f.auctions[a.ID] = a
	return a
}

func (f *fakeStore) putTerritory(t *schema.Territory) *schema.Territory {
	f.territories[t.ID] = t
	return t
}

func copyAuction(a *schema.Auction) *schema.Auction {
	cp := *a
	return &cp
}

func copyTerritory(t *schema.Territory) *schema.Territory {
	cp := *t
	return &cp
}

func (f *fakeStore) Transaction(ctx context.Context, fn func(store.Store) error) error {
	return fn(f)
}

func (f *fakeStore) GetAuction(ctx context.Context, id int64) (*schema.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return nil, nil
	}
	return copyAuction(a), nil
}

func (f *fakeStore) GetAuctionForUpdate(ctx context.Context, id int64) (*schema.Auction, error) {
	return f.GetAuction(ctx, id)
}

func (f *fakeStore) GetTerritory(ctx context.Context, id int64) (*schema.Territory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.territories[id]
	if !ok {
		return nil, nil
	}
	return copyTerritory(t), nil
}

func (f *fakeStore) GetTerritoryForUpdate(ctx context.Context, id int64) (*schema.Territory, error) {
	return f.GetTerritory(ctx, id)
}

func (f *fakeStore) CreateAuction(ctx context.Context, auction *schema.Auction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putAuction(auction)
	return nil
}

func (f *fakeStore) CreateBid(ctx context.Context, bid *schema.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBidID++
	bid.ID = f.nextBidID
	cp := *bid
	f.bids = append(f.bids, &cp)
	return nil
}

func (f *fakeStore) HighestBidAmount(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	highest := decimal.Zero
	for _, b := range f.bids {
		if b.AuctionID == auctionID && b.Amount.GreaterThan(highest) {
			highest = b.Amount
		}
	}
	return highest, nil
}

func (f *fakeStore) WinningBidCandidate(ctx context.Context, auctionID int64, cutoff time.Time) (*schema.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var eligible []*schema.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID && !b.CreatedAt.After(cutoff) {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].Amount.Equal(eligible[j].Amount) {
			return eligible[i].Amount.GreaterThan(eligible[j].Amount)
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})
	cp := *eligible[0]
	return &cp, nil
}

func (f *fakeStore) ListAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*schema.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateAuctionCurrentBid(ctx context.Context, auctionID int64, amount decimal.Decimal, bidderID, bidderName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[auctionID]
	a.CurrentBid = amount
	a.CurrentBidderID = &bidderID
	a.CurrentBidderName = &bidderName
	return nil
}

func (f *fakeStore) MarkAuctionEnded(ctx context.Context, auctionID int64, winningBidID *int64, winnerID, winnerName *string, amount *decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[auctionID]
	a.Status = domain.AuctionStatusEnded
	a.WinningBidID = winningBidID
	a.WinnerUserID = winnerID
	a.WinnerName = winnerName
	a.WinningAmount = amount
	return nil
}

func (f *fakeStore) MarkAuctionCancelled(ctx context.Context, auctionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auctions[auctionID].Status = domain.AuctionStatusCancelled
	return nil
}

func (f *fakeStore) StampAuctionTransferred(ctx context.Context, auctionID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[auctionID]
	if a.TransferredAt == nil {
		a.TransferredAt = &at
	}
	return nil
}

func (f *fakeStore) UpdateTerritoryRuler(ctx context.Context, input store.UpdateRulerInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.territories[input.TerritoryID]
	if t.RulerID != nil && *t.RulerID == input.RulerID {
		return nil
	}
	rulerID := input.RulerID
	rulerName := input.RulerName
	endsAt := input.ProtectionEndsAt
	t.RulerID = &rulerID
	t.RulerName = &rulerName
	t.Sovereignty = domain.SovereigntyProtected
	t.AdaptiveMarketBase = input.AdaptiveMarketBase
	t.ProtectionEndsAt = &endsAt
	t.CurrentAuctionID = nil
	return nil
}

func (f *fakeStore) ClearTerritoryAuction(ctx context.Context, territoryID, auctionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.territories[territoryID]
	if t.CurrentAuctionID != nil && *t.CurrentAuctionID == auctionID {
		t.CurrentAuctionID = nil
		if t.RulerID != nil {
			t.Sovereignty = domain.SovereigntyRuled
			if t.ProtectionEndsAt != nil {
				t.Sovereignty = domain.SovereigntyProtected
			}
		}
	}
	return nil
}

func (f *fakeStore) ReleaseTerritory(ctx context.Context, territoryID int64, sovereignty domain.Sovereignty) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.territories[territoryID]
	t.CurrentAuctionID = nil
	t.Sovereignty = sovereignty
	return nil
}

func (f *fakeStore) SetTerritoryContested(ctx context.Context, territoryID, auctionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.territories[territoryID]
	t.Sovereignty = domain.SovereigntyContested
	t.CurrentAuctionID = &auctionID
	return nil
}

func (f *fakeStore) InsertOwnershipRecord(ctx context.Context, record *schema.OwnershipRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.AuctionID == record.AuctionID {
			return false, nil
		}
	}
	f.nextRecordID++
	record.ID = f.nextRecordID
	cp := *record
	f.records = append(f.records, &cp)
	return true, nil
}

func (f *fakeStore) CloseOpenOwnershipRecords(ctx context.Context, territoryID, excludeAuctionID int64, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.TerritoryID == territoryID && r.AuctionID != excludeAuctionID && r.EndedAt == nil {
			at := endedAt
			r.EndedAt = &at
		}
	}
	return nil
}

func (f *fakeStore) ListTerritoryOwnershipRecords(ctx context.Context, territoryID int64, limit int) ([]*schema.OwnershipRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*schema.OwnershipRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].TerritoryID == territoryID {
			cp := *f.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpiredActiveAuctions(ctx context.Context, now time.Time, limit int) ([]*schema.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*schema.Auction
	for _, a := range f.auctions {
		if a.Status == domain.AuctionStatusActive && !a.EndTime.After(now) {
			out = append(out, copyAuction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakePublisher records broadcast events
type fakePublisher struct {
	mu          sync.Mutex
	bids        []*domain.BidEvent
	settlements []*domain.SettlementEvent
}

func (p *fakePublisher) PublishBid(ctx context.Context, event *domain.BidEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bids = append(p.bids, event)
}

func (p *fakePublisher) PublishSettlement(ctx context.Context, event *domain.SettlementEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settlements = append(p.settlements, event)
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) settlementCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.settlements)
}

// fakeClock returns a fixed time that tests can move
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
