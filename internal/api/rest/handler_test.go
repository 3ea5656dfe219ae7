package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelrealm/territory-engine/internal/api/middleware"
	"github.com/pixelrealm/territory-engine/internal/broadcast"
	"github.com/pixelrealm/territory-engine/internal/cache"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/logger"
	"github.com/pixelrealm/territory-engine/internal/ratelimit"
	"github.com/pixelrealm/territory-engine/internal/store"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

const testAPIKey = "test-admin-key"

var restNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.TestMode)
	code := m.Run()
	os.Exit(code)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time                         { return restNow }
func (fixedClock) Since(t time.Time) time.Duration        { return restNow.Sub(t) }
func (fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// restStore backs the handler tests with just the reads and writes the
// exercised endpoints touch. Anything else panics via the embedded nil Store.
type restStore struct {
	store.Store

	auctions    map[int64]*schema.Auction
	territories map[int64]*schema.Territory
	bids        []*schema.Bid
	records     []*schema.OwnershipRecord
	nextBidID   int64
}

func newRestStore() *restStore {
	return &restStore{
		auctions:    make(map[int64]*schema.Auction),
		territories: make(map[int64]*schema.Territory),
		nextBidID:   1,
	}
}

func (s *restStore) Transaction(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *restStore) GetAuction(ctx context.Context, id int64) (*schema.Auction, error) {
	a, ok := s.auctions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *restStore) GetAuctionForUpdate(ctx context.Context, id int64) (*schema.Auction, error) {
	return s.GetAuction(ctx, id)
}

func (s *restStore) GetTerritory(ctx context.Context, id int64) (*schema.Territory, error) {
	t, ok := s.territories[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *restStore) HighestBidAmount(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	highest := decimal.Zero
	for _, b := range s.bids {
		if b.AuctionID == auctionID && b.Amount.GreaterThan(highest) {
			highest = b.Amount
		}
	}
	return highest, nil
}

func (s *restStore) CreateBid(ctx context.Context, bid *schema.Bid) error {
	bid.ID = s.nextBidID
	s.nextBidID++
	cp := *bid
	s.bids = append(s.bids, &cp)
	return nil
}

func (s *restStore) UpdateAuctionCurrentBid(ctx context.Context, auctionID int64, amount decimal.Decimal, bidderID, bidderName string) error {
	a := s.auctions[auctionID]
	a.CurrentBid = amount
	a.CurrentBidderID = &bidderID
	a.CurrentBidderName = &bidderName
	return nil
}

func (s *restStore) ListAuctionBids(ctx context.Context, auctionID int64) ([]*schema.Bid, error) {
	var out []*schema.Bid
	for _, b := range s.bids {
		if b.AuctionID == auctionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *restStore) ListTerritoryOwnershipRecords(ctx context.Context, territoryID int64, limit int) ([]*schema.OwnershipRecord, error) {
	var out []*schema.OwnershipRecord
	for _, r := range s.records {
		if r.TerritoryID == territoryID {
			cp := *r
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestRouter(st *restStore) *gin.Engine {
	return buildTestRouter(st, cache.NewNoopCache(), ratelimit.NewNoopLimiter())
}

func newTestRouterWithLimiter(st *restStore, limiter ratelimit.Limiter) *gin.Engine {
	return buildTestRouter(st, cache.NewNoopCache(), limiter)
}

func buildTestRouter(st *restStore, auctionCache cache.Cache, limiter ratelimit.Limiter) *gin.Engine {
	clock := fixedClock{}
	cfg := engine.Config{
		BidIncrement:     decimal.NewFromInt(1),
		MinimumBasePrice: decimal.NewFromInt(10),
		ProtectionWindow: 168 * time.Hour,
		AuctionDuration:  24 * time.Hour,
	}
	noPub := broadcast.NewNoopPublisher()

	ledger := engine.NewLedger(st, auctionCache, noPub, clock, cfg, nil)
	transfer := engine.NewTransferService(clock, cfg)
	finalizer := engine.NewFinalizer(st, auctionCache, noPub, transfer, clock, cfg)
	admin := engine.NewAdmin(st, auctionCache, clock, cfg)
	reader := engine.NewReader(st, auctionCache)

	router := gin.New()
	SetupRoutes(router, NewHandler(ledger, finalizer, admin, reader), middleware.AuthConfig{
		APIKeys: []string{testAPIKey},
	}, limiter)
	return router
}

// auctionCacheStub serves one canned auction snapshot and counts traffic.
type auctionCacheStub struct {
	cache.Cache

	auction *schema.Auction
	stores  int
}

func (c *auctionCacheStub) GetAuction(ctx context.Context, id int64) (*schema.Auction, bool) {
	if c.auction != nil && c.auction.ID == id {
		return c.auction, true
	}
	return nil, false
}

func (c *auctionCacheStub) SetAuction(ctx context.Context, auction *schema.Auction) {
	c.stores++
}

// allowN admits the first n requests and rejects everything after.
type allowN struct {
	mu        sync.Mutex
	remaining int
}

func (l *allowN) Allow(ctx context.Context, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining > 0 {
		l.remaining--
		return true, 0
	}
	return false, 30 * time.Second
}

func (l *allowN) Close() {}

func seedActiveAuction(st *restStore) {
	st.auctions[3] = &schema.Auction{
		ID:          3,
		TerritoryID: 1,
		Status:      "active",
		MinBid:      decimal.RequireFromString("25"),
		CurrentBid:  decimal.Zero,
		EndTime:     restNow.Add(time.Hour),
	}
	auctionID := int64(3)
	st.territories[1] = &schema.Territory{
		ID:               1,
		Name:             "North Reach",
		Sovereignty:      "contested",
		BasePrice:        decimal.RequireFromString("80"),
		CurrentAuctionID: &auctionID,
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}, auth string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(newRestStore())

	w := doJSON(router, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestGetAuction(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodGet, "/api/v1/auctions/3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuctionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.ID)
	assert.Equal(t, int64(1), resp.TerritoryID)
	assert.True(t, resp.MinBid.Equal(decimal.RequireFromString("25")))
}

func TestGetAuctionBypassCache(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)

	// The cached snapshot lags behind the store.
	stale := *st.auctions[3]
	stale.CurrentBid = decimal.RequireFromString("99")
	cacheStub := &auctionCacheStub{auction: &stale}
	router := buildTestRouter(st, cacheStub, ratelimit.NewNoopLimiter())

	w := doJSON(router, http.MethodGet, "/api/v1/auctions/3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp AuctionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CurrentBid.Equal(decimal.RequireFromString("99")),
		"default read must serve the cached snapshot")

	w = doJSON(router, http.MethodGet, "/api/v1/auctions/3?bypass_cache=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CurrentBid.Equal(decimal.Zero),
		"bypass_cache=true must read through to the store")
	assert.Equal(t, 1, cacheStub.stores)
}

func TestGetAuctionNotFound(t *testing.T) {
	router := newTestRouter(newRestStore())

	w := doJSON(router, http.MethodGet, "/api/v1/auctions/999", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"not_found"`)
}

func TestGetAuctionInvalidID(t *testing.T) {
	router := newTestRouter(newRestStore())

	for _, id := range []string{"abc", "0", "-3"} {
		w := doJSON(router, http.MethodGet, "/api/v1/auctions/"+id, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q", id)
	}
}

func TestPlaceBidRequiresAuth(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids", gin.H{"amount": "30", "user_id": "alice"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"unauthorized"`)
}

func TestPlaceBidAccepted(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids",
		gin.H{"amount": "30", "user_id": "alice", "user_name": "Alice"},
		"ApiKey "+testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp BidAcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Bid.UserID)
	assert.True(t, resp.Bid.Amount.Equal(decimal.RequireFromString("30")))
	assert.True(t, resp.MinNextBid.Equal(decimal.RequireFromString("31")))
	assert.True(t, resp.Auction.CurrentBid.Equal(decimal.RequireFromString("30")))

	require.Len(t, st.bids, 1)
}

func TestPlaceBidRateLimited(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouterWithLimiter(st, &allowN{remaining: 1})

	w := doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids",
		gin.H{"amount": "30", "user_id": "alice"},
		"ApiKey "+testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids",
		gin.H{"amount": "31", "user_id": "alice"},
		"ApiKey "+testAPIKey)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limited", resp.Error.Code)

	require.Len(t, st.bids, 1)
}

func TestPlaceBidTooLow(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids",
		gin.H{"amount": "5", "user_id": "alice"},
		"ApiKey "+testAPIKey)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		MinNextBid decimal.Decimal `json:"min_next_bid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bid_too_low", resp.Error.Code)
	assert.True(t, resp.MinNextBid.Equal(decimal.RequireFromString("25")))
	assert.Empty(t, st.bids)
}

func TestPlaceBidMissingUser(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	// API key callers must name the bidder in the body.
	w := doJSON(router, http.MethodPost, "/api/v1/auctions/3/bids",
		gin.H{"amount": "30"},
		"ApiKey "+testAPIKey)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user_id is required")
}

func TestGetTerritory(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodGet, "/api/v1/territories/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp TerritoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "North Reach", resp.Name)
	require.NotNil(t, resp.CurrentAuctionID)
	assert.Equal(t, int64(3), *resp.CurrentAuctionID)
}

func TestGetTerritoryHistory(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	ended := restNow.Add(-time.Hour)
	st.records = []*schema.OwnershipRecord{
		{ID: 2, TerritoryID: 1, UserID: "bob", Price: decimal.RequireFromString("90"), AuctionID: 2, AcquiredAt: restNow.Add(-time.Hour)},
		{ID: 1, TerritoryID: 1, UserID: "alice", Price: decimal.RequireFromString("80"), AuctionID: 1, AcquiredAt: restNow.Add(-2 * time.Hour), EndedAt: &ended},
	}
	router := newTestRouter(st)

	w := doJSON(router, http.MethodGet, "/api/v1/territories/1/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		History []OwnershipRecordResponse `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 2)
	assert.Equal(t, "bob", resp.History[0].UserID)

	w = doJSON(router, http.MethodGet, "/api/v1/territories/1/history?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRejectMissingKey(t *testing.T) {
	st := newRestStore()
	seedActiveAuction(st)
	router := newTestRouter(st)

	w := doJSON(router, http.MethodPost, "/api/v1/admin/auctions/3/cancel", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/auctions/3/cancel", nil, "ApiKey wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
