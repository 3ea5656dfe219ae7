package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/engine"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// PlaceBidRequest is the body for POST /auctions/:id/bids
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	// UserID is used when the caller authenticated with an API key; JWT
	// callers are identified by their token subject instead
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// StartAuctionRequest is the body for POST /admin/territories/:id/auctions
type StartAuctionRequest struct {
	MinBid          decimal.Decimal `json:"min_bid"`
	DurationSeconds int64           `json:"duration_seconds"`
	Force           bool            `json:"force"`
}

// AuctionResponse is the wire shape of an auction
type AuctionResponse struct {
	ID                int64                `json:"id"`
	TerritoryID       int64                `json:"territory_id"`
	Status            domain.AuctionStatus `json:"status"`
	MinBid            decimal.Decimal      `json:"min_bid"`
	CurrentBid        decimal.Decimal      `json:"current_bid"`
	CurrentBidderID   *string              `json:"current_bidder_id,omitempty"`
	CurrentBidderName *string              `json:"current_bidder_name,omitempty"`
	EndTime           time.Time            `json:"end_time"`
	WinnerUserID      *string              `json:"winner_user_id,omitempty"`
	WinnerName        *string              `json:"winner_name,omitempty"`
	WinningAmount     *decimal.Decimal     `json:"winning_amount,omitempty"`
	TransferredAt     *time.Time           `json:"transferred_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

// BidResponse is the wire shape of a single bid
type BidResponse struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// BidAcceptedResponse is returned when a bid is admitted
type BidAcceptedResponse struct {
	Bid        BidResponse     `json:"bid"`
	Auction    AuctionResponse `json:"auction"`
	MinNextBid decimal.Decimal `json:"min_next_bid"`
}

// TerritoryResponse is the wire shape of a territory
type TerritoryResponse struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	RulerID            *string            `json:"ruler_id,omitempty"`
	RulerName          *string            `json:"ruler_name,omitempty"`
	Sovereignty        domain.Sovereignty `json:"sovereignty"`
	BasePrice          decimal.Decimal    `json:"base_price"`
	AdaptiveMarketBase decimal.Decimal    `json:"adaptive_market_base"`
	ProtectionEndsAt   *time.Time         `json:"protection_ends_at,omitempty"`
	CurrentAuctionID   *int64             `json:"current_auction_id,omitempty"`
}

// OwnershipRecordResponse is one entry of a territory's ownership history
type OwnershipRecordResponse struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	UserName   string          `json:"user_name,omitempty"`
	Price      decimal.Decimal `json:"price"`
	AuctionID  int64           `json:"auction_id"`
	AcquiredAt time.Time       `json:"acquired_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// SettlementResponse is returned by the manual finalize endpoint
type SettlementResponse struct {
	AuctionID     int64            `json:"auction_id"`
	TerritoryID   int64            `json:"territory_id"`
	Settled       bool             `json:"settled"`
	Repaired      bool             `json:"repaired"`
	WinnerUserID  *string          `json:"winner_user_id,omitempty"`
	WinnerName    *string          `json:"winner_name,omitempty"`
	WinningAmount *decimal.Decimal `json:"winning_amount,omitempty"`
	NewMarketBase *decimal.Decimal `json:"new_market_base,omitempty"`
}

func toAuctionResponse(a *schema.Auction) AuctionResponse {
	return AuctionResponse{
		ID:                a.ID,
		TerritoryID:       a.TerritoryID,
		Status:            a.Status,
		MinBid:            a.MinBid,
		CurrentBid:        a.CurrentBid,
		CurrentBidderID:   a.CurrentBidderID,
		CurrentBidderName: a.CurrentBidderName,
		EndTime:           a.EndTime,
		WinnerUserID:      a.WinnerUserID,
		WinnerName:        a.WinnerName,
		WinningAmount:     a.WinningAmount,
		TransferredAt:     a.TransferredAt,
		CreatedAt:         a.CreatedAt,
	}
}

func toBidResponse(b *schema.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		UserID:    b.UserID,
		UserName:  b.UserName,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt,
	}
}

func toBidResponses(bids []*schema.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

func toTerritoryResponse(t *schema.Territory) TerritoryResponse {
	return TerritoryResponse{
		ID:                 t.ID,
		Name:               t.Name,
		RulerID:            t.RulerID,
		RulerName:          t.RulerName,
		Sovereignty:        t.Sovereignty,
		BasePrice:          t.BasePrice,
		AdaptiveMarketBase: t.AdaptiveMarketBase,
		ProtectionEndsAt:   t.ProtectionEndsAt,
		CurrentAuctionID:   t.CurrentAuctionID,
	}
}

func toOwnershipRecordResponses(records []*schema.OwnershipRecord) []OwnershipRecordResponse {
	out := make([]OwnershipRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, OwnershipRecordResponse{
			ID:         r.ID,
			UserID:     r.UserID,
			UserName:   r.UserName,
			Price:      r.Price,
			AuctionID:  r.AuctionID,
			AcquiredAt: r.AcquiredAt,
			EndedAt:    r.EndedAt,
		})
	}
	return out
}

func toSettlementResponse(result *engine.SettlementResult) SettlementResponse {
	resp := SettlementResponse{
		AuctionID:     result.AuctionID,
		TerritoryID:   result.TerritoryID,
		Settled:       result.Settled,
		Repaired:      result.Repaired,
		NewMarketBase: result.NewMarketBase,
	}
	if result.Winner != nil {
		resp.WinnerUserID = &result.Winner.UserID
		resp.WinnerName = &result.Winner.UserName
		resp.WinningAmount = &result.Winner.Amount
	}
	return resp
}
