package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelrealm/territory-engine/internal/api/middleware"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/engine"
)

// Handler defines the REST API handler interface
type Handler interface {
	HealthCheck(c *gin.Context)
	GetAuction(c *gin.Context)
	ListAuctionBids(c *gin.Context)
	PlaceBid(c *gin.Context)
	FinalizeAuction(c *gin.Context)
	GetTerritory(c *gin.Context)
	GetTerritoryHistory(c *gin.Context)
	StartAuction(c *gin.Context)
	CancelAuction(c *gin.Context)
}

type handler struct {
	ledger    *engine.Ledger
	finalizer *engine.Finalizer
	admin     *engine.Admin
	reader    *engine.Reader
}

// NewHandler creates a new REST handler
func NewHandler(
	ledger *engine.Ledger,
	finalizer *engine.Finalizer,
	admin *engine.Admin,
	reader *engine.Reader,
) Handler {
	return &handler{
		ledger:    ledger,
		finalizer: finalizer,
		admin:     admin,
		reader:    reader,
	}
}

// HealthCheck handles GET /health
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// GetAuction handles GET /api/v1/auctions/:id
func (h *handler) GetAuction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	auction, err := h.reader.GetAuction(c.Request.Context(), id, bypassCacheRequested(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

// ListAuctionBids handles GET /api/v1/auctions/:id/bids
func (h *handler) ListAuctionBids(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	bids, err := h.reader.ListAuctionBids(c.Request.Context(), id, bypassCacheRequested(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": toBidResponses(bids)})
}

// PlaceBid handles POST /api/v1/auctions/:id/bids
func (h *handler) PlaceBid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	// JWT callers bid as themselves; the API key path trusts the body.
	userID := middleware.AuthSubject(c)
	if userID == "" {
		userID = req.UserID
	}
	if userID == "" {
		respondValidationError(c, "user_id is required")
		return
	}

	result, err := h.ledger.PlaceBid(c.Request.Context(), engine.PlaceBidInput{
		AuctionID: id,
		UserID:    userID,
		UserName:  req.UserName,
		Amount:    req.Amount,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, BidAcceptedResponse{
		Bid:        toBidResponse(result.Bid),
		Auction:    toAuctionResponse(result.Auction),
		MinNextBid: result.MinNextBid,
	})
}

// FinalizeAuction handles POST /api/v1/auctions/:id/finalize
func (h *handler) FinalizeAuction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.finalizer.Finalize(c.Request.Context(), id, domain.TriggerManual)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettlementResponse(result))
}

// GetTerritory handles GET /api/v1/territories/:id
func (h *handler) GetTerritory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	territory, err := h.reader.GetTerritory(c.Request.Context(), id, bypassCacheRequested(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTerritoryResponse(territory))
}

// GetTerritoryHistory handles GET /api/v1/territories/:id/history
func (h *handler) GetTerritoryHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondValidationError(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := h.reader.ListTerritoryHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": toOwnershipRecordResponses(records)})
}

// StartAuction handles POST /api/v1/admin/territories/:id/auctions
func (h *handler) StartAuction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req StartAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if req.DurationSeconds < 0 {
		respondValidationError(c, "duration_seconds must be non-negative")
		return
	}

	auction, err := h.admin.StartAuction(c.Request.Context(), engine.StartAuctionInput{
		TerritoryID: id,
		MinBid:      req.MinBid,
		Duration:    time.Duration(req.DurationSeconds) * time.Second,
		Force:       req.Force,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// CancelAuction handles POST /api/v1/admin/auctions/:id/cancel
func (h *handler) CancelAuction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.admin.CancelAuction(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// pathID parses the :id path parameter, responding with 400 on garbage
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// bypassCacheRequested reports whether the caller asked to skip the cache
func bypassCacheRequested(c *gin.Context) bool {
	return c.Query("bypass_cache") == "true"
}
