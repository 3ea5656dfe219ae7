package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeConflict         ErrorCode = "conflict"
	errCodeBidTooLow        ErrorCode = "bid_too_low"
	errCodeAuctionExpired   ErrorCode = "auction_expired"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// bidRejectionResponse extends the error envelope with the minimum acceptable
// next bid so clients can re-bid without another round trip
type bidRejectionResponse struct {
	Error      errorDetail     `json:"error"`
	MinNextBid decimal.Decimal `json:"min_next_bid"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondDomainError maps engine errors onto HTTP responses. Unknown errors
// land on 500.
func respondDomainError(c *gin.Context, err error) {
	var tooLow *domain.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		c.JSON(http.StatusUnprocessableEntity, bidRejectionResponse{
			Error: errorDetail{
				Code:    errCodeBidTooLow,
				Message: "Bid below minimum",
				Details: tooLow.Error(),
			},
			MinNextBid: tooLow.MinNextBid,
		})
	case errors.Is(err, domain.ErrAuctionNotFound):
		respondNotFound(c, "Auction not found")
	case errors.Is(err, domain.ErrTerritoryNotFound):
		respondNotFound(c, "Territory not found")
	case errors.Is(err, domain.ErrAuctionExpired):
		respondWithError(c, http.StatusConflict, errCodeAuctionExpired, "Auction has expired", err.Error())
	case errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrInvalidAuctionState),
		errors.Is(err, domain.ErrAuctionAlreadyRunning),
		errors.Is(err, domain.ErrTerritoryProtected):
		respondWithError(c, http.StatusConflict, errCodeConflict, "Operation conflicts with current state", err.Error())
	default:
		respondInternalError(c, err, "Internal server error")
	}
}
