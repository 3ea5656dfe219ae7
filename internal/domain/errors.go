package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAuctionNotFound is returned when an auction does not exist
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrTerritoryNotFound is returned when a territory does not exist.
	// Inside a finalize transaction this is fatal and rolls back the whole call.
	ErrTerritoryNotFound = errors.New("territory not found")

	// ErrAuctionNotActive is returned when bidding on an auction that is not active
	ErrAuctionNotActive = errors.New("auction is not active")

	// ErrAuctionExpired is returned when a bid arrives after the auction's end time
	ErrAuctionExpired = errors.New("auction has expired")

	// ErrInvalidAuctionState is returned when finalizing an auction that is
	// neither active nor ended (cancelled auctions are never settled)
	ErrInvalidAuctionState = errors.New("auction is in an invalid state for settlement")

	// ErrBidTooLow is the sentinel for bids below the minimum next bid
	ErrBidTooLow = errors.New("bid below minimum")

	// ErrAuctionAlreadyRunning is returned when starting an auction for a
	// territory that already references an active auction
	ErrAuctionAlreadyRunning = errors.New("territory already has an active auction")

	// ErrTerritoryProtected is returned when starting an auction inside a
	// protection window without the explicit force flag
	ErrTerritoryProtected = errors.New("territory is inside its protection window")
)

// BidTooLowError carries the minimum acceptable next bid so callers never
// have to recompute it client-side.
type BidTooLowError struct {
	MinNextBid decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid below minimum, next acceptable amount is %s", e.MinNextBid.String())
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}
