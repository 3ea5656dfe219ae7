package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/store/schema"
)

// Winner is the settled outcome of an auction. BidID is nil when the winner
// was recovered from the auction's denormalized fields rather than a ledger row.
type Winner struct {
	BidID    *int64
	UserID   string
	UserName string
	Amount   decimal.Decimal
}

// reconcileWinner merges the ledger-derived candidate with the auction's
// denormalized current-bid fields and keeps whichever source yields the higher
// amount. This defends against a last-instant bid that was accepted into the
// ledger but not yet reflected in the denormalized fields, and the reverse.
func reconcileWinner(candidate *schema.Bid, auction *schema.Auction) *Winner {
	var winner *Winner
	if candidate != nil {
		bidID := candidate.ID
		winner = &Winner{
			BidID:    &bidID,
			UserID:   candidate.UserID,
			UserName: candidate.UserName,
			Amount:   candidate.Amount,
		}
	}

	if auction.CurrentBidderID != nil && auction.CurrentBid.IsPositive() {
		if winner == nil || auction.CurrentBid.GreaterThan(winner.Amount) {
			name := ""
			if auction.CurrentBidderName != nil {
				name = *auction.CurrentBidderName
			}
			winner = &Winner{
				UserID:   *auction.CurrentBidderID,
				UserName: name,
				Amount:   auction.CurrentBid,
			}
		}
	}

	return winner
}

// settlementConverged reports whether a previously ended auction needs no
// further writes: the territory no longer references it, and when there is a
// winner, its transfer demonstrably completed. The ruler comparison alone is
// not enough because a later auction may have legitimately moved ownership on.
func settlementConverged(auction *schema.Auction, territory *schema.Territory, winner *Winner) bool {
	if territory == nil {
		return false
	}
	if territory.CurrentAuctionID != nil && *territory.CurrentAuctionID == auction.ID {
		return false
	}
	if winner == nil {
		return true
	}
	if auction.TransferredAt != nil {
		return true
	}
	return territory.RulerID != nil && *territory.RulerID == winner.UserID
}

// idleSovereignty is the territory state after its auction goes away without a
// new conquest: back to the incumbent ruler (still protected if their window is
// open), or unconquered when there is none.
func idleSovereignty(territory *schema.Territory, now time.Time) domain.Sovereignty {
	if territory.RulerID == nil {
		return domain.SovereigntyUnconquered
	}
	if territory.ProtectionEndsAt != nil && territory.ProtectionEndsAt.After(now) {
		return domain.SovereigntyProtected
	}
	return domain.SovereigntyRuled
}
