package domain

// Sovereignty represents a territory's ownership state
type Sovereignty string

const (
	// SovereigntyUnconquered means the territory has never been ruled
	SovereigntyUnconquered Sovereignty = "unconquered"
	// SovereigntyContested means an auction for the territory is running
	SovereigntyContested Sovereignty = "contested"
	// SovereigntyRuled means the territory has a ruler and no protection window
	SovereigntyRuled Sovereignty = "ruled"
	// SovereigntyProtected means the territory was recently conquered and is inside its protection window
	SovereigntyProtected Sovereignty = "protected"
)

// IsValidSovereignty checks if a sovereignty value is valid
func IsValidSovereignty(s Sovereignty) bool {
	return s == SovereigntyUnconquered ||
		s == SovereigntyContested ||
		s == SovereigntyRuled ||
		s == SovereigntyProtected
}

// AuctionStatus represents the lifecycle state of an auction.
// Ended and cancelled are terminal.
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether the status can never change again
func (s AuctionStatus) Terminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusCancelled
}

// TriggerKind identifies which call site requested a settlement.
// All three kinds run the same finalize path; the kind exists for
// logging and broadcast payloads only.
type TriggerKind string

const (
	// TriggerManual is a user-visible "end now" request or an admin override
	TriggerManual TriggerKind = "manual"
	// TriggerSweep is the periodic expired-auction sweep
	TriggerSweep TriggerKind = "sweep"
	// TriggerInlineRepair is fired from the bid path when a bid arrives after end time
	TriggerInlineRepair TriggerKind = "inline-repair"
)

// IsValidTriggerKind checks if a trigger kind is valid
func IsValidTriggerKind(k TriggerKind) bool {
	return k == TriggerManual || k == TriggerSweep || k == TriggerInlineRepair
}
