// Package broadcast pushes settlement and bid events to connected clients via
// NATS JetStream. Publishing is fire-and-forget relative to the caller:
// failures are logged and retried with a short backoff, never surfaced to the
// settlement path. Delivery is at-least-once.
package broadcast

import (
	"context"

	"github.com/pixelrealm/territory-engine/internal/domain"
)

// Publisher defines the broadcast port consumed by the engine
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishBid announces a committed bid
	PublishBid(ctx context.Context, event *domain.BidEvent)
	// PublishSettlement announces a committed settlement
	PublishSettlement(ctx context.Context, event *domain.SettlementEvent)
	// Close closes the underlying connection
	Close()
}

// noopPublisher satisfies Publisher when no broker is configured
type noopPublisher struct{}

// NewNoopPublisher creates a publisher that drops every event
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishBid(context.Context, *domain.BidEvent)               {}
func (noopPublisher) PublishSettlement(context.Context, *domain.SettlementEvent) {}
func (noopPublisher) Close()                                                     {}
