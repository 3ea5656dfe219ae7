// Package sweeper hosts the background loops that settle expired auctions.
package sweeper

import (
	"context"
)

// Sweeper is a long-running background loop. The settlement sweeper is the
// only implementation today; the interface keeps the main wiring uniform if
// more maintenance loops are added.
//
//go:generate mockgen -source=sweeper.go -destination=../mocks/sweeper.go -package=mocks -mock_names=Sweeper=MockSweeper
type Sweeper interface {
	// Start launches the loop. It returns once the loop is running and
	// errors if the sweeper was already started.
	Start(ctx context.Context) error

	// Stop stops the loop, waiting for the in-flight sweep to finish.
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs.
	Name() string
}
