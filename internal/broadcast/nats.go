package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
)

const (
	// SubjectBidPlaced receives bid events
	SubjectBidPlaced = "territory.auction.bid"
	// SubjectAuctionSettled receives settlement events
	SubjectAuctionSettled = "territory.auction.settled"

	publishRetryInterval = 100 * time.Millisecond
	publishMaxRetries    = 3
)

// Config holds the configuration for the NATS JetStream connection
type Config struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

type natsPublisher struct {
	nc   adapter.NatsConn
	js   adapter.JetStream
	json adapter.JSON
}

// NewNatsPublisher creates a new NATS JetStream publisher
func NewNatsPublisher(cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &natsPublisher{
		nc:   nc,
		js:   js,
		json: jsonAdapter,
	}, nil
}

// PublishBid announces a committed bid
func (p *natsPublisher) PublishBid(ctx context.Context, event *domain.BidEvent) {
	p.publish(ctx, SubjectBidPlaced, event)
}

// PublishSettlement announces a committed settlement
func (p *natsPublisher) PublishSettlement(ctx context.Context, event *domain.SettlementEvent) {
	p.publish(ctx, SubjectAuctionSettled, event)
}

// publish marshals and publishes with a bounded retry. Errors never reach the
// caller; the settlement has already committed by the time we get here.
func (p *natsPublisher) publish(ctx context.Context, subject string, event interface{}) {
	data, err := p.json.Marshal(event)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to marshal broadcast event: %w", err), zap.String("subject", subject))
		return
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(publishRetryInterval), publishMaxRetries),
		ctx,
	)
	err = backoff.Retry(func() error {
		_, err := p.js.Publish(ctx, subject, data)
		return err
	}, policy)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to publish broadcast event: %w", err), zap.String("subject", subject))
	}
}

// Close closes the NATS connection
func (p *natsPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
