package broadcast

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/domain"
	"github.com/pixelrealm/territory-engine/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	mu        sync.Mutex
	published []published
	// failures is how many publishes should error before succeeding
	failures int
}

func (f *fakeJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("nats: timeout")
	}
	f.published = append(f.published, published{subject: subject, data: data})
	return &jetstream.PubAck{Stream: "TERRITORY"}, nil
}

type fakeConn struct {
	closed bool
}

func (f *fakeConn) Close()              { f.closed = true }
func (f *fakeConn) LastError() error    { return nil }
func (f *fakeConn) ConnectedUrl() string { return "nats://localhost:4222" }

type fakeNatsJetStream struct {
	conn *fakeConn
	js   *fakeJetStream
	err  error
}

func (f *fakeNatsJetStream) Connect(url string, options ...nats.Option) (adapter.NatsConn, adapter.JetStream, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.conn, f.js, nil
}

func newTestPublisher(t *testing.T, js *fakeJetStream) (Publisher, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	p, err := NewNatsPublisher(Config{
		URL:            "nats://localhost:4222",
		MaxReconnects:  1,
		ReconnectWait:  time.Millisecond,
		ConnectionName: "test",
	}, &fakeNatsJetStream{conn: conn, js: js}, adapter.NewJSON())
	require.NoError(t, err)
	return p, conn
}

func TestPublishBid(t *testing.T) {
	js := &fakeJetStream{}
	p, _ := newTestPublisher(t, js)

	p.PublishBid(context.Background(), &domain.BidEvent{
		EventID:     "evt-1",
		AuctionID:   3,
		TerritoryID: 1,
		UserID:      "alice",
		Amount:      decimal.RequireFromString("96"),
		MinNextBid:  decimal.RequireFromString("97"),
	})

	require.Len(t, js.published, 1)
	assert.Equal(t, SubjectBidPlaced, js.published[0].subject)
	assert.Contains(t, string(js.published[0].data), `"evt-1"`)
	assert.Contains(t, string(js.published[0].data), `"alice"`)
}

func TestPublishSettlement(t *testing.T) {
	js := &fakeJetStream{}
	p, _ := newTestPublisher(t, js)

	winnerID := "alice"
	p.PublishSettlement(context.Background(), &domain.SettlementEvent{
		EventID:      "evt-2",
		AuctionID:    3,
		TerritoryID:  1,
		Trigger:      domain.TriggerSweep,
		WinnerUserID: &winnerID,
	})

	require.Len(t, js.published, 1)
	assert.Equal(t, SubjectAuctionSettled, js.published[0].subject)
}

func TestPublishRetriesTransientFailure(t *testing.T) {
	js := &fakeJetStream{failures: 2}
	p, _ := newTestPublisher(t, js)

	p.PublishBid(context.Background(), &domain.BidEvent{EventID: "evt-3", AuctionID: 3})

	require.Len(t, js.published, 1)
}

func TestPublishGivesUpAfterMaxRetries(t *testing.T) {
	js := &fakeJetStream{failures: publishMaxRetries + 1}
	p, _ := newTestPublisher(t, js)

	// Must not panic or block; the error is logged and dropped.
	p.PublishBid(context.Background(), &domain.BidEvent{EventID: "evt-4", AuctionID: 3})

	assert.Empty(t, js.published)
}

func TestCloseClosesConnection(t *testing.T) {
	p, conn := newTestPublisher(t, &fakeJetStream{})
	p.Close()
	assert.True(t, conn.closed)
}

func TestNewNatsPublisherConnectError(t *testing.T) {
	_, err := NewNatsPublisher(Config{URL: "nats://down:4222"}, &fakeNatsJetStream{err: errors.New("connection refused")}, adapter.NewJSON())
	require.Error(t, err)
}
