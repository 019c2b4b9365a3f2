package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	"coop-ledger/internal/pkg/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	got  chan struct{}
}

func (r *recordingPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	r.mu.Lock()
	r.keys = append(r.keys, routingKey)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recordingPublisher) Close() {}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "org.ledger.loans.abc", RoutingKey("org/ledger/loans/abc"))
	assert.Equal(t, "org", RoutingKey(""))
}

func TestConnect_EmptyURLFallsBack(t *testing.T) {
	pub := Connect("", "coop.ledger")
	assert.IsType(t, Fallback{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), "org.user.1", nil))
}

func TestNewProducer_RejectsBadScheme(t *testing.T) {
	_, err := NewProducer("http://localhost:5672", "coop.ledger")
	assert.Error(t, err)
}

func TestForward(t *testing.T) {
	hub := pubsub.NewHub(4)
	rec := &recordingPublisher{got: make(chan struct{}, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Forward(ctx, hub, rec)
	require.Equal(t, 1, hub.Subscribers(), "subscription must exist when Forward returns")

	hub.Publish(pubsub.Event{Path: pubsub.SavingsPath("s1"), Kind: pubsub.KindUpdated})

	select {
	case <-rec.got:
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.keys, 1)
	assert.Equal(t, "org.ledger.savings.s1", rec.keys[0])
}
