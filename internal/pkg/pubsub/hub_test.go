package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestHub_DescendantDelivery(t *testing.T) {
	h := NewHub(8)

	loans, cancelLoans := h.Subscribe(LoansRoot)
	defer cancelLoans()
	all, cancelAll := h.Subscribe("")
	defer cancelAll()
	savings, cancelSavings := h.Subscribe(SavingsRoot)
	defer cancelSavings()

	h.Publish(Event{Path: LoanPath("l1"), Kind: KindUpdated})

	assert.Equal(t, "org/ledger/loans/l1", receive(t, loans).Path)
	assert.Equal(t, KindUpdated, receive(t, all).Kind)
	assertEmpty(t, savings)
}

func TestHub_PrefixIsNotDescendant(t *testing.T) {
	assert.True(t, Matches("org/ledger/loans", "org/ledger/loans/1"))
	assert.True(t, Matches("org/ledger/loans", "org/ledger/loans"))
	assert.False(t, Matches("org/ledger/loan", "org/ledger/loans/1"))
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe(Root)
	defer cancel()

	h.Publish(Event{Path: UserPath("a")})
	h.Publish(Event{Path: UserPath("b")})

	assert.Equal(t, "org/user/a", receive(t, ch).Path)
	assertEmpty(t, ch)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe(Root)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
	h.Publish(Event{Path: Root})
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe(Root)
	h.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe(Root)
	_, ok = <-late
	assert.False(t, ok)
}

func TestHub_StampsTime(t *testing.T) {
	h := NewHub(1)
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	ch, cancel := h.Subscribe(Root)
	defer cancel()
	h.Publish(Event{Path: "/org/rates/r1/"})

	e := receive(t, ch)
	assert.Equal(t, "org/rates/r1", e.Path)
	assert.True(t, e.At.Equal(fixed))
}
