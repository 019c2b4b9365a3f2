// Package pubsub fans ledger change notifications out to path subscribers.
//
// Paths are slash separated (org/ledger/loans/{id}). A subscription to a path
// receives events published on that path and every path below it.
package pubsub

import (
	"strings"
	"sync"
	"time"
)

// Event kinds
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	KindOverdue = "overdue"
)

// Roots of the organisation tree
const (
	Root        = "org"
	UsersRoot   = "org/user"
	RatesRoot   = "org/rates"
	SavingsRoot = "org/ledger/savings"
	LoansRoot   = "org/ledger/loans"
)

func UserPath(id string) string    { return UsersRoot + "/" + id }
func RatePath(id string) string    { return RatesRoot + "/" + id }
func SavingsPath(id string) string { return SavingsRoot + "/" + id }
func LoanPath(id string) string    { return LoansRoot + "/" + id }

// Event is one committed change
type Event struct {
	Path string      `json:"path"`
	Kind string      `json:"kind"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data,omitempty"`
}

// Publisher is what services depend on
type Publisher interface {
	Publish(Event)
}

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 64

type subscription struct {
	path string
	ch   chan Event
}

// Hub is an in-process Publisher with path subscriptions
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	buffer int
	closed bool
	now    func() time.Time
}

// NewHub creates a hub whose subscribers buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
		now:    time.Now,
	}
}

// Clean normalises a subscription path: trims slashes, empty means Root
func Clean(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return Root
	}
	return path
}

// Matches reports whether an event on eventPath is visible to a subscriber of path
func Matches(path, eventPath string) bool {
	return eventPath == path || strings.HasPrefix(eventPath, path+"/")
}

// Subscribe returns a channel of events under path and a cancel func.
// The channel is closed by cancel or Close.
func (h *Hub) Subscribe(path string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = &subscription{path: Clean(path), ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers e to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = h.now()
	}
	e.Path = Clean(e.Path)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !Matches(sub.path, e.Path) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Subscribers is the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
