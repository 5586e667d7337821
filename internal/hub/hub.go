// Package hub fans alert events out to subscribed operator connections,
// mirroring the reference service's broadcast loop over its websocket
// connection manager.
package hub

import (
	"sync"
	"time"

	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
)

// Event is one outbound frame sent to every connected subscriber.
type Event struct {
	Kind      string `json:"kind"`
	Data      any    `json:"data"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Subscriber is a single connected operator stream. Send must be safe to
// call from the hub's broadcast loop; an error return marks the subscriber
// for removal.
type Subscriber interface {
	ID() string
	Send(event Event) error
}

// Hub tracks subscribers under one mutex and serialises broadcast to each.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]Subscriber
	metrics *metrics.Metrics
}

// New constructs an empty Hub. m may be nil, in which case subscriber count
// is not reported.
func New(m *metrics.Metrics) *Hub {
	return &Hub{subs: make(map[string]Subscriber), metrics: m}
}

// Register adds a subscriber. Re-registering the same ID replaces the
// previous entry.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.ID()] = sub
	h.reportCount()
}

// Unregister removes a subscriber, if present.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	h.reportCount()
}

// reportCount updates the subscriber gauge. Caller must hold h.mu.
func (h *Hub) reportCount() {
	if h.metrics != nil {
		h.metrics.SubscriberCount.Set(float64(len(h.subs)))
	}
}

// Count reports the current number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends event to every subscriber, in map-iteration order (FIFO
// per subscriber, unspecified across subscribers, per contract). A
// subscriber whose Send fails is removed before the lock is released; a
// broadcast never blocks waiting for a slow subscriber to free up since
// Send is expected to be non-blocking or have its own write deadline.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []string
	for id, sub := range h.subs {
		if err := sub.Send(event); err != nil {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(h.subs, id)
	}
}
