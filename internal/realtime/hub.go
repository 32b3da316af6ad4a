// Package realtime fans stored classification records out to live dashboard
// connections. Streams are one-way: a dropped connection is re-established
// by the client, with no server-side replay.
package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
)

const subscriberBuffer = 8

// Hub routes records to per-user subscribers. It implements core.Notifier.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *core.StoredRecord]struct{}
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[string]map[chan *core.StoredRecord]struct{}{},
		logger: logger,
	}
}

// Subscribe registers a stream for the user. The returned cancel function
// must be called when the connection closes.
func (h *Hub) Subscribe(user string) (<-chan *core.StoredRecord, func()) {
	ch := make(chan *core.StoredRecord, subscriberBuffer)

	h.mu.Lock()
	if h.subs[user] == nil {
		h.subs[user] = map[chan *core.StoredRecord]struct{}{}
	}
	h.subs[user][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[user]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, user)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a record to every live subscriber for the user. Delivery
// never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(user string, rec *core.StoredRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[user] {
		select {
		case ch <- rec:
		default:
			h.logger.Warn("dropping realtime event for slow subscriber",
				zap.String("user", user),
				zap.String("message_id", rec.ID))
		}
	}
}

// Subscribers reports the number of live connections for a user.
func (h *Hub) Subscribers(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[user])
}
