// Package realtime provides a lightweight in-process publish/subscribe hub
// used to fan out content-change events to multiple listeners (e.g. WebSocket
// sessions that want to refresh typeahead results after a publish).
//
// Design goals:
//   - Best-effort fan-out: slow listeners drop events (never backpressure
//     the mutation path).
//   - No persistence or replay semantics (ephemeral stream).
package realtime

import (
	"sync"
	"time"
)

// ChangeEvent mirrors a content mutation in the local store. It is the only
// event kind currently produced; the Type field leaves room for heartbeats
// or cache notifications later without changing channel element types.
type ChangeEvent struct {
	Type   string    `json:"type"` // currently always "change"
	Site   string    `json:"site"`
	ItemID string    `json:"item_id"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// events via its own buffered channel. If a listener's buffer is full when an
// event arrives, that event is dropped for that listener only.
//
// The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan ChangeEvent
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan ChangeEvent),
		bufSize:   bufSize,
	}
}

// Register adds a new listener and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources.
func (h *Hub) Register() (uint64, <-chan ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan ChangeEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers an event to all registered listeners (best effort).
func (h *Hub) Broadcast(event ChangeEvent) {
	if event.Type == "" {
		event.Type = "change"
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners (approximate).
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
