package dispatcher

import (
	"sync"
	"time"
)

// TurnEvent is the live-feed record published after every completed
// turn, consumed by the admin websocket.
type TurnEvent struct {
	TenantID        uint      `json:"tenant_id"`
	Channel         string    `json:"channel"`
	ChannelIdentity string    `json:"channel_identity"`
	EventKind       string    `json:"event_kind"`
	State           string    `json:"state"`
	Temperature     string    `json:"temperature"`
	ReplyText       string    `json:"reply_text,omitempty"`
	At              time.Time `json:"at"`
}

// Hub fans turn events out to websocket subscribers. Slow subscribers
// lose events rather than blocking dispatch.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan TurnEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan TurnEvent]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe() (<-chan TurnEvent, func()) {
	ch := make(chan TurnEvent, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (h *Hub) Publish(ev TurnEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
