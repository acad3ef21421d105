// Package push delivers unsolicited notifications from the resolver to every
// connected interceptor instance.
package push

import (
	"context"
	"log/slog"
	"sync"

	"titlelink/api/internal/links"
)

type EventType string

const (
	// EventTitleResolved upgrades a placeholder link after a sign-in retry.
	EventTitleResolved EventType = "titleResolved"
	// EventAuthRequired asks the user to sign in to a service.
	EventAuthRequired EventType = "authRequired"
)

type Event struct {
	Type     EventType      `json:"type"`
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
	ItemType links.ItemType `json:"itemType,omitempty"`
	Service  links.Kind     `json:"service,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Publisher sends an event to all listening instances. Delivery is
// fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	buffer      int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subscribers: make(map[string]chan Event), buffer: buffer}
}

// Subscribe registers id and returns its event channel plus a function that
// unregisters it. Subscribing an id twice replaces the older stream.
func (h *Hub) Subscribe(id string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	if old, ok := h.subscribers[id]; ok {
		close(old)
	}
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if current, ok := h.subscribers[id]; ok && current == ch {
				delete(h.subscribers, id)
				close(ch)
			}
		})
	}
}

// Publish implements Publisher for a single process.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event)
	return nil
}

// Broadcast delivers event to every subscriber without blocking; a
// subscriber whose buffer is full misses the event. It returns the number
// of subscribers reached.
func (h *Hub) Broadcast(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
			delivered++
		default:
			slog.Warn("push: subscriber buffer full, dropping event", "subscriber", id, "type", event.Type, "url", event.URL)
		}
	}
	pushEventsTotal.WithLabelValues(string(event.Type)).Add(float64(delivered))
	return delivered
}

// Subscribers returns the number of connected instances.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
