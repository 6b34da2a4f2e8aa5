package ipc

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ternarybob/promptline/internal/metrics"
)

// Event kinds.
const (
	KindRenderer = "renderer"
	KindControl  = "control"
)

// Event is one message for bridge subscribers. Renderer events carry an
// allow-listed channel; control events carry a window operation.
type Event struct {
	Kind      string `json:"kind"`
	Channel   string `json:"channel"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Bus) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
}

// Send validates channel and publishes a renderer event.
func (b *Bus) Send(channel string, payload any) error {
	if err := Validate(channel); err != nil {
		return err
	}
	b.Publish(Event{Kind: KindRenderer, Channel: channel, Payload: payload})
	metrics.RecordRendererEvent(channel)
	return nil
}

// Control publishes a window operation for the native host.
func (b *Bus) Control(op string, payload any) {
	b.Publish(Event{Kind: KindControl, Channel: op, Payload: payload})
}

// Count returns the current number of subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
