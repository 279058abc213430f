package eventbus

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a domain event. The names match what external indexers
// consume, so renaming one is a breaking change.
type Type string

const (
	TypePermissionReceived  Type = "PermissionReceived"
	TypePermissionRevoked   Type = "PermissionRevoked"
	TypeSubDelegationIssued Type = "SubDelegationIssued"
	TypeDelegationRevoked   Type = "DelegationRevoked"
	TypeExecutionTriggered  Type = "ExecutionTriggered"
	TypeSwapExecuted        Type = "SwapExecuted"
	TypeQuotaExceeded       Type = "QuotaExceeded"
	TypePriceUpdated        Type = "PriceUpdated"
)

// Event is the envelope published on the bus. Payload holds the
// event-specific fields as JSON, defined by the emitting package.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	ResourceID string          `json:"resourceId"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Bus is an in-process publish/subscribe fan-out. Slow subscribers drop
// events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

// PublishNew marshals payload and publishes it under a fresh event ID.
func (b *Bus) PublishNew(eventType Type, resourceID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event payload", "type", eventType, "error", err)
		return
	}
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Payload:    data,
		CreatedAt:  time.Now(),
	})
}
