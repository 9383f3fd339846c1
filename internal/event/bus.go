package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultBuffer = 64

type InMemoryBus struct {
	mu          sync.RWMutex
	buffer      int
	subscribers map[string]chan Event
}

func NewBus(buffer int) *InMemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &InMemoryBus{
		buffer:      buffer,
		subscribers: make(map[string]chan Event),
	}
}

// Publish fans e out to every subscriber without blocking; full subscribers miss the event.
func (b *InMemoryBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			slog.Debug("event dropped", "subscriber", id, "type", e.Type)
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			close(ch)
			delete(b.subscribers, id)
		})
	}

	return ch, unsubscribe
}
