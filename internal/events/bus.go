package events

import (
	"sync"
	"time"
)

// Bus is a single-subscriber-per-type event distribution system. Every
// consumer in this module (the composition root's renderer, the retry
// boundary's tests) registers once per Bus instance and multiplexes many
// event types onto one channel; subscribing to a type simply replaces
// whatever channel previously held it rather than fanning out to a slice of
// subscribers the way a general-purpose pub/sub would.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]chan Event
	buffer      int
	closed      bool
}

// NewBus creates a Bus whose subscriber channels are each buffered to
// bufferSize events.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		subscribers: make(map[EventType]chan Event),
		buffer:      bufferSize,
	}
}

// Subscribe returns one channel carrying every event among types.
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.subscribers[t] = ch
	}
	return ch
}

// Publish delivers event to whichever channel is registered for its type,
// if any. A full channel drops the event rather than blocking the
// publisher: progress rendering and trajectory capture are best-effort and
// must never stall a research run.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	ch, ok := b.subscribers[event.Type]
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
	}
}

// Close shuts down every subscriber channel. Safe to call once; later
// calls are a no-op rather than a double-close panic.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	seen := make(map[chan Event]bool)
	for _, ch := range b.subscribers {
		if !seen[ch] {
			close(ch)
			seen[ch] = true
		}
	}
	b.subscribers = make(map[EventType]chan Event)
}
