package local

import (
	"context"
	"sync"
)

// Message is an in-process pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// Broker is the in-process pub/sub backend carrying arena events to SSE
// handlers when no redis is configured. Delivery is non-blocking: a slow
// subscriber with a full buffer misses messages rather than stalling the
// arena tick that published them.
type Broker struct {
	mu      sync.RWMutex
	nextID  int64
	subs    map[string]map[int64]chan *Message // channel -> subscriber id -> sink
	bufSize int
}

// NewBroker creates a Broker with the given per-subscriber buffer size.
func NewBroker(bufSize int) *Broker {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Broker{
		subs:    make(map[string]map[int64]chan *Message),
		bufSize: bufSize,
	}
}

// Publish fans a message out to every subscriber of the channel.
func (b *Broker) Publish(_ context.Context, channel, message string) error {
	msg := &Message{Channel: channel, Payload: message}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sink := range b.subs[channel] {
		select {
		case sink <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers one sink on every named channel. The returned cancel
// removes the registrations and closes the sink; it is safe to call once.
func (b *Broker) Subscribe(_ context.Context, channels ...string) (<-chan *Message, func(), error) {
	sink := make(chan *Message, b.bufSize)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, c := range channels {
		if b.subs[c] == nil {
			b.subs[c] = make(map[int64]chan *Message)
		}
		b.subs[c][id] = sink
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		for _, c := range channels {
			delete(b.subs[c], id)
		}
		b.mu.Unlock()
		close(sink)
	}
	return sink, cancel, nil
}
