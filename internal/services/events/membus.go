package events

import (
	"context"
	"sync"

	perr "chime/internal/platform/errors"
	"chime/internal/platform/store"
)

// MemBus is an in-process store.Bus for tests and single-binary runs.
// Delivery is per-subscriber fan-out; a slow subscriber drops messages
// rather than blocking publishers
type MemBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

var _ store.Bus = (*MemBus)(nil)

// NewMemBus builds an empty in-process bus
func NewMemBus() *MemBus {
	return &MemBus{subs: make(map[string][]chan []byte)}
}

// Publish fans payload out to every subscriber of topic
func (b *MemBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return perr.Busf("bus closed")
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads for topic. The channel closes
// when ctx is canceled or the bus is closed
func (b *MemBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, perr.Busf("bus closed")
	}
	ch := make(chan []byte, 64)
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.drop(topic, ch)
	}()
	return ch, nil
}

func (b *MemBus) drop(topic string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, c := range subs {
		if c == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(c)
			return
		}
	}
}

// Close shuts the bus and every subscriber channel
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
