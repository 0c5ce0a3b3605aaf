package inmemcache

import (
	"context"
	"sync"

	"github.com/vericlock/vericlock/core"
)

const defaultBuffer = 32

// Bus fans events out to the subscribers of this process.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan core.Event]struct{}
	buffer int
}

var _ core.EventBus = (*Bus)(nil) // interface compliance check

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[chan core.Event]struct{}),
		buffer: defaultBuffer,
	}
}

// Publish never blocks: subscribers whose buffer is full miss the event.
func (b *Bus) Publish(_ context.Context, evt core.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan core.Event, error) {
	ch := make(chan core.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
