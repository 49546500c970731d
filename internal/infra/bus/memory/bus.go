package memory

import (
	"context"
	"sync"

	"parley/internal/infra/bus"
)

// Bus is a single-process channel bus: published events are delivered
// synchronously, in publish order, to every attached handler. There is no
// backlog; handlers attached after a publish never see it.
type Bus struct {
	mu       sync.RWMutex
	handlers []bus.Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Attach registers a local delivery sink, typically the realtime hub.
func (b *Bus) Attach(h bus.Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, channel, event string, payload any) error {
	ev, err := bus.Envelope(channel, event, payload)
	if err != nil {
		return err
	}
	b.mu.RLock()
	handlers := append([]bus.Handler(nil), b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h.Deliver(ev)
	}
	return nil
}
