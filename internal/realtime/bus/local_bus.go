package bus

import (
	"context"
	"sync"

	"github.com/openfolk/contacts-backend/internal/platform/logger"
	"github.com/openfolk/contacts-backend/internal/realtime"
)

// localBus is the in-process fallback used when no redis is configured and
// in tests. Delivery is synchronous and best-effort.
type localBus struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers []func(e realtime.ChangeEvent)
	closed   bool
}

func NewLocalBus(log *logger.Logger) Bus {
	return &localBus{log: log.With("service", "LocalChangeBus")}
}

func (b *localBus) Publish(_ context.Context, event realtime.ChangeEvent) error {
	b.mu.RLock()
	handlers := append(([]func(e realtime.ChangeEvent))(nil), b.handlers...)
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil
	}
	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (b *localBus) StartForwarder(_ context.Context, onEvent func(e realtime.ChangeEvent)) error {
	if onEvent == nil {
		return nil
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
