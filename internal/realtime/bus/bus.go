package bus

import (
	"context"

	"github.com/openfolk/contacts-backend/internal/realtime"
)

// Bus carries contact change events to out-of-process consumers (search
// indexing, photo garbage collection, sync adapters).
type Bus interface {
	Publish(ctx context.Context, event realtime.ChangeEvent) error
	StartForwarder(ctx context.Context, onEvent func(e realtime.ChangeEvent)) error
	Close() error
}
