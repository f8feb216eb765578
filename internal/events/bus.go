// Package events decouples state changes from the code that reacts to them.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/guessgame/internal/model"
)

// Handler reacts to a published event
type Handler func(ctx context.Context, event model.Event)

// Publisher is the side of the bus that services depend on
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Bus dispatches events synchronously to subscribers in subscription order.
// A panicking handler is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[model.EventType][]Handler
	logger   *slog.Logger
}

// NewBus creates an empty Bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[model.EventType][]Handler),
		logger:   logger.With(slog.String("component", "events")),
	}
}

var _ Publisher = (*Bus)(nil)

// Subscribe registers h for events of type t
func (b *Bus) Subscribe(t model.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers event to every handler subscribed to its type
func (b *Bus) Publish(ctx context.Context, event model.Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("event_type", string(event.Type)),
				slog.String("user_id", string(event.UserID)),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	h(ctx, event)
}
