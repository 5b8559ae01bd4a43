package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Observer receives published events. Implementations must tolerate being
// called concurrently from multiple request goroutines.
type Observer interface {
	Notify(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event Event)

// Notify calls f.
func (f ObserverFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

type subscription struct {
	observer Observer
	topics   map[string]bool // nil means all topics
}

// Bus delivers events to registered observers. Delivery is fire-and-forget:
// an observer that returns, errors, or panics never affects the mutation that
// triggered the event.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
	log  zerolog.Logger
}

// NewBus creates an event bus that logs observer failures to logger.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{log: logger}
}

// Subscribe registers an observer for the given topics. With no topics the
// observer receives every event.
func (b *Bus) Subscribe(obs Observer, topics ...string) {
	sub := subscription{observer: obs}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers the event to every matching observer, isolating each one.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.topics != nil && !sub.topics[event.Topic()] {
			continue
		}
		b.deliver(ctx, sub.observer, event)
	}
}

func (b *Bus) deliver(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("topic", event.Topic()).
				Interface("panic", r).
				Msg("event observer panicked")
		}
	}()
	obs.Notify(ctx, event)
}
