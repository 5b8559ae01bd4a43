package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestSubscribeFiltersTopics(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var payments, all []string
	bus.Subscribe(ObserverFunc(func(_ context.Context, e Event) {
		payments = append(payments, e.Topic())
	}), TopicPaymentCollected)
	bus.Subscribe(ObserverFunc(func(_ context.Context, e Event) {
		all = append(all, e.Topic())
	}))

	ctx := context.Background()
	bus.Publish(ctx, ItemAdded{ItemID: uuid.New()})
	bus.Publish(ctx, PaymentCollected{PaymentID: uuid.New()})
	bus.Publish(ctx, VisitClosed{VisitID: uuid.New()})

	if len(payments) != 1 || payments[0] != TopicPaymentCollected {
		t.Errorf("filtered observer saw %v", payments)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered observer saw %d events, want 3", len(all))
	}
}

func TestPanickingObserverIsIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.Subscribe(ObserverFunc(func(context.Context, Event) {
		panic("observer bug")
	}))
	delivered := false
	bus.Subscribe(ObserverFunc(func(context.Context, Event) {
		delivered = true
	}))

	bus.Publish(context.Background(), LedgerUpdated{EpisodeID: uuid.New()})

	if !delivered {
		t.Error("panic in one observer suppressed delivery to the next")
	}
}
