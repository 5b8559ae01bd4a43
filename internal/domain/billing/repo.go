package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/medcore/hims/internal/domain/episode"
)

// ItemRepository persists billing items. Implementations must treat rows as
// append-only exception for the status column.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	ListByEpisode(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) ([]*Item, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ItemStatus) error
	// SetEpisodeItemStatuses flips every non-cancelled item of the episode
	// between unpaid and paid in one statement.
	SetEpisodeItemStatuses(ctx context.Context, kind episode.Kind, episodeID uuid.UUID, status ItemStatus) error
}

// PaymentRepository persists payments. Rows are immutable once written.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByEpisode(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) ([]*Payment, error)
}
