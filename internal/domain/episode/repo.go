package episode

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, kind Kind, id uuid.UUID) (*Episode, error)
	UpdateStatus(ctx context.Context, kind Kind, id uuid.UUID, status string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Episode, int, error)
}
