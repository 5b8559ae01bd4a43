package ipd

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists discharge summaries, keyed by admission.
type Repository interface {
	GetByAdmission(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error)
	Upsert(ctx context.Context, ds *DischargeSummary) error
}
