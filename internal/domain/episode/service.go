package episode

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register opens a new episode of the given kind in its initial lifecycle
// state.
func (s *Service) Register(ctx context.Context, kind Kind, patientID uuid.UUID) (*Episode, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	e := &Episode{
		Kind:      kind,
		PatientID: patientID,
		Status:    initialStatus(kind),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns the episode regardless of lifecycle state.
func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Episode, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, kind, id)
}

// Validate resolves the referenced episode and, when patientID is supplied,
// confirms it belongs to that patient. A billing mutation raised under the
// wrong patient context must not silently attach to someone else's ledger.
func (s *Service) Validate(ctx context.Context, kind Kind, id uuid.UUID, patientID *uuid.UUID) (*Episode, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	e, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if patientID != nil && *patientID != e.PatientID {
		return nil, ErrPatientMismatch
	}
	return e, nil
}

// ValidateOpen is Validate plus a closed-episode check; new items and
// payments may not target a completed or discharged episode.
func (s *Service) ValidateOpen(ctx context.Context, kind Kind, id uuid.UUID, patientID *uuid.UUID) (*Episode, error) {
	e, err := s.Validate(ctx, kind, id, patientID)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, ErrEpisodeClosed
	}
	return e, nil
}

// SetStatus moves the episode through its lifecycle. Terminal states reject
// any further transition.
func (s *Service) SetStatus(ctx context.Context, kind Kind, id uuid.UUID, newStatus string) (*Episode, error) {
	e, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, ErrEpisodeClosed
	}
	if !transitionAllowed(kind, e.Status, newStatus) {
		return nil, fmt.Errorf("invalid %s transition: %s -> %s", kind, e.Status, newStatus)
	}
	if err := s.repo.UpdateStatus(ctx, kind, id, newStatus); err != nil {
		return nil, err
	}
	e.Status = newStatus
	return e, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
