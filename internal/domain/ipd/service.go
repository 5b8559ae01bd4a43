// Package ipd implements the inpatient discharge gate. Discharge requires
// pharmacy clearance, doctor approval, and a settled ledger; the ledger leg
// alone may be waived by an audited override from a privileged role.
package ipd

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hims/internal/domain/billing"
	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/auth"
	"github.com/medcore/hims/internal/platform/events"
	"github.com/medcore/hims/internal/platform/keymutex"
)

// LedgerReader recomputes the admission's financial summary. Satisfied by
// *billing.Service; must not acquire the episode lock, the gate holds it.
type LedgerReader interface {
	Summary(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (billing.Summary, error)
}

// EpisodeStore is the slice of *episode.Service the gate needs.
type EpisodeStore interface {
	Validate(ctx context.Context, kind episode.Kind, id uuid.UUID, patientID *uuid.UUID) (*episode.Episode, error)
	SetStatus(ctx context.Context, kind episode.Kind, id uuid.UUID, status string) (*episode.Episode, error)
}

type Service struct {
	repo     Repository
	episodes EpisodeStore
	ledger   LedgerReader
	bus      *events.Bus
	locks    *keymutex.KeyMutex
	log      zerolog.Logger
}

func NewService(repo Repository, episodes EpisodeStore, ledger LedgerReader,
	bus *events.Bus, locks *keymutex.KeyMutex, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		episodes: episodes,
		ledger:   ledger,
		bus:      bus,
		locks:    locks,
		log:      log.With().Str("component", "ipd").Logger(),
	}
}

// UpdateClearances records pharmacy or doctor sign-off and re-runs the gate.
// Flags not carried by the update keep their stored value.
func (s *Service) UpdateClearances(ctx context.Context, admissionID uuid.UUID, upd ClearanceUpdate) (*Evaluation, error) {
	unlock := s.locks.Lock(billing.LockKey(episode.KindIPDAdmission, admissionID))
	defer unlock()

	e, err := s.episodes.Validate(ctx, episode.KindIPDAdmission, admissionID, nil)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, episode.ErrEpisodeClosed
	}

	ds, err := s.loadOrInit(ctx, e)
	if err != nil {
		return nil, err
	}
	if upd.PharmacyClearance != nil {
		ds.PharmacyClearance = *upd.PharmacyClearance
	}
	if upd.DoctorApproval != nil {
		ds.DoctorApproval = *upd.DoctorApproval
	}
	return s.evaluate(ctx, e, ds)
}

// ApproveOverride waives the billing requirement. The role check runs before
// any state is touched; a forbidden caller leaves the clearance sheet as it
// was.
func (s *Service) ApproveOverride(ctx context.Context, admissionID uuid.UUID, req OverrideRequest) (*Evaluation, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role != auth.RoleAdmin && actor.Role != auth.RoleAccountant {
		return nil, ErrForbidden
	}
	if req.Reason == "" {
		return nil, ErrReasonRequired
	}

	unlock := s.locks.Lock(billing.LockKey(episode.KindIPDAdmission, admissionID))
	defer unlock()

	e, err := s.episodes.Validate(ctx, episode.KindIPDAdmission, admissionID, nil)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, episode.ErrEpisodeClosed
	}

	ds, err := s.loadOrInit(ctx, e)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ds.BillingOverride = true
	ds.OverrideReason = &req.Reason
	ds.OverrideBy = &actor.ID
	ds.OverrideAt = &now

	s.log.Warn().
		Str("admission_id", admissionID.String()).
		Str("override_by", actor.ID).
		Str("role", actor.Role).
		Str("reason", req.Reason).
		Msg("billing override approved")

	return s.evaluate(ctx, e, ds)
}

// Evaluate re-runs the discharge gate against the current ledger without
// changing any clearance flag.
func (s *Service) Evaluate(ctx context.Context, admissionID uuid.UUID) (*Evaluation, error) {
	unlock := s.locks.Lock(billing.LockKey(episode.KindIPDAdmission, admissionID))
	defer unlock()

	e, err := s.episodes.Validate(ctx, episode.KindIPDAdmission, admissionID, nil)
	if err != nil {
		return nil, err
	}
	ds, err := s.loadOrInit(ctx, e)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, e, ds)
}

func (s *Service) loadOrInit(ctx context.Context, e *episode.Episode) (*DischargeSummary, error) {
	ds, err := s.repo.GetByAdmission(ctx, e.ID)
	if errors.Is(err, ErrNotFound) {
		return &DischargeSummary{AdmissionID: e.ID, PatientID: e.PatientID}, nil
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// evaluate judges the three clearance legs against a freshly recomputed
// ledger, persists the sheet, and on the first pass flips the admission to
// discharged. A failing evaluation still persists and returns normally;
// only the can_discharge verdict says no. Caller must hold the episode lock.
func (s *Service) evaluate(ctx context.Context, e *episode.Episode, ds *DischargeSummary) (*Evaluation, error) {
	summary, err := s.ledger.Summary(ctx, episode.KindIPDAdmission, e.ID)
	if err != nil {
		return nil, err
	}
	ds.BillingClearance = summary.Due == 0
	ds.CanDischarge = ds.PharmacyClearance && ds.DoctorApproval &&
		(ds.BillingClearance || ds.BillingOverride)

	firstPass := ds.CanDischarge && !e.Closed()
	if firstPass {
		now := time.Now().UTC()
		ds.DischargeDate = &now
	}

	if err := s.repo.Upsert(ctx, ds); err != nil {
		return nil, err
	}

	if firstPass {
		if _, err := s.episodes.SetStatus(ctx, episode.KindIPDAdmission, e.ID, episode.StatusDischarged); err != nil {
			return nil, err
		}

		actor := auth.ActorFromContext(ctx)
		s.bus.Publish(ctx, events.DischargeApproved{
			AdmissionID: e.ID,
			PatientID:   e.PatientID,
			ViaOverride: !ds.BillingClearance && ds.BillingOverride,
			ApprovedBy:  actor.ID,
			Summary: events.LedgerSnapshot{
				Total: summary.Total, Paid: summary.Paid, Due: summary.Due,
				Status: string(summary.Status),
			},
			OccurredAt: time.Now().UTC(),
		})

		s.log.Info().
			Str("admission_id", e.ID.String()).
			Bool("via_override", !ds.BillingClearance && ds.BillingOverride).
			Msg("discharge approved")
	}

	return &Evaluation{Discharge: ds, CanDischarge: ds.CanDischarge, Ledger: summary}, nil
}
