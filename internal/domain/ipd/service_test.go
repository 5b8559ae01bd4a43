package ipd

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hims/internal/domain/billing"
	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/auth"
	"github.com/medcore/hims/internal/platform/events"
	"github.com/medcore/hims/internal/platform/keymutex"
	"github.com/medcore/hims/internal/platform/money"
)

type memRepo struct {
	byAdmission map[uuid.UUID]*DischargeSummary
}

func newMemRepo() *memRepo {
	return &memRepo{byAdmission: make(map[uuid.UUID]*DischargeSummary)}
}

func (r *memRepo) GetByAdmission(_ context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	ds, ok := r.byAdmission[admissionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ds
	return &cp, nil
}

func (r *memRepo) Upsert(_ context.Context, ds *DischargeSummary) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	cp := *ds
	r.byAdmission[ds.AdmissionID] = &cp
	return nil
}

type mockEpisodes struct {
	episodes map[uuid.UUID]*episode.Episode
}

func (m *mockEpisodes) Validate(_ context.Context, kind episode.Kind, id uuid.UUID, patientID *uuid.UUID) (*episode.Episode, error) {
	e, ok := m.episodes[id]
	if !ok || e.Kind != kind {
		return nil, episode.ErrNotFound
	}
	if patientID != nil && *patientID != e.PatientID {
		return nil, episode.ErrPatientMismatch
	}
	return e, nil
}

func (m *mockEpisodes) SetStatus(_ context.Context, kind episode.Kind, id uuid.UUID, status string) (*episode.Episode, error) {
	e, ok := m.episodes[id]
	if !ok || e.Kind != kind {
		return nil, episode.ErrNotFound
	}
	e.Status = status
	return e, nil
}

type mockLedger struct {
	summary billing.Summary
}

func (m *mockLedger) Summary(context.Context, episode.Kind, uuid.UUID) (billing.Summary, error) {
	return m.summary, nil
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	ledger    *mockLedger
	bus       *events.Bus
	admission *episode.Episode
}

func newFixture(due money.Amount) *fixture {
	admission := &episode.Episode{
		ID:        uuid.New(),
		Kind:      episode.KindIPDAdmission,
		PatientID: uuid.New(),
		Status:    episode.StatusAdmitted,
	}
	repo := newMemRepo()
	eps := &mockEpisodes{episodes: map[uuid.UUID]*episode.Episode{admission.ID: admission}}
	status := billing.LedgerPaid
	if due > 0 {
		status = billing.LedgerPartial
	}
	ledger := &mockLedger{summary: billing.Summary{
		Total: 50000, Paid: 50000 - due, Due: due, Status: status,
	}}
	bus := events.NewBus(zerolog.Nop())
	svc := NewService(repo, eps, ledger, bus, keymutex.New(), zerolog.Nop())
	return &fixture{svc: svc, repo: repo, ledger: ledger, bus: bus, admission: admission}
}

func actorCtx(role string) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: "staff-" + role, Role: role})
}

func boolPtr(b bool) *bool { return &b }

// Discharge requires all three legs: pharmacy, doctor, and a settled ledger
// (or an override standing in for the ledger leg).
func TestDischargeRequiresAllClearances(t *testing.T) {
	cases := []struct {
		name     string
		pharmacy bool
		doctor   bool
		due      money.Amount
		want     bool
	}{
		{"nothing cleared", false, false, 30000, false},
		{"only pharmacy", true, false, 30000, false},
		{"only doctor", false, true, 30000, false},
		{"only billing", false, false, 0, false},
		{"pharmacy and doctor, dues open", true, true, 30000, false},
		{"pharmacy and billing", true, false, 0, false},
		{"doctor and billing", false, true, 0, false},
		{"all cleared", true, true, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(c.due)
			ctx := actorCtx(auth.RoleNurse)

			ev, err := f.svc.UpdateClearances(ctx, f.admission.ID, ClearanceUpdate{
				PharmacyClearance: boolPtr(c.pharmacy),
				DoctorApproval:    boolPtr(c.doctor),
			})
			if err != nil {
				t.Fatalf("UpdateClearances: %v", err)
			}
			if ev.CanDischarge != c.want {
				t.Errorf("CanDischarge = %v, want %v", ev.CanDischarge, c.want)
			}
			wantStatus := episode.StatusAdmitted
			if c.want {
				wantStatus = episode.StatusDischarged
			}
			if f.admission.Status != wantStatus {
				t.Errorf("episode status = %q, want %q", f.admission.Status, wantStatus)
			}
			if c.want && ev.Discharge.DischargeDate == nil {
				t.Error("discharge approved without a discharge date")
			}
			if !c.want && ev.Discharge.DischargeDate != nil {
				t.Error("discharge date set on a failing evaluation")
			}
		})
	}
}

func TestClearancesAccumulate(t *testing.T) {
	f := newFixture(0)
	ctx := actorCtx(auth.RolePharmacist)

	ev, err := f.svc.UpdateClearances(ctx, f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(true),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.CanDischarge {
		t.Fatal("discharged on pharmacy clearance alone")
	}

	// the second update carries only the doctor flag; pharmacy must survive
	ev, err = f.svc.UpdateClearances(actorCtx(auth.RoleDoctor), f.admission.ID, ClearanceUpdate{
		DoctorApproval: boolPtr(true),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Discharge.PharmacyClearance {
		t.Error("pharmacy clearance lost on partial update")
	}
	if !ev.CanDischarge {
		t.Error("all legs cleared but discharge denied")
	}
}

func TestOverrideForbiddenRole(t *testing.T) {
	f := newFixture(30000)

	for _, role := range []string{auth.RoleDoctor, auth.RoleNurse, auth.RoleReception, auth.RolePharmacist, ""} {
		_, err := f.svc.ApproveOverride(actorCtx(role), f.admission.ID, OverrideRequest{Reason: "insurance pending"})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("role %q: err = %v, want ErrForbidden", role, err)
		}
	}
	if len(f.repo.byAdmission) != 0 {
		t.Error("forbidden override left state behind")
	}
	if f.admission.Status != episode.StatusAdmitted {
		t.Errorf("episode status = %q", f.admission.Status)
	}
}

func TestOverrideRequiresReason(t *testing.T) {
	f := newFixture(30000)

	if _, err := f.svc.ApproveOverride(actorCtx(auth.RoleAccountant), f.admission.ID, OverrideRequest{}); !errors.Is(err, ErrReasonRequired) {
		t.Errorf("err = %v, want ErrReasonRequired", err)
	}
}

func TestOverrideWaivesBillingOnly(t *testing.T) {
	f := newFixture(30000)
	ctx := actorCtx(auth.RoleAccountant)

	// override with no clinical clearances must not discharge
	ev, err := f.svc.ApproveOverride(ctx, f.admission.ID, OverrideRequest{Reason: "insurance settlement pending"})
	if err != nil {
		t.Fatalf("ApproveOverride: %v", err)
	}
	if ev.CanDischarge {
		t.Fatal("override discharged without clinical clearances")
	}
	if !ev.Discharge.BillingOverride {
		t.Error("override flag not recorded")
	}
	if ev.Discharge.OverrideBy == nil || *ev.Discharge.OverrideBy != "staff-accountant" {
		t.Errorf("OverrideBy = %v", ev.Discharge.OverrideBy)
	}
	if ev.Discharge.OverrideReason == nil || ev.Discharge.OverrideAt == nil {
		t.Error("override audit fields incomplete")
	}

	// clinical clearances arrive; dues are still open but the override stands
	ev, err = f.svc.UpdateClearances(actorCtx(auth.RoleNurse), f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(true),
		DoctorApproval:    boolPtr(true),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ev.CanDischarge {
		t.Error("override did not satisfy the billing leg")
	}
	if f.admission.Status != episode.StatusDischarged {
		t.Errorf("episode status = %q, want discharged", f.admission.Status)
	}
}

func TestDischargeEventViaOverride(t *testing.T) {
	f := newFixture(30000)

	var got *events.DischargeApproved
	f.bus.Subscribe(events.ObserverFunc(func(_ context.Context, e events.Event) {
		if da, ok := e.(events.DischargeApproved); ok {
			got = &da
		}
	}), events.TopicDischargeApproved)

	if _, err := f.svc.UpdateClearances(actorCtx(auth.RoleNurse), f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(true),
		DoctorApproval:    boolPtr(true),
	}); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("event published before the gate passed")
	}

	admin := actorCtx(auth.RoleAdmin)
	if _, err := f.svc.ApproveOverride(admin, f.admission.ID, OverrideRequest{Reason: "write-off approved"}); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("no DischargeApproved event")
	}
	if !got.ViaOverride {
		t.Error("ViaOverride = false for an override discharge")
	}
	if got.AdmissionID != f.admission.ID {
		t.Errorf("AdmissionID = %s", got.AdmissionID)
	}
}

func TestDischargeEventCleanLedger(t *testing.T) {
	f := newFixture(0)

	var got *events.DischargeApproved
	f.bus.Subscribe(events.ObserverFunc(func(_ context.Context, e events.Event) {
		if da, ok := e.(events.DischargeApproved); ok {
			got = &da
		}
	}), events.TopicDischargeApproved)

	if _, err := f.svc.UpdateClearances(actorCtx(auth.RoleNurse), f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(true),
		DoctorApproval:    boolPtr(true),
	}); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("no DischargeApproved event")
	}
	if got.ViaOverride {
		t.Error("ViaOverride = true for a settled ledger")
	}
}

func TestOverrideAuditSurvivesSettlement(t *testing.T) {
	f := newFixture(30000)
	ctx := actorCtx(auth.RoleAdmin)

	if _, err := f.svc.ApproveOverride(ctx, f.admission.ID, OverrideRequest{Reason: "deposit waived"}); err != nil {
		t.Fatal(err)
	}

	// the patient pays after all; the audit trail must not vanish
	f.ledger.summary = billing.Summary{Total: 50000, Paid: 50000, Due: 0, Status: billing.LedgerPaid}
	ev, err := f.svc.Evaluate(ctx, f.admission.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Discharge.BillingOverride || ev.Discharge.OverrideReason == nil {
		t.Error("override audit cleared by a later settlement")
	}
	if !ev.Discharge.BillingClearance {
		t.Error("billing clearance not refreshed from the ledger")
	}
}

func TestUpdateClearancesOnDischarged(t *testing.T) {
	f := newFixture(0)
	ctx := actorCtx(auth.RoleNurse)

	if _, err := f.svc.UpdateClearances(ctx, f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(true),
		DoctorApproval:    boolPtr(true),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.UpdateClearances(ctx, f.admission.ID, ClearanceUpdate{
		PharmacyClearance: boolPtr(false),
	})
	if !errors.Is(err, episode.ErrEpisodeClosed) {
		t.Errorf("clearance edit on discharged admission: err = %v, want ErrEpisodeClosed", err)
	}

	_, err = f.svc.ApproveOverride(actorCtx(auth.RoleAdmin), f.admission.ID, OverrideRequest{Reason: "late"})
	if !errors.Is(err, episode.ErrEpisodeClosed) {
		t.Errorf("override on discharged admission: err = %v, want ErrEpisodeClosed", err)
	}
}

func TestEvaluateReadsWithoutMutatingFlags(t *testing.T) {
	f := newFixture(30000)
	ctx := actorCtx(auth.RoleDoctor)

	if _, err := f.svc.UpdateClearances(ctx, f.admission.ID, ClearanceUpdate{
		DoctorApproval: boolPtr(true),
	}); err != nil {
		t.Fatal(err)
	}

	ev, err := f.svc.Evaluate(ctx, f.admission.ID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.CanDischarge {
		t.Error("evaluation passed with open dues and no pharmacy clearance")
	}
	if !ev.Discharge.DoctorApproval || ev.Discharge.PharmacyClearance {
		t.Errorf("flags changed by evaluation: %+v", ev.Discharge)
	}
	if ev.Ledger.Due != 30000 {
		t.Errorf("Ledger.Due = %d", ev.Ledger.Due)
	}
}

func TestEvaluateUnknownAdmission(t *testing.T) {
	f := newFixture(0)
	if _, err := f.svc.Evaluate(context.Background(), uuid.New()); !errors.Is(err, episode.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
