package ipd

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hims/internal/domain/billing"
)

var (
	ErrNotFound       = errors.New("discharge summary not found")
	ErrForbidden      = errors.New("billing override requires admin or accountant role")
	ErrReasonRequired = errors.New("override reason is required")
)

// DischargeSummary is the clearance sheet for one IPD admission, one row per
// admission. Clearance flags accumulate over the stay; the override audit
// fields, once written, are never cleared even if a later payment would have
// settled the ledger anyway.
type DischargeSummary struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	AdmissionID       uuid.UUID  `db:"admission_id" json:"admission_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	PharmacyClearance bool       `db:"pharmacy_clearance" json:"pharmacy_clearance"`
	DoctorApproval    bool       `db:"doctor_approval" json:"doctor_approval"`
	BillingClearance  bool       `db:"billing_clearance" json:"billing_clearance"`
	BillingOverride   bool       `db:"billing_override" json:"billing_override"`
	OverrideReason    *string    `db:"override_reason" json:"override_reason,omitempty"`
	OverrideBy        *string    `db:"override_by" json:"override_by,omitempty"`
	OverrideAt        *time.Time `db:"override_at" json:"override_at,omitempty"`
	CanDischarge      bool       `db:"can_discharge" json:"can_discharge"`
	DischargeDate     *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ClearanceUpdate sets the flags it carries and leaves the rest untouched;
// pharmacy and nursing stations post their clearances independently.
type ClearanceUpdate struct {
	PharmacyClearance *bool `json:"pharmacy_clearance,omitempty"`
	DoctorApproval    *bool `json:"doctor_approval,omitempty"`
}

// OverrideRequest waives the billing clearance requirement. The reason is
// mandatory; it lands in the audit record verbatim.
type OverrideRequest struct {
	Reason string `json:"reason"`
}

// Evaluation is the outcome of one discharge gate pass: the stored clearance
// sheet plus the ledger summary it was judged against.
type Evaluation struct {
	Discharge    *DischargeSummary `json:"discharge"`
	CanDischarge bool              `json:"can_discharge"`
	Ledger       billing.Summary   `json:"ledger"`
}
