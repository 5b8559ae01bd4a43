// Package events carries domain events from the billing ledger and the
// workflow gates to out-of-process observers (dashboards, notifications).
// Each event name has a dedicated payload struct so observers consume a
// compile-checked shape rather than an untyped bag of fields.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hims/internal/platform/money"
)

// Canonical event names.
const (
	TopicItemAdded         = "billing.item.added"
	TopicPaymentCollected  = "payment.collected"
	TopicLedgerUpdated     = "billing.ledger.updated"
	TopicVisitClosed       = "opd.visit.closed"
	TopicDischargeApproved = "discharge.approved"
)

// Event is a published domain event.
type Event interface {
	Topic() string
}

// LedgerSnapshot is the derived financial state attached to ledger events.
type LedgerSnapshot struct {
	Total  money.Amount `json:"total"`
	Paid   money.Amount `json:"paid"`
	Due    money.Amount `json:"due"`
	Status string       `json:"status"`
}

// ItemAdded fires after a billable item is appended to an episode's ledger.
type ItemAdded struct {
	ItemID      uuid.UUID    `json:"item_id"`
	EpisodeKind string       `json:"episode_kind"`
	EpisodeID   uuid.UUID    `json:"episode_id"`
	PatientID   uuid.UUID    `json:"patient_id"`
	Department  string       `json:"department"`
	ItemType    string       `json:"item_type"`
	Amount      money.Amount `json:"amount"`
	CreatedBy   string       `json:"created_by"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

func (ItemAdded) Topic() string { return TopicItemAdded }

// PaymentCollected fires after a payment is appended, carrying the refreshed
// summary so observers never see a payment without its consequence.
type PaymentCollected struct {
	PaymentID   uuid.UUID      `json:"payment_id"`
	EpisodeKind string         `json:"episode_kind"`
	EpisodeID   uuid.UUID      `json:"episode_id"`
	PatientID   uuid.UUID      `json:"patient_id"`
	Amount      money.Amount   `json:"amount"`
	Mode        string         `json:"mode"`
	ReceivedBy  string         `json:"received_by"`
	Summary     LedgerSnapshot `json:"summary"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func (PaymentCollected) Topic() string { return TopicPaymentCollected }

// LedgerUpdated fires when a status refresh changes item statuses or the
// derived summary.
type LedgerUpdated struct {
	EpisodeKind string         `json:"episode_kind"`
	EpisodeID   uuid.UUID      `json:"episode_id"`
	Summary     LedgerSnapshot `json:"summary"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func (LedgerUpdated) Topic() string { return TopicLedgerUpdated }

// VisitClosed fires when an OPD visit passes the closure gate.
type VisitClosed struct {
	VisitID    uuid.UUID `json:"visit_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ClosedBy   string    `json:"closed_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (VisitClosed) Topic() string { return TopicVisitClosed }

// DischargeApproved fires when an IPD admission passes the discharge gate.
// ViaOverride records whether the billing requirement was satisfied by a
// manual override rather than a cleared ledger; compliance audits query it.
type DischargeApproved struct {
	AdmissionID uuid.UUID      `json:"admission_id"`
	PatientID   uuid.UUID      `json:"patient_id"`
	ViaOverride bool           `json:"via_override"`
	ApprovedBy  string         `json:"approved_by"`
	Summary     LedgerSnapshot `json:"summary"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func (DischargeApproved) Topic() string { return TopicDischargeApproved }
