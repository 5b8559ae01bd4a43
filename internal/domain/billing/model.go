package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/money"
)

// Department identifies which unit raised a charge. Departments bill the
// same episode independently and concurrently.
type Department string

const (
	DeptOPD       Department = "opd"
	DeptIPD       Department = "ipd"
	DeptLab       Department = "lab"
	DeptPharmacy  Department = "pharmacy"
	DeptOT        Department = "ot"
	DeptRadiology Department = "radiology"
	DeptPathology Department = "pathology"
)

var validDepartments = map[Department]bool{
	DeptOPD: true, DeptIPD: true, DeptLab: true, DeptPharmacy: true,
	DeptOT: true, DeptRadiology: true, DeptPathology: true,
}

// ItemType is the closed set of chargeable categories.
type ItemType string

const (
	ItemConsultation ItemType = "consultation"
	ItemLab          ItemType = "lab"
	ItemMedicine     ItemType = "medicine"
	ItemService      ItemType = "service"
	ItemBed          ItemType = "bed"
	ItemOT           ItemType = "ot"
)

var validItemTypes = map[ItemType]bool{
	ItemConsultation: true, ItemLab: true, ItemMedicine: true,
	ItemService: true, ItemBed: true, ItemOT: true,
}

// Bucket is the revenue grouping reported on ledger reads.
type Bucket string

const (
	BucketConsultation  Bucket = "consultation"
	BucketDiagnostics   Bucket = "diagnostics"
	BucketPharmacy      Bucket = "pharmacy"
	BucketServices      Bucket = "services"
	BucketAccommodation Bucket = "accommodation"
	BucketProcedures    Bucket = "procedures"
)

// BucketFor maps every item type to its revenue bucket. The switch is
// exhaustive over the closed ItemType set; inputs are validated before they
// are ever stored, so the zero return is unreachable for persisted items.
func BucketFor(t ItemType) Bucket {
	switch t {
	case ItemConsultation:
		return BucketConsultation
	case ItemLab:
		return BucketDiagnostics
	case ItemMedicine:
		return BucketPharmacy
	case ItemService:
		return BucketServices
	case ItemBed:
		return BucketAccommodation
	case ItemOT:
		return BucketProcedures
	}
	return ""
}

// ItemStatus is rewritten only by the aggregator's refresh step, never by
// callers.
type ItemStatus string

const (
	ItemUnpaid    ItemStatus = "unpaid"
	ItemPaid      ItemStatus = "paid"
	ItemCancelled ItemStatus = "cancelled"
)

// PaymentMode is how money was received.
type PaymentMode string

const (
	ModeCash      PaymentMode = "cash"
	ModeUPI       PaymentMode = "upi"
	ModeCard      PaymentMode = "card"
	ModeCheque    PaymentMode = "cheque"
	ModeInsurance PaymentMode = "insurance"
)

var validModes = map[PaymentMode]bool{
	ModeCash: true, ModeUPI: true, ModeCard: true, ModeCheque: true, ModeInsurance: true,
}

// PaymentStatus marks whether a payment counts toward the paid total. Only
// success payments do; a pending/failed row is kept but excluded.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
	PaymentPending PaymentStatus = "pending"
)

// LedgerStatus is the derived financial state of an episode.
type LedgerStatus string

const (
	LedgerUnpaid  LedgerStatus = "unpaid"
	LedgerPartial LedgerStatus = "partial"
	LedgerPaid    LedgerStatus = "paid"
)

// Business errors surfaced to calling collaborators.
var (
	ErrNotFound   = errors.New("billing record not found")
	ErrValidation = errors.New("validation failed")
)

// Item maps to the billing_item table. Append-only: once written, only the
// status field ever changes (refresh or cancellation), and cancelled rows
// stay readable for audit.
type Item struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	PatientID   uuid.UUID    `db:"patient_id" json:"patient_id"`
	EpisodeKind episode.Kind `db:"episode_kind" json:"episode_kind"`
	EpisodeID   uuid.UUID    `db:"episode_id" json:"episode_id"`
	Department  Department   `db:"department" json:"department"`
	ItemType    ItemType     `db:"item_type" json:"item_type"`
	Description string       `db:"description" json:"description"`
	Quantity    int          `db:"quantity" json:"quantity"`
	UnitPrice   money.Amount `db:"unit_price" json:"unit_price"`
	Amount      money.Amount `db:"amount" json:"amount"`
	Status      ItemStatus   `db:"status" json:"status"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Payment maps to the payment table. Immutable; corrections are modeled as
// new adjustment records, never edits.
type Payment struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	PatientID      uuid.UUID     `db:"patient_id" json:"patient_id"`
	EpisodeKind    episode.Kind  `db:"episode_kind" json:"episode_kind"`
	EpisodeID      uuid.UUID     `db:"episode_id" json:"episode_id"`
	Amount         money.Amount  `db:"amount" json:"amount"`
	Mode           PaymentMode   `db:"mode" json:"mode"`
	Status         PaymentStatus `db:"payment_status" json:"payment_status"`
	TransactionRef *string       `db:"transaction_ref" json:"transaction_ref,omitempty"`
	ReceivedBy     string        `db:"received_by" json:"received_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Summary is the financial state derived from the two append logs. It is
// never persisted as a source of truth; every decision recomputes it.
type Summary struct {
	Total  money.Amount `json:"total"`
	Paid   money.Amount `json:"paid"`
	Due    money.Amount `json:"due"`
	Status LedgerStatus `json:"status"`
}

// Summarize recomputes the summary from scratch. Cancelled items and
// non-success payments contribute nothing.
func Summarize(items []*Item, payments []*Payment) Summary {
	var total, paid money.Amount
	for _, it := range items {
		if it.Status == ItemCancelled {
			continue
		}
		total += it.Amount
	}
	for _, p := range payments {
		if p.Status != PaymentSuccess {
			continue
		}
		paid += p.Amount
	}

	due := total - paid
	if due < 0 {
		due = 0
	}

	status := LedgerUnpaid
	switch {
	case due == 0 && total > 0:
		status = LedgerPaid
	case paid > 0 && due > 0:
		status = LedgerPartial
	}

	return Summary{Total: total, Paid: paid, Due: due, Status: status}
}

// Ledger is the full read-path view of one episode's billing history.
type Ledger struct {
	Items    []*Item                 `json:"items"`
	Payments []*Payment              `json:"payments"`
	Summary  Summary                 `json:"summary"`
	Buckets  map[Bucket]money.Amount `json:"buckets"`
}

// bucketTotals groups non-cancelled item amounts by revenue bucket.
func bucketTotals(items []*Item) map[Bucket]money.Amount {
	out := make(map[Bucket]money.Amount)
	for _, it := range items {
		if it.Status == ItemCancelled {
			continue
		}
		out[BucketFor(it.ItemType)] += it.Amount
	}
	return out
}
