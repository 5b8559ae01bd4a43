package episode

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the two clinical episode types billing is scoped to.
type Kind string

const (
	KindOPDVisit     Kind = "opd_visit"
	KindIPDAdmission Kind = "ipd_admission"
)

// ParseKind validates a wire-level kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOPDVisit, KindIPDAdmission:
		return Kind(s), nil
	}
	return "", ErrInvalidKind
}

// OPD visit lifecycle.
const (
	StatusWaiting        = "waiting"
	StatusInConsultation = "in_consultation"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

// IPD admission lifecycle.
const (
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
)

// Reference validation failures. Every mutating billing operation resolves
// its episode through Validate first and aborts on any of these.
var (
	ErrInvalidKind     = errors.New("unknown episode kind")
	ErrNotFound        = errors.New("episode not found")
	ErrPatientMismatch = errors.New("episode belongs to a different patient")
	ErrEpisodeClosed   = errors.New("episode is closed")
	ErrGatedStatus     = errors.New("status is set by its workflow gate")
)

// Episode maps to the episode table. Owned by the OPD/IPD front-desk flows;
// the billing engine reads identity and writes only the terminal transition.
type Episode struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Closed reports whether the episode has reached a terminal state. Closed
// episodes accept no new billing items or payments.
func (e *Episode) Closed() bool {
	switch e.Status {
	case StatusCompleted, StatusDischarged, StatusCancelled:
		return true
	}
	return false
}

// GateControlled reports whether a status is owned by a workflow gate.
// Completed is set by visit closure and discharged by the discharge
// evaluation; neither may be written through the status endpoint.
func GateControlled(status string) bool {
	switch status {
	case StatusCompleted, StatusDischarged:
		return true
	}
	return false
}

// initialStatus is the lifecycle entry point per kind.
func initialStatus(kind Kind) string {
	if kind == KindIPDAdmission {
		return StatusAdmitted
	}
	return StatusWaiting
}

// validTransitions lists the allowed lifecycle moves per kind. Cancellation
// is reachable from any non-terminal OPD state.
var validTransitions = map[Kind]map[string][]string{
	KindOPDVisit: {
		StatusWaiting:        {StatusInConsultation, StatusCompleted, StatusCancelled},
		StatusInConsultation: {StatusCompleted, StatusCancelled},
	},
	KindIPDAdmission: {
		StatusAdmitted: {StatusDischarged},
	},
}

func transitionAllowed(kind Kind, from, to string) bool {
	for _, next := range validTransitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}
