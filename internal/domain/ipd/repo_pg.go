package ipd

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const dischargeCols = `id, admission_id, patient_id, pharmacy_clearance, doctor_approval,
	billing_clearance, billing_override, override_reason, override_by, override_at,
	can_discharge, discharge_date, created_at, updated_at`

func scanDischarge(row pgx.Row) (*DischargeSummary, error) {
	var ds DischargeSummary
	err := row.Scan(&ds.ID, &ds.AdmissionID, &ds.PatientID, &ds.PharmacyClearance,
		&ds.DoctorApproval, &ds.BillingClearance, &ds.BillingOverride, &ds.OverrideReason,
		&ds.OverrideBy, &ds.OverrideAt, &ds.CanDischarge, &ds.DischargeDate,
		&ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *repoPG) GetByAdmission(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	return scanDischarge(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dischargeCols+` FROM discharge_summary WHERE admission_id = $1`, admissionID))
}

// Upsert inserts or rewrites the admission's clearance sheet in one
// statement; the UNIQUE constraint on admission_id does the keying.
func (r *repoPG) Upsert(ctx context.Context, ds *DischargeSummary) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge_summary (id, admission_id, patient_id, pharmacy_clearance,
			doctor_approval, billing_clearance, billing_override, override_reason,
			override_by, override_at, can_discharge, discharge_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (admission_id) DO UPDATE SET
			pharmacy_clearance = EXCLUDED.pharmacy_clearance,
			doctor_approval    = EXCLUDED.doctor_approval,
			billing_clearance  = EXCLUDED.billing_clearance,
			billing_override   = EXCLUDED.billing_override,
			override_reason    = EXCLUDED.override_reason,
			override_by        = EXCLUDED.override_by,
			override_at        = EXCLUDED.override_at,
			can_discharge      = EXCLUDED.can_discharge,
			discharge_date     = EXCLUDED.discharge_date,
			updated_at         = NOW()`,
		ds.ID, ds.AdmissionID, ds.PatientID, ds.PharmacyClearance, ds.DoctorApproval,
		ds.BillingClearance, ds.BillingOverride, ds.OverrideReason, ds.OverrideBy,
		ds.OverrideAt, ds.CanDischarge, ds.DischargeDate)
	return err
}
