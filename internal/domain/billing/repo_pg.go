package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const itemCols = `id, patient_id, episode_kind, episode_id, department, item_type,
	description, quantity, unit_price, amount, status, created_by, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.PatientID, &it.EpisodeKind, &it.EpisodeID, &it.Department,
		&it.ItemType, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount,
		&it.Status, &it.CreatedBy, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepoPG) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_item (id, patient_id, episode_kind, episode_id, department,
			item_type, description, quantity, unit_price, amount, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.PatientID, item.EpisodeKind, item.EpisodeID, item.Department,
		item.ItemType, item.Description, item.Quantity, item.UnitPrice, item.Amount,
		item.Status, item.CreatedBy)
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM billing_item WHERE id = $1`, id))
}

func (r *itemRepoPG) ListByEpisode(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM billing_item
		 WHERE episode_kind = $1 AND episode_id = $2 ORDER BY created_at, id`,
		kind, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *itemRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status ItemStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_item SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *itemRepoPG) SetEpisodeItemStatuses(ctx context.Context, kind episode.Kind, episodeID uuid.UUID, status ItemStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_item SET status = $3
		WHERE episode_kind = $1 AND episode_id = $2 AND status <> 'cancelled'`,
		kind, episodeID, status)
	return err
}

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const paymentCols = `id, patient_id, episode_kind, episode_id, amount, mode,
	payment_status, transaction_ref, received_by, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PatientID, &p.EpisodeKind, &p.EpisodeID, &p.Amount,
		&p.Mode, &p.Status, &p.TransactionRef, &p.ReceivedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, patient_id, episode_kind, episode_id, amount, mode,
			payment_status, transaction_ref, received_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.PatientID, p.EpisodeKind, p.EpisodeID, p.Amount, p.Mode,
		p.Status, p.TransactionRef, p.ReceivedBy)
	return err
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
}

func (r *paymentRepoPG) ListByEpisode(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payment
		 WHERE episode_kind = $1 AND episode_id = $2 ORDER BY created_at, id`,
		kind, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
