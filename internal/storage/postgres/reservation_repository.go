package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository struct {
	db
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db{pool: pool}}
}

const reservationColumns = `id, order_id, variant_id, quantity, status, expires_at, created_at, updated_at`

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var r domain.Reservation
	var status string
	err := row.Scan(&r.ID, &r.OrderID, &r.VariantID, &r.Quantity, &status, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	r.Status = domain.ReservationStatus(status)
	return r, err
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (` + reservationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.OrderID,
		res.VariantID,
		res.Quantity,
		string(res.Status),
		res.ExpiresAt,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	res, err := scanReservation(r.queryRow(ctx, query, reservationID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) ListReservationsByOrderForUpdate(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE order_id = $1 ORDER BY id FOR UPDATE`
	return r.list(ctx, query, orderID)
}

func (r *ReservationRepository) ListReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE order_id = $1 ORDER BY id`
	return r.list(ctx, query, orderID)
}

func (r *ReservationRepository) list(ctx context.Context, query, orderID string) ([]domain.Reservation, error) {
	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations rows: %w", err)
	}
	return out, nil
}

// ListDueReservations pages through due holds in (expires_at, id) order
// starting after the cursor. Rows locked by an in-flight payment or another
// sweeper are skipped.
func (r *ReservationRepository) ListDueReservations(ctx context.Context, now time.Time, after domain.DueHold, limit int) ([]domain.DueHold, error) {
	const query = `
SELECT id, expires_at
FROM reservations
WHERE status = 'active' AND expires_at <= $1
  AND ($2::timestamptz IS NULL OR (expires_at, id) > ($2::timestamptz, $3::uuid))
ORDER BY expires_at, id
LIMIT $4
FOR UPDATE SKIP LOCKED`

	var afterAt *time.Time
	var afterID *string
	if !after.IsZero() {
		afterAt, afterID = &after.ExpiresAt, &after.ID
	}

	rows, err := r.query(ctx, query, now, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reservations: %w", err)
	}
	defer rows.Close()

	var due []domain.DueHold
	for rows.Next() {
		var h domain.DueHold
		if err := rows.Scan(&h.ID, &h.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan due reservation: %w", err)
		}
		due = append(due, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due reservations rows: %w", err)
	}
	return due, nil
}

func (r *ReservationRepository) UpdateReservationStatus(ctx context.Context, reservationID string, status domain.ReservationStatus, at time.Time) error {
	const stmt = `UPDATE reservations SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, reservationID, string(status), at)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}
