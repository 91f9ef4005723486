package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/ecommercefs/storefront/api/internal/testutil"
	"github.com/google/uuid"
)

func TestReservationRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	repo := NewReservationRepository(pool)

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	insert := func(t *testing.T, ctx context.Context, orderID, variantID string, status domain.ReservationStatus, expiresAt time.Time) domain.Reservation {
		t.Helper()
		r := domain.Reservation{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			VariantID: variantID,
			Quantity:  1,
			Status:    status,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateReservation(ctx, r); err != nil {
			t.Fatalf("create reservation: %v", err)
		}
		return r
	}

	t.Run("create, lock and update status", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		v := testutil.InsertVariant(t, ctx, pool, "Moto G", "300.00", 5)
		orderID := testutil.InsertPendingOrder(t, ctx, pool)

		created := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(15*time.Minute))

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			got, err := repo.GetReservationForUpdate(txCtx, created.ID)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.Status != domain.ReservationStatusActive || !got.ExpiresAt.Equal(created.ExpiresAt) {
				t.Fatalf("unexpected reservation: %+v", got)
			}
			return repo.UpdateReservationStatus(txCtx, created.ID, domain.ReservationStatusConsumed, now)
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		list, err := repo.ListReservationsByOrder(ctx, orderID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 || list[0].Status != domain.ReservationStatusConsumed {
			t.Fatalf("expected one consumed reservation, got %+v", list)
		}

		if _, err := repo.GetReservationForUpdate(ctx, uuid.NewString()); err != domain.ErrReservationNotFound {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})

	t.Run("ListDueReservations returns active holds at or past deadline", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		v := testutil.InsertVariant(t, ctx, pool, "Moto G", "300.00", 10)
		orderID := testutil.InsertPendingOrder(t, ctx, pool)

		due := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now)
		insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(time.Second))
		insert(t, ctx, orderID, v.ID, domain.ReservationStatusReleased, now.Add(-time.Hour))

		got, err := repo.ListDueReservations(ctx, now, domain.DueHold{}, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].ID != due.ID {
			t.Fatalf("expected only %s, got %v", due.ID, got)
		}
	})

	t.Run("ListDueReservations skips rows locked elsewhere", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		v := testutil.InsertVariant(t, ctx, pool, "Moto G", "300.00", 10)
		orderID := testutil.InsertPendingOrder(t, ctx, pool)
		locked := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(-time.Minute))
		free := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(-time.Minute))

		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if _, err := tx.Exec(ctx, `SELECT id FROM reservations WHERE id = $1 FOR UPDATE`, locked.ID); err != nil {
			t.Fatalf("lock row: %v", err)
		}

		got, err := repo.ListDueReservations(ctx, now, domain.DueHold{}, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].ID != free.ID {
			t.Fatalf("expected only %s, got %v", free.ID, got)
		}
	})

	t.Run("ListDueReservations resumes after the cursor", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		v := testutil.InsertVariant(t, ctx, pool, "Moto G", "300.00", 10)
		orderID := testutil.InsertPendingOrder(t, ctx, pool)
		oldest := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(-2*time.Minute))
		newer := insert(t, ctx, orderID, v.ID, domain.ReservationStatusActive, now.Add(-time.Minute))

		first, err := repo.ListDueReservations(ctx, now, domain.DueHold{}, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(first) != 1 || first[0].ID != oldest.ID {
			t.Fatalf("expected first page %s, got %v", oldest.ID, first)
		}

		second, err := repo.ListDueReservations(ctx, now, first[0], 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(second) != 1 || second[0].ID != newer.ID {
			t.Fatalf("expected second page %s, got %v", newer.ID, second)
		}
	})
}
