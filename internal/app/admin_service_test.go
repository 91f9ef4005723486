package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestAdminService(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	setup := func() (*memStore, *AdminService, *ReservationManager) {
		store := newMemStore(testVariant(1, 5, "10.00"))
		ledger := NewInventoryLedger(store, zerolog.Nop())
		reservations := NewReservationManager(store, ledger, clock.NewFixed(now))
		return store, NewAdminService(store, ledger, reservations, clock.NewFixed(now), zerolog.Nop()), reservations
	}

	t.Run("creates variant", func(t *testing.T) {
		store, svc, _ := setup()

		v, err := svc.CreateVariant(ctx, CreateVariantInput{
			ProductName: " Moto G ",
			SKU:         "MOTO-G-128",
			Price:       decimal.RequireFromString("299999.999"),
			Stock:       4,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !validID(v.ID) || !validID(v.ProductID) {
			t.Fatalf("expected generated uuids, got %s/%s", v.ID, v.ProductID)
		}
		if v.ProductName != "Moto G" || !v.Active || v.Reserved != 0 {
			t.Fatalf("unexpected variant %+v", v)
		}
		if want := decimal.RequireFromString("300000.00"); !v.Price.Equal(want) {
			t.Fatalf("expected price rounded to %s, got %s", want, v.Price)
		}
		if got := store.variant(t, v.ID); got.Stock != 4 {
			t.Fatalf("expected stock 4, got %d", got.Stock)
		}
	})

	t.Run("create validation", func(t *testing.T) {
		_, svc, _ := setup()

		cases := []struct {
			name string
			in   CreateVariantInput
			want error
		}{
			{"missing name", CreateVariantInput{SKU: "A", Price: decimal.NewFromInt(1)}, domain.ErrProductNameRequired},
			{"missing sku", CreateVariantInput{ProductName: "A", Price: decimal.NewFromInt(1)}, domain.ErrSKURequired},
			{"zero price", CreateVariantInput{ProductName: "A", SKU: "A"}, domain.ErrInvalidPrice},
			{"negative stock", CreateVariantInput{ProductName: "A", SKU: "A", Price: decimal.NewFromInt(1), Stock: -1}, domain.ErrInvalidQuantity},
			{"duplicate sku", CreateVariantInput{ProductName: "A", SKU: "SKU-1", Price: decimal.NewFromInt(1)}, domain.ErrSKUAlreadyExists},
		}
		for _, tc := range cases {
			if _, err := svc.CreateVariant(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
	})

	t.Run("restock", func(t *testing.T) {
		_, svc, _ := setup()

		v, err := svc.Restock(ctx, testID(1), 3)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Stock != 8 {
			t.Fatalf("expected stock 8, got %d", v.Stock)
		}
		if _, err := svc.Restock(ctx, testID(1), 0); !errors.Is(err, domain.ErrInvalidStockAdjustment) {
			t.Fatalf("expected ErrInvalidStockAdjustment, got %v", err)
		}
		if _, err := svc.Restock(ctx, "bad", 1); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("release reservation by hand", func(t *testing.T) {
		store, svc, reservations := setup()
		store.seedOrder(testID(500))
		r, err := reservations.Create(ctx, testID(500), testID(1), 2)
		if err != nil {
			t.Fatalf("create reservation: %v", err)
		}

		got, err := svc.ReleaseReservation(ctx, r.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != domain.ReservationStatusReleased {
			t.Fatalf("expected released, got %s", got.Status)
		}
		if v := store.variant(t, testID(1)); v.Reserved != 0 {
			t.Fatalf("expected reserved 0, got %d", v.Reserved)
		}
		store.assertLedgerConsistent(t)
	})

	t.Run("lists refund queue", func(t *testing.T) {
		store, svc, _ := setup()
		store.orders[testID(600)] = domain.Order{ID: testID(600), Status: domain.OrderStatusPaymentFailed, RefundRequired: true}
		store.orders[testID(601)] = domain.Order{ID: testID(601), Status: domain.OrderStatusPaid}

		orders, err := svc.ListRefundRequired(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 1 || orders[0].ID != testID(600) {
			t.Fatalf("expected only %s, got %+v", testID(600), orders)
		}
	})
}
