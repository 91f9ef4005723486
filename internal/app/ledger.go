package app

import (
	"context"
	"errors"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/ecommercefs/storefront/api/internal/metrics"
	"github.com/rs/zerolog"
)

// LedgerRepository persists variant counters. GetVariantForUpdate must take a
// row lock held until the surrounding transaction ends.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetVariantForUpdate(ctx context.Context, variantID string) (domain.Variant, error)
	UpdateVariantCounts(ctx context.Context, variant domain.Variant) error
}

// InventoryLedger applies reserve/release/commit to one variant at a time under
// the store's row lock. Calls join the caller's transaction when there is one.
type InventoryLedger struct {
	repo   LedgerRepository
	logger zerolog.Logger
}

func NewInventoryLedger(repo LedgerRepository, logger zerolog.Logger) *InventoryLedger {
	return &InventoryLedger{repo: repo, logger: logger}
}

func (l *InventoryLedger) Reserve(ctx context.Context, variantID string, quantity int) error {
	_, err := l.apply(ctx, variantID, "reserve", func(v *domain.Variant) error {
		return v.Reserve(quantity)
	})
	return err
}

func (l *InventoryLedger) Release(ctx context.Context, variantID string, quantity int) error {
	_, err := l.apply(ctx, variantID, "release", func(v *domain.Variant) error {
		return v.Release(quantity)
	})
	return err
}

func (l *InventoryLedger) Commit(ctx context.Context, variantID string, quantity int) error {
	_, err := l.apply(ctx, variantID, "commit", func(v *domain.Variant) error {
		return v.Commit(quantity)
	})
	return err
}

// Restock adjusts durable stock, keeping it at or above the reserved count.
func (l *InventoryLedger) Restock(ctx context.Context, variantID string, delta int) (domain.Variant, error) {
	return l.apply(ctx, variantID, "restock", func(v *domain.Variant) error {
		return v.Restock(delta)
	})
}

func (l *InventoryLedger) apply(ctx context.Context, variantID, op string, mutate func(*domain.Variant) error) (domain.Variant, error) {
	var result domain.Variant
	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		variant, err := l.repo.GetVariantForUpdate(txCtx, variantID)
		if err != nil {
			return err
		}
		if err := mutate(&variant); err != nil {
			if errors.Is(err, domain.ErrInvariantViolation) {
				metrics.InvariantViolation()
				l.logger.Error().Err(err).
					Str("variant_id", variantID).
					Str("op", op).
					Int("stock", variant.Stock).
					Int("reserved", variant.Reserved).
					Msg("ledger invariant violation")
			}
			return err
		}
		if err := l.repo.UpdateVariantCounts(txCtx, variant); err != nil {
			return err
		}
		result = variant
		return nil
	})
	if err != nil {
		return domain.Variant{}, err
	}
	return result, nil
}
