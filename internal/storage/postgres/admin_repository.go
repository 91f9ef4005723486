package postgres

import (
	"context"
	"fmt"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db{pool: pool}}
}

// CreateVariant inserts the product and its variant together.
func (r *AdminRepository) CreateVariant(ctx context.Context, v domain.Variant) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := r.exec(txCtx, `INSERT INTO products (id, name, created_at) VALUES ($1, $2, $3)`,
			v.ProductID, v.ProductName, v.UpdatedAt); err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create product: %w", err)
		}

		const stmt = `
INSERT INTO variants (id, product_id, sku, price, stock, reserved, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7)`
		if _, err := r.exec(txCtx, stmt, v.ID, v.ProductID, v.SKU, v.Price, v.Stock, v.Active, v.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrSKUAlreadyExists
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create variant: %w", err)
		}
		return nil
	})
}

func (r *AdminRepository) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	const query = `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
ORDER BY p.name ASC, v.sku ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate variants: %w", rows.Err())
	}
	return variants, nil
}

// ListRefundRequired returns orders charged after their holds were gone, oldest first.
func (r *AdminRepository) ListRefundRequired(ctx context.Context) ([]domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE refund_required ORDER BY updated_at ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list refund required: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	return orders, nil
}
