package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VariantRepository backs the inventory ledger and the catalog reads pricing needs.
type VariantRepository struct {
	db
}

func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{db: db{pool: pool}}
}

const variantColumns = `v.id, v.product_id, p.name, v.sku, v.price, v.stock, v.reserved, v.active, v.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(row rowScanner) (domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.SKU, &v.Price, &v.Stock, &v.Reserved, &v.Active, &v.UpdatedAt)
	return v, err
}

func (r *VariantRepository) GetVariantForUpdate(ctx context.Context, variantID string) (domain.Variant, error) {
	const query = `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
FOR UPDATE OF v`
	return r.getVariant(ctx, query, variantID)
}

func (r *VariantRepository) GetVariant(ctx context.Context, variantID string) (domain.Variant, error) {
	const query = `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1`
	return r.getVariant(ctx, query, variantID)
}

func (r *VariantRepository) getVariant(ctx context.Context, query, variantID string) (domain.Variant, error) {
	v, err := scanVariant(r.queryRow(ctx, query, variantID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Variant{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// UpdateVariantCounts writes stock and reserved. Callers hold the row lock.
func (r *VariantRepository) UpdateVariantCounts(ctx context.Context, v domain.Variant) error {
	const stmt = `UPDATE variants SET stock = $2, reserved = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, v.ID, v.Stock, v.Reserved)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: variant %s stock=%d reserved=%d", domain.ErrInvariantViolation, v.ID, v.Stock, v.Reserved)
		}
		return fmt.Errorf("update variant counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVariantNotFound
	}
	return nil
}

func (r *VariantRepository) ListPromotionsForProduct(ctx context.Context, productID string) ([]domain.Promotion, error) {
	const query = `
SELECT pr.id, pr.name, pr.type, pr.value, pr.starts_at, pr.ends_at, pr.active
FROM promotions pr
JOIN promotion_products pp ON pp.promotion_id = pr.id
WHERE pp.product_id = $1 AND pr.active
ORDER BY pr.created_at ASC, pr.id ASC`

	rows, err := r.query(ctx, query, productID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var p domain.Promotion
		var kind string
		if err := rows.Scan(&p.ID, &p.Name, &kind, &p.Value, &p.StartsAt, &p.EndsAt, &p.Active); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		p.Type = domain.PromotionType(kind)
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promotions rows: %w", err)
	}
	return promos, nil
}
