package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

// LockVariants takes row locks in ascending id order so concurrent checkouts
// over overlapping carts queue instead of deadlocking.
func (r *OrderRepository) LockVariants(ctx context.Context, variantIDs []string) (map[string]domain.Variant, error) {
	const query = `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = ANY($1::uuid[])
ORDER BY v.id
FOR UPDATE OF v`

	rows, err := r.query(ctx, query, variantIDs)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Variant, len(variantIDs))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock variants rows: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const orderStmt = `
INSERT INTO orders (
	id, customer_name, customer_email, customer_phone, customer_document,
	shipping_address, shipping_city, shipping_postal_code,
	currency, total_amount, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	c := order.Customer
	if _, err := r.exec(ctx, orderStmt,
		order.ID, c.FullName, c.Email, c.Phone, c.DocumentID,
		c.Address, c.City, c.PostalCode,
		order.Currency, order.TotalAmount, string(order.Status), order.CreatedAt, order.UpdatedAt,
	); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (id, order_id, variant_id, product_name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5, $6)`

	batch := &pgx.Batch{}
	for _, item := range order.Items {
		batch.Queue(itemStmt, item.ID, order.ID, item.VariantID, item.ProductName, item.UnitPrice, item.Quantity)
	}
	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("create order items: %w", err)
	}
	return nil
}

func (r *OrderRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	var results pgx.BatchResults
	if tx := txFromContext(ctx); tx != nil {
		results = tx.SendBatch(ctx, batch)
	} else {
		results = r.pool.SendBatch(ctx, batch)
	}
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

const orderColumns = `
id, customer_name, customer_email, customer_phone, customer_document,
shipping_address, shipping_city, shipping_postal_code,
currency, total_amount, status, payment_provider, payment_status, payment_reference,
refund_required, created_at, updated_at`

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var status string
	c := &o.Customer
	err := row.Scan(
		&o.ID, &c.FullName, &c.Email, &c.Phone, &c.DocumentID,
		&c.Address, &c.City, &c.PostalCode,
		&o.Currency, &o.TotalAmount, &status, &o.PaymentProvider, &o.PaymentStatus, &o.PaymentReference,
		&o.RefundRequired, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = domain.OrderStatus(status)
	return o, err
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOrder(ctx, query, orderID)
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.getOrder(ctx, query, orderID)
}

func (r *OrderRepository) getOrder(ctx context.Context, query, orderID string) (domain.Order, error) {
	order, err := scanOrder(r.queryRow(ctx, query, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	items, err := r.listItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const query = `
SELECT id, order_id, variant_id, product_name, unit_price, quantity
FROM order_items
WHERE order_id = $1
ORDER BY id`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order items rows: %w", err)
	}
	return items, nil
}

// UpdateOrderPayment writes the status and gateway fields.
func (r *OrderRepository) UpdateOrderPayment(ctx context.Context, order domain.Order) error {
	const stmt = `
UPDATE orders
SET status = $2, payment_provider = $3, payment_status = $4, payment_reference = $5,
	refund_required = $6, updated_at = $7
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		order.ID,
		string(order.Status),
		order.PaymentProvider,
		order.PaymentStatus,
		order.PaymentReference,
		order.RefundRequired,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
