package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory store with transaction semantics: a top-level
// WithTx holds the store mutex (serializing transactions like row locks would)
// and restores a snapshot when fn fails.
type memStore struct {
	mu           sync.Mutex
	variants     map[string]domain.Variant
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	promotions   map[string][]domain.Promotion

	failUpdateOrder error
}

type memTxKey struct{}

func newMemStore(variants ...domain.Variant) *memStore {
	m := &memStore{
		variants:     make(map[string]domain.Variant),
		reservations: make(map[string]domain.Reservation),
		orders:       make(map[string]domain.Order),
		promotions:   make(map[string][]domain.Promotion),
	}
	for _, v := range variants {
		m.variants[v.ID] = v
	}
	return m
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// guard locks the store for calls made outside a transaction.
func (m *memStore) guard(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memSnapshot struct {
	variants     map[string]domain.Variant
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		variants:     make(map[string]domain.Variant, len(m.variants)),
		reservations: make(map[string]domain.Reservation, len(m.reservations)),
		orders:       make(map[string]domain.Order, len(m.orders)),
	}
	for k, v := range m.variants {
		s.variants[k] = v
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.variants = s.variants
	m.reservations = s.reservations
	m.orders = s.orders
}

func (m *memStore) GetVariantForUpdate(ctx context.Context, variantID string) (domain.Variant, error) {
	defer m.guard(ctx)()
	v, ok := m.variants[variantID]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return v, nil
}

func (m *memStore) GetVariant(ctx context.Context, variantID string) (domain.Variant, error) {
	return m.GetVariantForUpdate(ctx, variantID)
}

func (m *memStore) UpdateVariantCounts(ctx context.Context, v domain.Variant) error {
	defer m.guard(ctx)()
	if v.Reserved < 0 || v.Reserved > v.Stock {
		return fmt.Errorf("check constraint violated for variant %s: stock=%d reserved=%d", v.ID, v.Stock, v.Reserved)
	}
	cur, ok := m.variants[v.ID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	cur.Stock = v.Stock
	cur.Reserved = v.Reserved
	m.variants[v.ID] = cur
	return nil
}

func (m *memStore) LockVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	defer m.guard(ctx)()
	out := make(map[string]domain.Variant, len(ids))
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) ListPromotionsForProduct(ctx context.Context, productID string) ([]domain.Promotion, error) {
	defer m.guard(ctx)()
	return append([]domain.Promotion(nil), m.promotions[productID]...), nil
}

func (m *memStore) CreateReservation(ctx context.Context, r domain.Reservation) error {
	defer m.guard(ctx)()
	if _, ok := m.orders[r.OrderID]; !ok && r.OrderID != "" {
		return fmt.Errorf("foreign key: order %s missing", r.OrderID)
	}
	m.reservations[r.ID] = r
	return nil
}

func (m *memStore) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	defer m.guard(ctx)()
	r, ok := m.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (m *memStore) ListReservationsByOrderForUpdate(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	return m.ListReservationsByOrder(ctx, orderID)
}

func (m *memStore) ListReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	defer m.guard(ctx)()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListDueReservations(ctx context.Context, now time.Time, after domain.DueHold, limit int) ([]domain.DueHold, error) {
	defer m.guard(ctx)()
	var due []domain.DueHold
	for _, r := range m.reservations {
		if r.ExpiredAt(now) && (after.IsZero() || dueAfter(r, after)) {
			due = append(due, domain.DueHold{ID: r.ID, ExpiresAt: r.ExpiresAt})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiresAt.Equal(due[j].ExpiresAt) {
			return due[i].ExpiresAt.Before(due[j].ExpiresAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func dueAfter(r domain.Reservation, after domain.DueHold) bool {
	if !r.ExpiresAt.Equal(after.ExpiresAt) {
		return r.ExpiresAt.After(after.ExpiresAt)
	}
	return r.ID > after.ID
}

func (m *memStore) UpdateReservationStatus(ctx context.Context, id string, status domain.ReservationStatus, at time.Time) error {
	defer m.guard(ctx)()
	r, ok := m.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	m.reservations[id] = r
	return nil
}

func (m *memStore) CreateOrder(ctx context.Context, order domain.Order) error {
	defer m.guard(ctx)()
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = order
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	defer m.guard(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) UpdateOrderPayment(ctx context.Context, order domain.Order) error {
	defer m.guard(ctx)()
	if m.failUpdateOrder != nil {
		return m.failUpdateOrder
	}
	cur, ok := m.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	cur.Status = order.Status
	cur.PaymentProvider = order.PaymentProvider
	cur.PaymentStatus = order.PaymentStatus
	cur.PaymentReference = order.PaymentReference
	cur.RefundRequired = order.RefundRequired
	cur.UpdatedAt = order.UpdatedAt
	m.orders[order.ID] = cur
	return nil
}

func (m *memStore) CreateVariant(ctx context.Context, v domain.Variant) error {
	defer m.guard(ctx)()
	for _, existing := range m.variants {
		if existing.SKU == v.SKU {
			return domain.ErrSKUAlreadyExists
		}
	}
	m.variants[v.ID] = v
	return nil
}

func (m *memStore) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	defer m.guard(ctx)()
	out := make([]domain.Variant, 0, len(m.variants))
	for _, v := range m.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *memStore) ListRefundRequired(ctx context.Context) ([]domain.Order, error) {
	defer m.guard(ctx)()
	var out []domain.Order
	for _, o := range m.orders {
		if o.RefundRequired {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) variant(t *testing.T, id string) domain.Variant {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		t.Fatalf("variant %s missing", id)
	}
	return v
}

func (m *memStore) reservation(t *testing.T, id string) domain.Reservation {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		t.Fatalf("reservation %s missing", id)
	}
	return r
}

func (m *memStore) order(t *testing.T, id string) domain.Order {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		t.Fatalf("order %s missing", id)
	}
	return o
}

func (m *memStore) reservationsFor(orderID string) []domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out
}

// assertLedgerConsistent checks 0 <= reserved <= stock and that reserved equals
// the sum of active reservations for every variant.
func (m *memStore) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make(map[string]int)
	for _, r := range m.reservations {
		if r.Status == domain.ReservationStatusActive {
			active[r.VariantID] += r.Quantity
		}
	}
	for id, v := range m.variants {
		if v.Reserved < 0 || v.Reserved > v.Stock {
			t.Fatalf("variant %s out of bounds: stock=%d reserved=%d", id, v.Stock, v.Reserved)
		}
		if v.Reserved != active[id] {
			t.Fatalf("variant %s reserved=%d but active holds sum to %d", id, v.Reserved, active[id])
		}
	}
}

func testID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

func testVariant(n, stock int, price string) domain.Variant {
	return domain.Variant{
		ID:          testID(n),
		ProductID:   testID(1000 + n),
		ProductName: fmt.Sprintf("Phone %d", n),
		SKU:         fmt.Sprintf("SKU-%d", n),
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Active:      true,
	}
}

// seedOrder inserts a bare pending order so reservations can reference it.
func (m *memStore) seedOrder(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = domain.Order{ID: id, Status: domain.OrderStatusPendingPayment}
}
