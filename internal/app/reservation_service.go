package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/ecommercefs/storefront/api/internal/metrics"
	"github.com/rs/zerolog"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	// ListReservationsByOrderForUpdate locks every reservation of the order, ordered by id.
	ListReservationsByOrderForUpdate(ctx context.Context, orderID string) ([]domain.Reservation, error)
	ListReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
	// ListDueReservations returns active holds with expires_at <= now after the cursor,
	// skipping rows another transaction is currently working on.
	ListDueReservations(ctx context.Context, now time.Time, after domain.DueHold, limit int) ([]domain.DueHold, error)
	UpdateReservationStatus(ctx context.Context, reservationID string, status domain.ReservationStatus, at time.Time) error
}

// Ledger is the subset of InventoryLedger reservations drive.
type Ledger interface {
	Reserve(ctx context.Context, variantID string, quantity int) error
	Release(ctx context.Context, variantID string, quantity int) error
	Commit(ctx context.Context, variantID string, quantity int) error
}

// ReservationManager owns the reservation state machine. Ledger effects are
// only applied alongside a status change observed under the reservation's row
// lock, so replaying a transition never double-applies it.
type ReservationManager struct {
	repo      ReservationRepository
	ledger    Ledger
	clock     clock.Clock
	ttl       time.Duration
	batchSize int
	events    EventPublisher
	logger    zerolog.Logger
}

const (
	defaultReservationTTL = 15 * time.Minute
	defaultSweepBatchSize = 100
)

type ReservationManagerOption func(*ReservationManager)

// WithReservationTTL overrides the default TTL for new holds.
func WithReservationTTL(d time.Duration) ReservationManagerOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func WithSweepBatchSize(n int) ReservationManagerOption {
	return func(m *ReservationManager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithReservationEvents(pub EventPublisher) ReservationManagerOption {
	return func(m *ReservationManager) {
		if pub != nil {
			m.events = pub
		}
	}
}

func WithReservationLogger(logger zerolog.Logger) ReservationManagerOption {
	return func(m *ReservationManager) {
		m.logger = logger
	}
}

func NewReservationManager(repo ReservationRepository, ledger Ledger, clk clock.Clock, opts ...ReservationManagerOption) *ReservationManager {
	m := &ReservationManager{
		repo:      repo,
		ledger:    ledger,
		clock:     clk,
		ttl:       defaultReservationTTL,
		batchSize: defaultSweepBatchSize,
		events:    noopPublisher{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL is how long a new hold stays active without payment.
func (m *ReservationManager) TTL() time.Duration {
	return m.ttl
}

func (m *ReservationManager) Create(ctx context.Context, orderID, variantID string, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	now := m.clock.Now()
	var result domain.Reservation

	err := m.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.ledger.Reserve(txCtx, variantID, quantity); err != nil {
			return err
		}

		r := domain.Reservation{
			ID:        newUUID(),
			OrderID:   orderID,
			VariantID: variantID,
			Quantity:  quantity,
			Status:    domain.ReservationStatusActive,
			ExpiresAt: now.Add(m.ttl),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.repo.CreateReservation(txCtx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	metrics.ReservationTransition(string(domain.ReservationStatusActive))
	return result, nil
}

// Consume converts an active hold into a sale. Consuming an already consumed
// reservation is a no-op; a released or expired one returns ErrReservationNotActive.
func (m *ReservationManager) Consume(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return m.transition(ctx, reservationID, domain.ReservationStatusConsumed, func(r domain.Reservation) (bool, error) {
		switch r.Status {
		case domain.ReservationStatusActive:
			return true, nil
		case domain.ReservationStatusConsumed:
			return false, nil
		default:
			return false, fmt.Errorf("%w: reservation %s is %s", domain.ErrReservationNotActive, r.ID, r.Status)
		}
	})
}

// Release gives an active hold back to available stock. Any terminal state is a no-op.
func (m *ReservationManager) Release(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return m.transition(ctx, reservationID, domain.ReservationStatusReleased, func(r domain.Reservation) (bool, error) {
		return r.Status == domain.ReservationStatusActive, nil
	})
}

// LockByOrder returns the order's reservations locked for the rest of the
// caller's transaction.
func (m *ReservationManager) LockByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	return m.repo.ListReservationsByOrderForUpdate(ctx, orderID)
}

func (m *ReservationManager) ListByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	return m.repo.ListReservationsByOrder(ctx, orderID)
}

// SweepExpired expires active holds whose deadline is at or before now. Each
// hold is expired in its own transaction; one failure does not stop the rest,
// and the keyset cursor moves past it so later holds are still reached.
func (m *ReservationManager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	failed := 0
	var cursor domain.DueHold
	for {
		due, err := m.repo.ListDueReservations(ctx, now, cursor, m.batchSize)
		if err != nil {
			return expired, fmt.Errorf("list due reservations: %w", err)
		}

		events := make([]Event, 0, len(due))
		for _, h := range due {
			if err := ctx.Err(); err != nil {
				publishAfterCommit(ctx, m.events, m.logger, events...)
				return expired, err
			}
			r, ok, err := m.expire(ctx, h.ID, now)
			if err != nil {
				failed++
				m.logger.Error().Err(err).Str("reservation_id", h.ID).Msg("expire reservation failed")
				continue
			}
			if !ok {
				continue
			}
			expired++
			events = append(events, Event{
				Type:          EventReservationExpired,
				OrderID:       r.OrderID,
				ReservationID: r.ID,
				Data:          map[string]any{"variant_id": r.VariantID, "quantity": r.Quantity},
				OccurredAt:    now,
			})
		}
		publishAfterCommit(ctx, m.events, m.logger, events...)

		if len(due) < m.batchSize {
			break
		}
		cursor = due[len(due)-1]
	}

	if failed > 0 {
		return expired, fmt.Errorf("sweep: %d reservations failed to expire", failed)
	}
	return expired, nil
}

func (m *ReservationManager) expire(ctx context.Context, reservationID string, now time.Time) (domain.Reservation, bool, error) {
	var result domain.Reservation
	applied := false

	err := m.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := m.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		// A concurrent consume or release may have won while this id was queued.
		if !r.ExpiredAt(now) {
			result = r
			return nil
		}
		if err := m.ledger.Release(txCtx, r.VariantID, r.Quantity); err != nil {
			return err
		}
		if err := m.repo.UpdateReservationStatus(txCtx, r.ID, domain.ReservationStatusExpired, now); err != nil {
			return err
		}
		r.Status = domain.ReservationStatusExpired
		r.UpdatedAt = now
		result = r
		applied = true
		return nil
	})
	if err != nil {
		return domain.Reservation{}, false, err
	}
	if applied {
		metrics.ReservationTransition(string(domain.ReservationStatusExpired))
	}
	return result, applied, nil
}

// transition moves a reservation to target when check allows it. check runs
// with the reservation row locked and reports whether the move applies.
func (m *ReservationManager) transition(
	ctx context.Context,
	reservationID string,
	target domain.ReservationStatus,
	check func(domain.Reservation) (bool, error),
) (domain.Reservation, error) {
	now := m.clock.Now()
	var result domain.Reservation
	applied := false

	err := m.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := m.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		ok, err := check(r)
		if err != nil {
			return err
		}
		if !ok {
			result = r
			return nil
		}

		switch target {
		case domain.ReservationStatusConsumed:
			err = m.ledger.Commit(txCtx, r.VariantID, r.Quantity)
		default:
			err = m.ledger.Release(txCtx, r.VariantID, r.Quantity)
		}
		if err != nil {
			return err
		}
		if err := m.repo.UpdateReservationStatus(txCtx, r.ID, target, now); err != nil {
			return err
		}
		r.Status = target
		r.UpdatedAt = now
		result = r
		applied = true
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if applied {
		metrics.ReservationTransition(string(target))
	}
	return result, nil
}
