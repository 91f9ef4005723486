package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockVariants locks the given variants in ascending id order and returns
	// the ones that exist, keyed by id.
	LockVariants(ctx context.Context, variantIDs []string) (map[string]domain.Variant, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderPayment(ctx context.Context, order domain.Order) error
}

// Reservations is the subset of ReservationManager the reconciler drives.
type Reservations interface {
	TTL() time.Duration
	Create(ctx context.Context, orderID, variantID string, quantity int) (domain.Reservation, error)
	Consume(ctx context.Context, reservationID string) (domain.Reservation, error)
	Release(ctx context.Context, reservationID string) (domain.Reservation, error)
	LockByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
}

// Pricer snapshots a unit price for a locked variant.
type Pricer interface {
	QuoteVariant(ctx context.Context, variant domain.Variant) (Quote, error)
}

type OrderService struct {
	repo         OrderRepository
	reservations Reservations
	pricer       Pricer
	clock        clock.Clock
	currency     string
	events       EventPublisher
	logger       zerolog.Logger
}

const defaultCurrency = "ARS"

type OrderServiceOption func(*OrderService)

func WithCurrency(code string) OrderServiceOption {
	return func(s *OrderService) {
		if code != "" {
			s.currency = strings.ToUpper(code)
		}
	}
}

func WithOrderEvents(pub EventPublisher) OrderServiceOption {
	return func(s *OrderService) {
		if pub != nil {
			s.events = pub
		}
	}
}

func WithOrderLogger(logger zerolog.Logger) OrderServiceOption {
	return func(s *OrderService) {
		s.logger = logger
	}
}

func NewOrderService(repo OrderRepository, reservations Reservations, pricer Pricer, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		repo:         repo,
		reservations: reservations,
		pricer:       pricer,
		clock:        clk,
		currency:     defaultCurrency,
		events:       noopPublisher{},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PlaceOrderItem struct {
	VariantID string
	Quantity  int
}

type PlaceOrderInput struct {
	Customer domain.Customer
	Items    []PlaceOrderItem
}

type PlaceOrderResult struct {
	Order     domain.Order
	ExpiresAt time.Time
}

// PlaceOrder holds stock for every item and records a pending order, all in one
// transaction. If any item cannot be held the transaction rolls back, so no
// partial reservation for the order survives.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderResult, error) {
	items, err := normalizeItems(in)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	now := s.clock.Now()
	var result PlaceOrderResult

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.VariantID)
		}
		variants, err := s.repo.LockVariants(txCtx, sortedIDs(ids))
		if err != nil {
			return err
		}
		for _, item := range items {
			v, ok := variants[item.VariantID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, item.VariantID)
			}
			if !v.Active {
				return fmt.Errorf("%w: %s", domain.ErrVariantInactive, item.VariantID)
			}
		}

		order := domain.Order{
			ID:        newUUID(),
			Customer:  in.Customer,
			Currency:  s.currency,
			Status:    domain.OrderStatusPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		}

		for _, item := range items {
			v := variants[item.VariantID]
			quote, err := s.pricer.QuoteVariant(txCtx, v)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, domain.OrderItem{
				ID:          newUUID(),
				OrderID:     order.ID,
				VariantID:   v.ID,
				ProductName: v.ProductName,
				UnitPrice:   quote.FinalPrice,
				Quantity:    item.Quantity,
			})
		}
		order.TotalAmount = domain.OrderTotal(order.Items)

		// The order row goes first so reservations can reference it.
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := s.reservations.Create(txCtx, order.ID, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}

		result = PlaceOrderResult{Order: order, ExpiresAt: now.Add(s.reservations.TTL())}
		return nil
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}

	s.logger.Info().
		Str("order_id", result.Order.ID).
		Int("items", len(result.Order.Items)).
		Str("total", result.Order.TotalAmount.StringFixed(2)).
		Msg("order placed")
	publishAfterCommit(ctx, s.events, s.logger, Event{
		Type:       EventOrderPlaced,
		OrderID:    result.Order.ID,
		Data:       map[string]any{"total_amount": result.Order.TotalAmount.StringFixed(2), "currency": result.Order.Currency},
		OccurredAt: now,
	})
	return result, nil
}

func normalizeItems(in PlaceOrderInput) ([]PlaceOrderItem, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	if strings.TrimSpace(in.Customer.FullName) == "" || strings.TrimSpace(in.Customer.Email) == "" {
		return nil, domain.ErrMissingCustomer
	}

	// Duplicate lines for one variant are merged so each variant gets one hold.
	merged := make([]PlaceOrderItem, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		id, ok := canonicalID(item.VariantID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidID, item.VariantID)
		}
		item.VariantID = id
		if i, ok := index[item.VariantID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

type ApplyPaymentResult struct {
	Order domain.Order
	// AlreadyApplied is true when the order had been settled by an earlier call.
	AlreadyApplied bool
}

// ApplyPaymentOutcome settles a pending order with a gateway result. The order
// row and every reservation of the order are locked first; status changes and
// ledger effects commit together or not at all.
func (s *OrderService) ApplyPaymentOutcome(ctx context.Context, orderID string, gw domain.GatewayResult) (ApplyPaymentResult, error) {
	if !validID(orderID) {
		return ApplyPaymentResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result ApplyPaymentResult
	var outcomeErr error
	var evt Event

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		outcomeErr = nil
		evt = Event{}

		order, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Settled() {
			switch {
			case gw.Approved() && order.RefundRequired:
				outcomeErr = domain.ErrReservationExpiredDuringPayment
			case gw.Approved() != (order.Status == domain.OrderStatusPaid):
				return fmt.Errorf("%w: order %s is %s", domain.ErrOrderAlreadySettled, order.ID, order.Status)
			}
			result = ApplyPaymentResult{Order: order, AlreadyApplied: true}
			return nil
		}

		reservations, err := s.reservations.LockByOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		// Ledger effects touch variant rows; walk them in variant id order.
		sort.SliceStable(reservations, func(i, j int) bool {
			return reservations[i].VariantID < reservations[j].VariantID
		})

		order.PaymentProvider = gw.Provider
		order.PaymentStatus = gw.ProviderStatus
		order.PaymentReference = gw.ProviderReference
		order.UpdatedAt = now

		if gw.Approved() && !holdsLost(reservations) {
			for _, r := range reservations {
				if r.Status != domain.ReservationStatusActive {
					continue
				}
				if _, err := s.reservations.Consume(txCtx, r.ID); err != nil {
					return err
				}
			}
			order.Status = domain.OrderStatusPaid
			evt = Event{Type: EventOrderPaid}
		} else {
			for _, r := range reservations {
				if r.Status != domain.ReservationStatusActive {
					continue
				}
				if _, err := s.reservations.Release(txCtx, r.ID); err != nil {
					return err
				}
			}
			order.Status = domain.OrderStatusPaymentFailed
			evt = Event{Type: EventOrderPaymentFailed}
			if gw.Approved() {
				// Money was taken but the stock is gone: the order needs a manual refund.
				order.RefundRequired = true
				outcomeErr = domain.ErrReservationExpiredDuringPayment
				evt = Event{Type: EventOrderRefundRequired}
			}
		}

		if err := s.repo.UpdateOrderPayment(txCtx, order); err != nil {
			return err
		}
		result = ApplyPaymentResult{Order: order}
		return nil
	})
	if err != nil {
		return ApplyPaymentResult{}, err
	}

	if !result.AlreadyApplied {
		log := s.logger.Info()
		if outcomeErr != nil {
			log = s.logger.Error()
		}
		log.Str("order_id", result.Order.ID).
			Str("status", string(result.Order.Status)).
			Str("provider_status", result.Order.PaymentStatus).
			Bool("refund_required", result.Order.RefundRequired).
			Msg("payment outcome applied")

		evt.OrderID = result.Order.ID
		evt.OccurredAt = now
		evt.Data = map[string]any{
			"provider":          result.Order.PaymentProvider,
			"provider_status":   result.Order.PaymentStatus,
			"payment_reference": result.Order.PaymentReference,
			"total_amount":      result.Order.TotalAmount.StringFixed(2),
		}
		publishAfterCommit(ctx, s.events, s.logger, evt)
	}

	return result, outcomeErr
}

// holdsLost reports whether any hold of the order was released or expired
// before the approval arrived.
func holdsLost(reservations []domain.Reservation) bool {
	for _, r := range reservations {
		if r.Status == domain.ReservationStatusReleased || r.Status == domain.ReservationStatusExpired {
			return true
		}
	}
	return false
}

// HoldsLost reports whether a hold of the order was already released or
// expired, in which case an approval could only end in a refund.
func (s *OrderService) HoldsLost(ctx context.Context, orderID string) (bool, error) {
	reservations, err := s.reservations.ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return holdsLost(reservations), nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if !validID(orderID) {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.repo.GetOrder(ctx, orderID)
}

// sortedIDs returns ids in ascending order; row locks taken in this order
// cannot deadlock against each other.
func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
