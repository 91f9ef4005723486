package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/ecommercefs/storefront/api/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentGateway authorizes a tokenized payment with an external provider.
type PaymentGateway interface {
	Authorize(ctx context.Context, req domain.AuthorizeRequest) (domain.GatewayResult, error)
}

// PaymentLock keeps two submissions for one order from charging concurrently
// across instances. release must be called once the outcome is applied.
type PaymentLock interface {
	Acquire(ctx context.Context, orderID string) (release func(), acquired bool, err error)
}

// OrderSettler is the subset of OrderService payments need.
type OrderSettler interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID string, gw domain.GatewayResult) (ApplyPaymentResult, error)
	HoldsLost(ctx context.Context, orderID string) (bool, error)
}

// holdsExpiredStatus is recorded when an order is failed without a charge
// because its stock was no longer held.
const holdsExpiredStatus = "holds_expired"

type PaymentService struct {
	orders  OrderSettler
	gateway PaymentGateway
	lock    PaymentLock
	logger  zerolog.Logger
}

type PaymentServiceOption func(*PaymentService)

func WithPaymentLock(lock PaymentLock) PaymentServiceOption {
	return func(s *PaymentService) {
		s.lock = lock
	}
}

func WithPaymentLogger(logger zerolog.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.logger = logger
	}
}

func NewPaymentService(orders OrderSettler, gateway PaymentGateway, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		orders:  orders,
		gateway: gateway,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ProcessPaymentInput struct {
	OrderID      string
	Token        string
	Amount       decimal.Decimal
	Method       string
	Installments int
	PayerEmail   string
	Description  string
}

type ProcessPaymentResult struct {
	Order domain.Order
	// Charged is false when the order was already settled and the gateway was not called.
	Charged bool
}

// ProcessPayment charges the order through the gateway and applies the outcome.
// Gateway failures leave the order pending with its holds in place.
func (s *PaymentService) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (ProcessPaymentResult, error) {
	if strings.TrimSpace(in.Token) == "" || strings.TrimSpace(in.PayerEmail) == "" {
		return ProcessPaymentResult{}, domain.ErrPaymentDetailsRequired
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return ProcessPaymentResult{}, err
	}
	if order.Settled() {
		return settledResult(order)
	}
	if !in.Amount.Equal(order.TotalAmount) {
		return ProcessPaymentResult{}, fmt.Errorf("%w: expected %s, got %s",
			domain.ErrAmountMismatch, order.TotalAmount.StringFixed(2), in.Amount.StringFixed(2))
	}

	if s.lock != nil {
		release, acquired, err := s.lock.Acquire(ctx, order.ID)
		if err != nil {
			return ProcessPaymentResult{}, fmt.Errorf("acquire payment lock: %w", err)
		}
		if !acquired {
			return ProcessPaymentResult{}, domain.ErrPaymentInProgress
		}
		defer release()

		// The holder before us may have settled the order after our first read.
		order, err = s.orders.GetOrder(ctx, order.ID)
		if err != nil {
			return ProcessPaymentResult{}, err
		}
		if order.Settled() {
			return settledResult(order)
		}
	}

	lost, err := s.orders.HoldsLost(ctx, order.ID)
	if err != nil {
		return ProcessPaymentResult{}, err
	}
	if lost {
		s.logger.Warn().Str("order_id", order.ID).Msg("holds gone before charge, failing order without calling gateway")
		applied, err := s.orders.ApplyPaymentOutcome(ctx, order.ID, domain.GatewayResult{
			Outcome:        domain.PaymentDeclined,
			ProviderStatus: holdsExpiredStatus,
		})
		if err != nil {
			return ProcessPaymentResult{}, err
		}
		return ProcessPaymentResult{Order: applied.Order}, domain.ErrReservationExpiredDuringPayment
	}

	gw, err := s.gateway.Authorize(ctx, domain.AuthorizeRequest{
		OrderID:        order.ID,
		Token:          in.Token,
		Amount:         order.TotalAmount,
		Method:         in.Method,
		Installments:   in.Installments,
		PayerEmail:     in.PayerEmail,
		Description:    in.Description,
		IdempotencyKey: "order-" + order.ID,
	})
	if err != nil {
		metrics.GatewayOutcome("error")
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("payment gateway call failed, order left pending")
		if errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, domain.ErrPaymentRejected) {
			return ProcessPaymentResult{}, err
		}
		return ProcessPaymentResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	metrics.GatewayOutcome(string(gw.Outcome))

	applied, err := s.orders.ApplyPaymentOutcome(ctx, order.ID, gw)
	return ProcessPaymentResult{Order: applied.Order, Charged: true}, err
}

func settledResult(order domain.Order) (ProcessPaymentResult, error) {
	if order.RefundRequired {
		return ProcessPaymentResult{Order: order}, domain.ErrReservationExpiredDuringPayment
	}
	return ProcessPaymentResult{Order: order}, nil
}
