package app

import (
	"context"
	"strings"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type AdminRepository interface {
	CreateVariant(ctx context.Context, variant domain.Variant) error
	ListVariants(ctx context.Context) ([]domain.Variant, error)
	ListRefundRequired(ctx context.Context) ([]domain.Order, error)
}

// Restocker adjusts durable stock under the ledger's locking discipline.
type Restocker interface {
	Restock(ctx context.Context, variantID string, delta int) (domain.Variant, error)
}

// ReservationReleaser cancels a hold by hand.
type ReservationReleaser interface {
	Release(ctx context.Context, reservationID string) (domain.Reservation, error)
}

type AdminService struct {
	repo         AdminRepository
	ledger       Restocker
	reservations ReservationReleaser
	clock        clock.Clock
	logger       zerolog.Logger
}

func NewAdminService(repo AdminRepository, ledger Restocker, reservations ReservationReleaser, clk clock.Clock, logger zerolog.Logger) *AdminService {
	return &AdminService{
		repo:         repo,
		ledger:       ledger,
		reservations: reservations,
		clock:        clk,
		logger:       logger,
	}
}

type CreateVariantInput struct {
	ProductName string
	SKU         string
	Price       decimal.Decimal
	Stock       int
}

func (s *AdminService) CreateVariant(ctx context.Context, in CreateVariantInput) (domain.Variant, error) {
	if strings.TrimSpace(in.ProductName) == "" {
		return domain.Variant{}, domain.ErrProductNameRequired
	}
	if strings.TrimSpace(in.SKU) == "" {
		return domain.Variant{}, domain.ErrSKURequired
	}
	if !in.Price.IsPositive() {
		return domain.Variant{}, domain.ErrInvalidPrice
	}
	if in.Stock < 0 {
		return domain.Variant{}, domain.ErrInvalidQuantity
	}

	variant := domain.Variant{
		ID:          newUUID(),
		ProductID:   newUUID(),
		ProductName: strings.TrimSpace(in.ProductName),
		SKU:         strings.TrimSpace(in.SKU),
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		Active:      true,
		UpdatedAt:   s.clock.Now(),
	}

	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		return domain.Variant{}, err
	}
	return variant, nil
}

func (s *AdminService) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	return s.repo.ListVariants(ctx)
}

func (s *AdminService) Restock(ctx context.Context, variantID string, delta int) (domain.Variant, error) {
	if !validID(variantID) {
		return domain.Variant{}, domain.ErrInvalidID
	}
	v, err := s.ledger.Restock(ctx, variantID, delta)
	if err != nil {
		return domain.Variant{}, err
	}
	s.logger.Info().Str("variant_id", variantID).Int("delta", delta).Int("stock", v.Stock).Msg("variant restocked")
	return v, nil
}

// ReleaseReservation is the manual cancellation path for a hold.
func (s *AdminService) ReleaseReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if !validID(reservationID) {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	r, err := s.reservations.Release(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.logger.Info().Str("reservation_id", r.ID).Str("status", string(r.Status)).Msg("reservation released by operator")
	return r, nil
}

// ListRefundRequired is the manual refund queue: orders charged after their holds were gone.
func (s *AdminService) ListRefundRequired(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListRefundRequired(ctx)
}
