package app

import (
	"context"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/shopspring/decimal"
)

// CatalogRepository is the read-only catalog view pricing needs.
type CatalogRepository interface {
	GetVariant(ctx context.Context, variantID string) (domain.Variant, error)
	ListPromotionsForProduct(ctx context.Context, productID string) ([]domain.Promotion, error)
}

type PricingService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewPricingService(repo CatalogRepository, clk clock.Clock) *PricingService {
	return &PricingService{repo: repo, clock: clk}
}

// Quote is the price a customer would pay for one unit right now.
type Quote struct {
	Variant    domain.Variant
	BasePrice  decimal.Decimal
	Promotion  *domain.Promotion
	FinalPrice decimal.Decimal
}

func (s *PricingService) Quote(ctx context.Context, variantID string) (Quote, error) {
	if !validID(variantID) {
		return Quote{}, domain.ErrInvalidID
	}
	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return Quote{}, err
	}
	if !variant.Active {
		return Quote{}, domain.ErrVariantInactive
	}
	return s.QuoteVariant(ctx, variant)
}

// QuoteVariant prices an already loaded variant; inside a transaction the
// promotion lookup runs on the same tx.
func (s *PricingService) QuoteVariant(ctx context.Context, variant domain.Variant) (Quote, error) {
	promos, err := s.repo.ListPromotionsForProduct(ctx, variant.ProductID)
	if err != nil {
		return Quote{}, err
	}
	best := domain.BestPromotion(promos, variant.Price, s.clock.Now())
	return Quote{
		Variant:    variant,
		BasePrice:  variant.Price,
		Promotion:  best,
		FinalPrice: domain.PriceAfter(variant.Price, best),
	}, nil
}
