package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromotionPercentage   PromotionType = "percentage"
	PromotionFixedAmount  PromotionType = "fixed_amount"
	PromotionSpecialPrice PromotionType = "special_price"
	PromotionBuyOneGetOne PromotionType = "buy_one_get_one"
)

// Promotion is a time-boxed discount attached to one or more products.
type Promotion struct {
	ID       string
	Name     string
	Type     PromotionType
	Value    decimal.Decimal
	StartsAt time.Time
	EndsAt   time.Time
	Active   bool
}

var hundred = decimal.NewFromInt(100)

func (p Promotion) ActiveAt(now time.Time) bool {
	return p.Active && !p.StartsAt.After(now) && !p.EndsAt.Before(now)
}

// DiscountFor returns the amount taken off base, never more than base.
func (p Promotion) DiscountFor(base decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.Type {
	case PromotionPercentage:
		discount = base.Mul(p.Value).Div(hundred)
	case PromotionFixedAmount:
		discount = p.Value
	case PromotionSpecialPrice:
		if base.GreaterThan(p.Value) {
			discount = base.Sub(p.Value)
		}
	case PromotionBuyOneGetOne:
		discount = base.Div(decimal.NewFromInt(2))
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(base) {
		return base
	}
	return discount
}

// BestPromotion picks the active promotion with the largest discount on base.
// Ties keep the earlier promotion. Returns nil when none is active.
func BestPromotion(promotions []Promotion, base decimal.Decimal, now time.Time) *Promotion {
	var best *Promotion
	var bestDiscount decimal.Decimal
	for i := range promotions {
		p := promotions[i]
		if !p.ActiveAt(now) {
			continue
		}
		d := p.DiscountFor(base)
		if best == nil || d.GreaterThan(bestDiscount) {
			best = &p
			bestDiscount = d
		}
	}
	return best
}

// PriceAfter applies promotion to base. A nil promotion leaves base unchanged.
func PriceAfter(base decimal.Decimal, promotion *Promotion) decimal.Decimal {
	if promotion == nil {
		return base
	}
	return base.Sub(promotion.DiscountFor(base)).Round(2)
}
