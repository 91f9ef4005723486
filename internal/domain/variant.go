package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is a sellable SKU. Stock is what is physically on hand; Reserved is
// what pending orders currently hold against it.
type Variant struct {
	ID          string
	ProductID   string
	ProductName string
	SKU         string
	Price       decimal.Decimal
	Stock       int
	Reserved    int
	Active      bool
	UpdatedAt   time.Time
}

// Available is the quantity that can still be reserved.
func (v Variant) Available() int {
	return v.Stock - v.Reserved
}

// Reserve moves quantity from available into reserved.
func (v *Variant) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if v.Available() < quantity {
		return &InsufficientStockError{VariantID: v.ID, Requested: quantity, Available: max(v.Available(), 0)}
	}
	v.Reserved += quantity
	return nil
}

// Release returns a held quantity to available without touching stock.
func (v *Variant) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > v.Reserved {
		return invariantError(v.ID, "release", quantity, v.Stock, v.Reserved)
	}
	v.Reserved -= quantity
	return nil
}

// Commit finalizes a held quantity as sold: both stock and reserved drop.
func (v *Variant) Commit(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > v.Reserved || quantity > v.Stock {
		return invariantError(v.ID, "commit", quantity, v.Stock, v.Reserved)
	}
	v.Stock -= quantity
	v.Reserved -= quantity
	return nil
}

// Restock adjusts durable stock by delta. Stock can never drop below what is
// already reserved.
func (v *Variant) Restock(delta int) error {
	if delta == 0 {
		return ErrInvalidStockAdjustment
	}
	next := v.Stock + delta
	if next < 0 || next < v.Reserved {
		return ErrInvalidStockAdjustment
	}
	v.Stock = next
	return nil
}
