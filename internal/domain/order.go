package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
)

// Customer carries the buyer and shipping fields captured at checkout.
type Customer struct {
	FullName   string
	Email      string
	Phone      string
	DocumentID string
	Address    string
	City       string
	PostalCode string
}

// Order is a purchase intent. Orders are never deleted.
type Order struct {
	ID               string
	Customer         Customer
	Currency         string
	TotalAmount      decimal.Decimal
	Status           OrderStatus
	PaymentProvider  string
	PaymentStatus    string
	PaymentReference string
	// RefundRequired is set when an approval arrived after the holds were gone.
	RefundRequired bool
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Settled reports whether a payment outcome has already been applied.
func (o Order) Settled() bool {
	return o.Status != OrderStatusPendingPayment
}

// OrderItem is a line item with product name and price captured at order time.
type OrderItem struct {
	ID          string
	OrderID     string
	VariantID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderTotal sums line totals.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
