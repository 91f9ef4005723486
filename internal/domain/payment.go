package domain

import "github.com/shopspring/decimal"

type PaymentOutcome string

const (
	PaymentApproved PaymentOutcome = "approved"
	PaymentDeclined PaymentOutcome = "declined"
	PaymentPending  PaymentOutcome = "pending"
)

// GatewayResult is what the payment gateway reported for one authorization.
type GatewayResult struct {
	Outcome           PaymentOutcome
	Provider          string
	ProviderReference string
	// ProviderStatus is kept verbatim for operators (e.g. "in_process").
	ProviderStatus string
}

func (r GatewayResult) Approved() bool {
	return r.Outcome == PaymentApproved
}

// AuthorizeRequest is one charge attempt against a tokenized card.
type AuthorizeRequest struct {
	OrderID        string
	Token          string
	Amount         decimal.Decimal
	Method         string
	Installments   int
	PayerEmail     string
	Description    string
	IdempotencyKey string
}
