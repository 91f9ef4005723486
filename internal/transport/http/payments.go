package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentService is the minimal interface needed by POST /payments.
type PaymentService interface {
	ProcessPayment(ctx context.Context, in app.ProcessPaymentInput) (app.ProcessPaymentResult, error)
}

// HandleProcessPayment returns an HTTP handler for POST /payments. A declined
// charge is still a 200: the order moved to payment_failed and the body says so.
func HandleProcessPayment(svc PaymentService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req processPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.OrderID) == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "order_id is required")
			return
		}
		if req.Amount == nil || !req.Amount.IsPositive() {
			writeError(w, http.StatusBadRequest, codeInvalidAmount, "amount must be positive")
			return
		}
		installments := req.Installments
		if installments <= 0 {
			installments = 1
		}

		result, err := svc.ProcessPayment(r.Context(), app.ProcessPaymentInput{
			OrderID:      strings.TrimSpace(req.OrderID),
			Token:        strings.TrimSpace(req.GatewayToken),
			Amount:       *req.Amount,
			Method:       strings.TrimSpace(req.Method),
			Installments: installments,
			PayerEmail:   strings.TrimSpace(req.PayerEmail),
			Description:  req.Description,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, processPaymentResponse{
			OrderID:          result.Order.ID,
			Status:           string(result.Order.Status),
			PaymentStatus:    result.Order.PaymentStatus,
			PaymentReference: result.Order.PaymentReference,
			Charged:          result.Charged,
		})
	}
}

type processPaymentRequest struct {
	OrderID      string           `json:"order_id"`
	GatewayToken string           `json:"gateway_token"`
	Amount       *decimal.Decimal `json:"amount"`
	Method       string           `json:"method"`
	Installments int              `json:"installments"`
	PayerEmail   string           `json:"payer_email"`
	Description  string           `json:"description"`
}

type processPaymentResponse struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Charged          bool   `json:"charged"`
}
