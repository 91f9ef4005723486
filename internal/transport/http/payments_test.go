package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
)

func paymentBody() map[string]any {
	return map[string]any{
		"order_id":      testOrderID,
		"gateway_token": "tok_approved",
		"amount":        "2400.50",
		"method":        "visa",
		"payer_email":   "ana@example.com",
	}
}

func TestHandleProcessPayment_Approved(t *testing.T) {
	t.Parallel()

	svc := &stubPayments{out: app.ProcessPaymentResult{
		Order: domain.Order{
			ID:               testOrderID,
			Status:           domain.OrderStatusPaid,
			PaymentStatus:    "approved",
			PaymentReference: "mp-123",
		},
		Charged: true,
	}}
	rec := httptest.NewRecorder()
	HandleProcessPayment(svc, zerolog.Nop())(rec, jsonRequest(t, http.MethodPost, "/payments", paymentBody()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp processPaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "paid" || resp.PaymentStatus != "approved" || !resp.Charged {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.in.Amount.StringFixed(2) != "2400.50" {
		t.Fatalf("expected amount 2400.50, got %s", svc.in.Amount)
	}
	if svc.in.Installments != 1 {
		t.Fatalf("expected installments to default to 1, got %d", svc.in.Installments)
	}
}

func TestHandleProcessPayment_Declined(t *testing.T) {
	t.Parallel()

	svc := &stubPayments{out: app.ProcessPaymentResult{
		Order:   domain.Order{ID: testOrderID, Status: domain.OrderStatusPaymentFailed, PaymentStatus: "rejected"},
		Charged: true,
	}}
	rec := httptest.NewRecorder()
	HandleProcessPayment(svc, zerolog.Nop())(rec, jsonRequest(t, http.MethodPost, "/payments", paymentBody()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp processPaymentResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "payment_failed" {
		t.Fatalf("expected payment_failed, got %s", resp.Status)
	}
}

func TestHandleProcessPayment_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(map[string]any)
		err    error
		status int
		code   string
	}{
		{"missing order", func(b map[string]any) { delete(b, "order_id") }, nil, http.StatusBadRequest, codeMissingRequiredField},
		{"missing amount", func(b map[string]any) { delete(b, "amount") }, nil, http.StatusBadRequest, codeInvalidAmount},
		{"negative amount", func(b map[string]any) { b["amount"] = "-1" }, nil, http.StatusBadRequest, codeInvalidAmount},
		{"missing token", func(map[string]any) {}, domain.ErrPaymentDetailsRequired, http.StatusBadRequest, codeMissingPaymentDetails},
		{"order not found", func(map[string]any) {}, domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
		{"amount mismatch", func(map[string]any) {}, fmt.Errorf("%w: expected 1.00, got 2.00", domain.ErrAmountMismatch), http.StatusBadRequest, codeAmountMismatch},
		{"in progress", func(map[string]any) {}, domain.ErrPaymentInProgress, http.StatusConflict, codePaymentInProgress},
		{"already settled", func(map[string]any) {}, domain.ErrOrderAlreadySettled, http.StatusConflict, codeOrderAlreadySettled},
		{"late approval", func(map[string]any) {}, domain.ErrReservationExpiredDuringPayment, http.StatusConflict, codeReservationExpired},
		{"rejected request", func(map[string]any) {}, domain.ErrPaymentRejected, http.StatusUnprocessableEntity, codePaymentRejected},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			body := paymentBody()
			tc.mutate(body)
			rec := httptest.NewRecorder()
			HandleProcessPayment(&stubPayments{err: tc.err}, zerolog.Nop())(rec, jsonRequest(t, http.MethodPost, "/payments", body))

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if got := decodeError(t, rec).Code; got != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestHandleProcessPayment_GatewayUnavailableIsRetryable(t *testing.T) {
	t.Parallel()

	svc := &stubPayments{err: fmt.Errorf("%w: timeout", domain.ErrGatewayUnavailable)}
	rec := httptest.NewRecorder()
	HandleProcessPayment(svc, zerolog.Nop())(rec, jsonRequest(t, http.MethodPost, "/payments", paymentBody()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got == "" {
		t.Fatal("expected Retry-After header")
	}
	if got := decodeError(t, rec).Code; got != codeGatewayUnavailable {
		t.Fatalf("expected code %s, got %s", codeGatewayUnavailable, got)
	}
}
