package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const (
	testOrderID   = "5f0c8a52-8d8e-4c3a-9a4e-0f6a7a1c2b3d"
	testVariantID = "9b2d7e1f-3c4a-4b5d-8e6f-7a8b9c0d1e2f"
	testSecret    = "test-secret"
	testIssuer    = "storefront"
)

type stubOrders struct {
	placeIn  app.PlaceOrderInput
	placeOut app.PlaceOrderResult
	placeErr error
	order    domain.Order
	getErr   error
}

func (s *stubOrders) PlaceOrder(_ context.Context, in app.PlaceOrderInput) (app.PlaceOrderResult, error) {
	s.placeIn = in
	return s.placeOut, s.placeErr
}

func (s *stubOrders) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	if s.getErr != nil {
		return domain.Order{}, s.getErr
	}
	o := s.order
	o.ID = orderID
	return o, nil
}

type stubPayments struct {
	in  app.ProcessPaymentInput
	out app.ProcessPaymentResult
	err error
}

func (s *stubPayments) ProcessPayment(_ context.Context, in app.ProcessPaymentInput) (app.ProcessPaymentResult, error) {
	s.in = in
	return s.out, s.err
}

type stubPricer struct {
	quote app.Quote
	err   error
}

func (s *stubPricer) Quote(_ context.Context, variantID string) (app.Quote, error) {
	q := s.quote
	q.Variant.ID = variantID
	return q, s.err
}

type stubAdmin struct {
	variants   []domain.Variant
	created    app.CreateVariantInput
	restockID  string
	restockBy  int
	releasedID string
	refunds    []domain.Order
	err        error
}

func (s *stubAdmin) CreateVariant(_ context.Context, in app.CreateVariantInput) (domain.Variant, error) {
	s.created = in
	if s.err != nil {
		return domain.Variant{}, s.err
	}
	return domain.Variant{ID: testVariantID, ProductName: in.ProductName, SKU: in.SKU, Price: in.Price, Stock: in.Stock, Active: true}, nil
}

func (s *stubAdmin) ListVariants(context.Context) ([]domain.Variant, error) {
	return s.variants, s.err
}

func (s *stubAdmin) Restock(_ context.Context, variantID string, delta int) (domain.Variant, error) {
	s.restockID, s.restockBy = variantID, delta
	if s.err != nil {
		return domain.Variant{}, s.err
	}
	return domain.Variant{ID: variantID, Stock: 10 + delta, Price: decimal.NewFromInt(100)}, nil
}

func (s *stubAdmin) ReleaseReservation(_ context.Context, reservationID string) (domain.Reservation, error) {
	s.releasedID = reservationID
	if s.err != nil {
		return domain.Reservation{}, s.err
	}
	return domain.Reservation{ID: reservationID, Status: domain.ReservationStatusReleased}, nil
}

func (s *stubAdmin) ListRefundRequired(context.Context) ([]domain.Order, error) {
	return s.refunds, s.err
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func signToken(t *testing.T, perms ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   "operator-1",
		"perms": perms,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
