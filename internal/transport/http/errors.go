package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeMissingRequiredField   = "missing_required_field"
	codeInvalidID              = "invalid_id"
	codeInvalidQuantity        = "invalid_quantity"
	codeInvalidPrice           = "invalid_price"
	codeInvalidAmount          = "invalid_amount"
	codeEmptyItems             = "empty_items"
	codeMissingCustomer        = "missing_customer"
	codeMissingPaymentDetails  = "missing_payment_details"
	codeInvalidStockAdjustment = "invalid_stock_adjustment"
	codeSKURequired            = "sku_required"
	codeProductNameRequired    = "product_name_required"
	codeSKUAlreadyExists       = "sku_already_exists"
	codeVariantNotFound        = "variant_not_found"
	codeVariantInactive        = "variant_inactive"
	codeOrderNotFound          = "order_not_found"
	codeReservationNotFound    = "reservation_not_found"
	codeInsufficientStock      = "insufficient_stock"
	codeAmountMismatch         = "amount_mismatch"
	codePaymentInProgress      = "payment_in_progress"
	codeOrderAlreadySettled    = "order_already_settled"
	codeReservationExpired     = "reservation_expired_during_payment"
	codePaymentRejected        = "payment_rejected"
	codeGatewayUnavailable     = "gateway_unavailable"
	codeUnauthorized           = "unauthorized"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
	codeNotReady               = "not_ready"
)

// gatewayRetryAfter is sent with 503s; the order stays pending and can be retried.
const gatewayRetryAfter = "5"

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	VariantID string `json:"variant_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorBody(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(body)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

type errorMapping struct {
	target error
	status int
	code   string
}

var domainErrors = []errorMapping{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrEmptyItems, http.StatusBadRequest, codeEmptyItems},
	{domain.ErrMissingCustomer, http.StatusBadRequest, codeMissingCustomer},
	{domain.ErrPaymentDetailsRequired, http.StatusBadRequest, codeMissingPaymentDetails},
	{domain.ErrAmountMismatch, http.StatusBadRequest, codeAmountMismatch},
	{domain.ErrInvalidStockAdjustment, http.StatusBadRequest, codeInvalidStockAdjustment},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrSKURequired, http.StatusBadRequest, codeSKURequired},
	{domain.ErrProductNameRequired, http.StatusBadRequest, codeProductNameRequired},
	{domain.ErrVariantInactive, http.StatusBadRequest, codeVariantInactive},
	{domain.ErrVariantNotFound, http.StatusNotFound, codeVariantNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrReservationNotFound, http.StatusNotFound, codeReservationNotFound},
	{domain.ErrSKUAlreadyExists, http.StatusConflict, codeSKUAlreadyExists},
	{domain.ErrPaymentInProgress, http.StatusConflict, codePaymentInProgress},
	{domain.ErrOrderAlreadySettled, http.StatusConflict, codeOrderAlreadySettled},
	{domain.ErrReservationExpiredDuringPayment, http.StatusConflict, codeReservationExpired},
	{domain.ErrPaymentRejected, http.StatusUnprocessableEntity, codePaymentRejected},
}

// writePlaceOrderError reports every checkout rejection as a 400: a short line
// and an unknown variant are both problems with the submitted cart.
func writePlaceOrderError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeErrorBody(w, http.StatusBadRequest, errorResponse{
			Error:     stockErr.Error(),
			Code:      codeInsufficientStock,
			VariantID: stockErr.VariantID,
		})
	case errors.Is(err, domain.ErrVariantNotFound):
		writeError(w, http.StatusBadRequest, codeVariantNotFound, err.Error())
	default:
		writeServiceError(w, logger, err)
	}
}

// writeServiceError maps a service error onto a status and code. Anything not
// recognised is logged and returned as a bare 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeErrorBody(w, http.StatusConflict, errorResponse{
			Error:     stockErr.Error(),
			Code:      codeInsufficientStock,
			VariantID: stockErr.VariantID,
		})
		return
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		w.Header().Set("Retry-After", gatewayRetryAfter)
		writeError(w, http.StatusServiceUnavailable, codeGatewayUnavailable, domain.ErrGatewayUnavailable.Error())
		return
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	if errors.Is(err, domain.ErrInvariantViolation) {
		logger.Error().Err(err).Msg("inventory invariant violation surfaced to client")
	} else {
		logger.Error().Err(err).Msg("unhandled service error")
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON rejects unknown fields, as every write endpoint does.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
