// Package payment holds the gateway clients behind app.PaymentGateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
)

const (
	ProviderMercadoPago = "mercadopago"

	mercadoPagoBaseURL = "https://api.mercadopago.com"
	defaultTimeout     = 15 * time.Second
	maxErrorBody       = 64 << 10
)

// APIError is a non-retryable rejection of the request itself (bad token,
// invalid amount, auth failure). It matches domain.ErrPaymentRejected.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mercadopago: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("mercadopago: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == domain.ErrPaymentRejected
}

type MercadoPagoConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// MercadoPago authorizes card payments through the /v1/payments endpoint.
type MercadoPago struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      zerolog.Logger
}

func NewMercadoPago(cfg MercadoPagoConfig, logger zerolog.Logger) *MercadoPago {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = mercadoPagoBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MercadoPago{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type mpPayer struct {
	Email string `json:"email"`
}

type mpPaymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Token             string      `json:"token"`
	Description       string      `json:"description,omitempty"`
	Installments      int         `json:"installments"`
	PaymentMethodID   string      `json:"payment_method_id,omitempty"`
	ExternalReference string      `json:"external_reference,omitempty"`
	Payer             mpPayer     `json:"payer"`
}

type mpPaymentResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

type mpErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Cause   []struct {
		Code        any    `json:"code"`
		Description string `json:"description"`
	} `json:"cause"`
}

func (c *MercadoPago) Authorize(ctx context.Context, req domain.AuthorizeRequest) (domain.GatewayResult, error) {
	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}
	body, err := json.Marshal(mpPaymentRequest{
		TransactionAmount: json.Number(req.Amount.StringFixed(2)),
		Token:             req.Token,
		Description:       req.Description,
		Installments:      installments,
		PaymentMethodID:   req.Method,
		ExternalReference: req.OrderID,
		Payer:             mpPayer{Email: req.PayerEmail},
	})
	if err != nil {
		return domain.GatewayResult{}, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return domain.GatewayResult{}, fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.GatewayResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("order_id", req.OrderID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("mercadopago payment call")

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return domain.GatewayResult{}, fmt.Errorf("%w: mercadopago returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.GatewayResult{}, decodeAPIError(resp)
	}

	var payload mpPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// The charge may have gone through; treat it as unknown and let the
		// idempotency key dedupe the retry.
		return domain.GatewayResult{}, fmt.Errorf("%w: decode payment response: %v", domain.ErrGatewayUnavailable, err)
	}

	return domain.GatewayResult{
		Outcome:           MapStatus(payload.Status),
		Provider:          ProviderMercadoPago,
		ProviderReference: strconv.FormatInt(payload.ID, 10),
		ProviderStatus:    payload.Status,
	}, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload mpErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		}
		apiErr.Code = payload.Error
		if len(payload.Cause) > 0 && payload.Cause[0].Description != "" {
			apiErr.Message = payload.Cause[0].Description
		}
	}
	return apiErr
}

// MapStatus folds MercadoPago payment statuses into the three outcomes the
// reconciler understands. Unknown statuses are treated as pending.
func MapStatus(status string) domain.PaymentOutcome {
	switch strings.ToLower(status) {
	case "approved":
		return domain.PaymentApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentDeclined
	default:
		return domain.PaymentPending
	}
}

// IsRetryable reports whether a gateway error may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrGatewayUnavailable)
}
