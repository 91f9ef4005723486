package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
)

// OrderService is the minimal interface needed by the order endpoints.
type OrderService interface {
	PlaceOrder(ctx context.Context, in app.PlaceOrderInput) (app.PlaceOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// HandlePlaceOrder returns an HTTP handler for POST /orders.
func HandlePlaceOrder(svc OrderService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req placeOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if len(req.Items) == 0 {
			writeError(w, http.StatusBadRequest, codeEmptyItems, domain.ErrEmptyItems.Error())
			return
		}

		in := app.PlaceOrderInput{Customer: req.Customer.toDomain()}
		for _, item := range req.Items {
			in.Items = append(in.Items, app.PlaceOrderItem{
				VariantID: strings.TrimSpace(item.VariantID),
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.PlaceOrder(r.Context(), in)
		if err != nil {
			writePlaceOrderError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, placeOrderResponse{
			OrderID:     result.Order.ID,
			Status:      string(result.Order.Status),
			TotalAmount: result.Order.TotalAmount.StringFixed(2),
			Currency:    result.Order.Currency,
			ExpiresAt:   result.ExpiresAt,
			Items:       itemsResponse(result.Order.Items),
		})
	}
}

// HandleGetOrder returns an HTTP handler for GET /orders/{id}.
func HandleGetOrder(svc OrderService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		orderID, ok := pathParam(r.URL.Path, "orders")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

type customerRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	DocumentID string `json:"document_id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (c customerRequest) toDomain() domain.Customer {
	return domain.Customer{
		FullName:   strings.TrimSpace(c.FullName),
		Email:      strings.TrimSpace(c.Email),
		Phone:      strings.TrimSpace(c.Phone),
		DocumentID: strings.TrimSpace(c.DocumentID),
		Address:    strings.TrimSpace(c.Address),
		City:       strings.TrimSpace(c.City),
		PostalCode: strings.TrimSpace(c.PostalCode),
	}
}

type placeOrderRequest struct {
	Customer customerRequest    `json:"customer"`
	Items    []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderResponse struct {
	OrderID     string              `json:"order_id"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	Currency    string              `json:"currency"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Items       []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	VariantID   string `json:"variant_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	Status           string              `json:"status"`
	TotalAmount      string              `json:"total_amount"`
	Currency         string              `json:"currency"`
	Customer         customerRequest     `json:"customer"`
	PaymentProvider  string              `json:"payment_provider,omitempty"`
	PaymentStatus    string              `json:"payment_status,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	RefundRequired   bool                `json:"refund_required"`
	Items            []orderItemResponse `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func itemsResponse(items []domain.OrderItem) []orderItemResponse {
	out := make([]orderItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, orderItemResponse{
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal().StringFixed(2),
		})
	}
	return out
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.StringFixed(2),
		Currency:    o.Currency,
		Customer: customerRequest{
			FullName:   o.Customer.FullName,
			Email:      o.Customer.Email,
			Phone:      o.Customer.Phone,
			DocumentID: o.Customer.DocumentID,
			Address:    o.Customer.Address,
			City:       o.Customer.City,
			PostalCode: o.Customer.PostalCode,
		},
		PaymentProvider:  o.PaymentProvider,
		PaymentStatus:    o.PaymentStatus,
		PaymentReference: o.PaymentReference,
		RefundRequired:   o.RefundRequired,
		Items:            itemsResponse(o.Items),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// pathParam extracts {id} from "/<prefix>/{id}".
func pathParam(path, prefix string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != prefix || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// pathAction extracts {id} from "/<prefix...>/{id}/<action>".
func pathAction(path string, prefix []string, action string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(prefix)+2 || parts[len(parts)-1] != action {
		return "", false
	}
	for i, p := range prefix {
		if parts[i] != p {
			return "", false
		}
	}
	id := parts[len(prefix)]
	if id == "" {
		return "", false
	}
	return id, true
}
