package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AdminService is the minimal interface needed for the operator endpoints.
type AdminService interface {
	CreateVariant(ctx context.Context, in app.CreateVariantInput) (domain.Variant, error)
	ListVariants(ctx context.Context) ([]domain.Variant, error)
	Restock(ctx context.Context, variantID string, delta int) (domain.Variant, error)
	ReleaseReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	ListRefundRequired(ctx context.Context) ([]domain.Order, error)
}

// HandleAdminVariants returns an HTTP handler for variant creation/listing.
func HandleAdminVariants(svc AdminService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			variants, err := svc.ListVariants(r.Context())
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			resp := make([]variantResponse, 0, len(variants))
			for _, v := range variants {
				resp = append(resp, toVariantResponse(v))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createVariantRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if strings.TrimSpace(req.ProductName) == "" {
				writeError(w, http.StatusBadRequest, codeProductNameRequired, domain.ErrProductNameRequired.Error())
				return
			}
			if strings.TrimSpace(req.SKU) == "" {
				writeError(w, http.StatusBadRequest, codeSKURequired, domain.ErrSKURequired.Error())
				return
			}
			if req.Price == nil {
				writeError(w, http.StatusBadRequest, codeInvalidPrice, domain.ErrInvalidPrice.Error())
				return
			}

			variant, err := svc.CreateVariant(r.Context(), app.CreateVariantInput{
				ProductName: req.ProductName,
				SKU:         req.SKU,
				Price:       *req.Price,
				Stock:       req.Stock,
			})
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusCreated, toVariantResponse(variant))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminRestock returns an HTTP handler for POST /admin/variants/{id}/restock.
func HandleAdminRestock(svc AdminService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, ok := pathAction(r.URL.Path, []string{"admin", "variants"}, "restock")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req restockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Delta == 0 {
			writeError(w, http.StatusBadRequest, codeInvalidStockAdjustment, domain.ErrInvalidStockAdjustment.Error())
			return
		}

		variant, err := svc.Restock(r.Context(), variantID, req.Delta)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toVariantResponse(variant))
	}
}

// HandleAdminReleaseReservation returns an HTTP handler for
// POST /admin/reservations/{id}/release.
func HandleAdminReleaseReservation(svc AdminService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, ok := pathAction(r.URL.Path, []string{"admin", "reservations"}, "release")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		res, err := svc.ReleaseReservation(r.Context(), reservationID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reservationResponse{
			ID:        res.ID,
			OrderID:   res.OrderID,
			VariantID: res.VariantID,
			Quantity:  res.Quantity,
			Status:    string(res.Status),
			ExpiresAt: res.ExpiresAt,
		})
	}
}

// HandleAdminRefunds returns an HTTP handler for the manual refund queue.
func HandleAdminRefunds(svc AdminService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		orders, err := svc.ListRefundRequired(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		resp := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createVariantRequest struct {
	ProductName string           `json:"product_name"`
	SKU         string           `json:"sku"`
	Price       *decimal.Decimal `json:"price"`
	Stock       int              `json:"stock"`
}

type restockRequest struct {
	Delta int `json:"delta"`
}

type variantResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Reserved    int    `json:"reserved"`
	Available   int    `json:"available"`
	Active      bool   `json:"active"`
}

func toVariantResponse(v domain.Variant) variantResponse {
	return variantResponse{
		ID:          v.ID,
		ProductID:   v.ProductID,
		ProductName: v.ProductName,
		SKU:         v.SKU,
		Price:       v.Price.StringFixed(2),
		Stock:       v.Stock,
		Reserved:    v.Reserved,
		Available:   v.Available(),
		Active:      v.Active,
	}
}

type reservationResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}
