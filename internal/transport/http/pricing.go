package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/rs/zerolog"
)

type PriceQuoter interface {
	Quote(ctx context.Context, variantID string) (app.Quote, error)
}

// HandleVariantPrice returns an HTTP handler for GET /variants/{id}/price.
func HandleVariantPrice(svc PriceQuoter, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		variantID, ok := pathAction(r.URL.Path, []string{"variants"}, "price")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		quote, err := svc.Quote(r.Context(), variantID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := quoteResponse{
			VariantID:  quote.Variant.ID,
			SKU:        quote.Variant.SKU,
			Product:    quote.Variant.ProductName,
			BasePrice:  quote.BasePrice.StringFixed(2),
			FinalPrice: quote.FinalPrice.StringFixed(2),
			Available:  quote.Variant.Available(),
		}
		if p := quote.Promotion; p != nil {
			resp.Promotion = &promotionResponse{
				ID:     p.ID,
				Name:   p.Name,
				Type:   string(p.Type),
				Value:  p.Value.String(),
				EndsAt: p.EndsAt,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type quoteResponse struct {
	VariantID  string             `json:"variant_id"`
	SKU        string             `json:"sku"`
	Product    string             `json:"product_name"`
	BasePrice  string             `json:"base_price"`
	FinalPrice string             `json:"final_price"`
	Available  int                `json:"available"`
	Promotion  *promotionResponse `json:"promotion,omitempty"`
}

type promotionResponse struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Value  string    `json:"value"`
	EndsAt time.Time `json:"ends_at"`
}
