package http

import (
	"net/http"

	"github.com/ecommercefs/storefront/api/internal/metrics"
	"github.com/rs/zerolog"
)

// Services bundles what the router dispatches to. Admin and Authz may be nil,
// in which case the admin routes are not mounted.
type Services struct {
	Orders   OrderService
	Payments PaymentService
	Pricing  PriceQuoter
	Admin    AdminService
	Authz    *Authz
	DB       Pinger
}

// NewRouter wires every route plus CORS, metrics and request logging.
func NewRouter(svc Services, corsOrigins []string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	if svc.DB != nil {
		mux.Handle("/ready", ReadyHandler(svc.DB, logger))
	}
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/orders", HandlePlaceOrder(svc.Orders, logger))
	mux.Handle("/orders/", HandleGetOrder(svc.Orders, logger))
	mux.Handle("/payments", HandleProcessPayment(svc.Payments, logger))
	mux.Handle("/variants/", HandleVariantPrice(svc.Pricing, logger))

	if svc.Admin != nil && svc.Authz != nil {
		a := svc.Authz
		mux.Handle("/admin/variants", adminVariantsAuth(a, HandleAdminVariants(svc.Admin, logger)))
		mux.Handle("/admin/variants/", a.Require(HandleAdminRestock(svc.Admin, logger), PermInventoryWrite))
		mux.Handle("/admin/reservations/", a.Require(HandleAdminReleaseReservation(svc.Admin, logger), PermReservationManage))
		mux.Handle("/admin/orders/refunds", a.Require(HandleAdminRefunds(svc.Admin, logger), PermRefundsRead))
	} else {
		logger.Warn().Msg("admin routes disabled: no jwt secret configured")
	}

	mux.Handle("/", NotFoundHandler())

	return RequestLogger(metrics.Middleware(CORS(corsOrigins, mux)), logger)
}

// adminVariantsAuth needs read for listing and write for creation.
func adminVariantsAuth(a *Authz, next http.Handler) http.Handler {
	read := a.Require(next, PermInventoryRead)
	write := a.Require(next, PermInventoryWrite)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			read.ServeHTTP(w, r)
			return
		}
		write.ServeHTTP(w, r)
	})
}
