package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method"},
	)

	reservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reservation_transitions_total",
			Help: "Reservation state transitions by resulting status",
		},
		[]string{"status"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sweep_runs_total",
			Help: "Expiry sweep runs by result",
		},
		[]string{"result"},
	)

	gatewayOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_gateway_outcomes_total",
			Help: "Payment gateway authorizations by outcome",
		},
		[]string{"outcome"},
	)

	invariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_inventory_invariant_violations_total",
		Help: "Ledger operations rejected because counters disagreed with reservations",
	})
)

// ReservationTransition counts a reservation reaching status.
func ReservationTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

// SweepRun records one sweep pass.
func SweepRun(failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	sweepRuns.WithLabelValues(result).Inc()
}

func GatewayOutcome(outcome string) {
	gatewayOutcomes.WithLabelValues(outcome).Inc()
}

func InvariantViolation() {
	invariantViolations.Inc()
}

// Middleware records request count and latency. Paths are not used as labels
// because order and reservation ids would explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
