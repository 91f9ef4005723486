package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
)

// HealthHandler reports basic liveness for the service.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler fails while the database is unreachable.
func ReadyHandler(db Pinger, logger zerolog.Logger) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, stdhttp.StatusServiceUnavailable, codeNotReady, "database unavailable")
			return
		}
		HealthHandler(w, r)
	}
}
