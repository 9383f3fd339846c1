package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-token-gate/internal/metrics"
)

// Metrics records request counts and latency labelled by the chi route pattern, so token
// values or other path noise never become label values.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			m.ObserveRequest(r.Method, route, wrapped.status, time.Since(started))
		})
	}
}
