package middleware

import (
	"net/http"
	"time"
)

// RequestObserver records per-request measurements.
type RequestObserver interface {
	ObserveRequest(method, path string, status int, d time.Duration)
}

// Metrics reports every request to obs, labelled by its route pattern so
// path parameters do not explode label cardinality.
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			obs.ObserveRequest(r.Method, path, rec.status, time.Since(start))
		})
	}
}
