package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Proton-105/stepbot/pkg/metrics"
)

// Metrics records request counts and durations by route template.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(routeName(r), rec.code(), time.Since(start))
	})
}

func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	if tpl, err := route.GetPathTemplate(); err == nil {
		return tpl
	}
	return "unknown"
}
