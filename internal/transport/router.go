package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/stepbot/internal/lifecycle"
	"github.com/Proton-105/stepbot/internal/middleware"
	"github.com/Proton-105/stepbot/pkg/logger"
)

// StatusReporter lists the state of every dependency.
type StatusReporter interface {
	Check(ctx context.Context) map[string]string
}

// RouterDeps are the handlers mounted on the HTTP surface. Webhook is nil in polling mode.
type RouterDeps struct {
	Webhook *Webhook
	Probes  lifecycle.HealthChecker
	Status  StatusReporter
}

// NewRouter builds the HTTP surface: webhook endpoints, metrics and probes.
func NewRouter(deps RouterDeps, log *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(logger.Middleware, middleware.Logging(log), middleware.Metrics)

	if deps.Webhook != nil {
		r.HandleFunc("/webhook/telegram", deps.Webhook.Telegram).Methods(http.MethodPost)
		r.HandleFunc("/webhook/updates", deps.Webhook.Updates).Methods(http.MethodPost)
	}

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", probe(deps.Probes, nil, false)).Methods(http.MethodGet)
	r.HandleFunc("/readyz", probe(deps.Probes, deps.Status, true)).Methods(http.MethodGet)

	return r
}

func probe(p lifecycle.HealthChecker, status StatusReporter, readiness bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		switch {
		case p == nil:
		case readiness:
			err = p.Readiness(r.Context())
		default:
			err = p.Liveness(r.Context())
		}

		body := map[string]any{"status": "ok"}
		code := http.StatusOK
		if err != nil {
			body["status"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if status != nil {
			body["components"] = status.Check(r.Context())
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
