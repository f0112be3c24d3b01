package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook kinds used as the "webhook" metric label.
const (
	WebhookInboundSMS = "inbound_sms"
	WebhookReceipt    = "receipt"
	WebhookHealth     = "health"
	webhookUnmatched  = "unmatched"
)

var (
	webhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by kind, outcome and status code.",
		},
		[]string{"webhook", "outcome", "status_code"},
	)

	webhookRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_bridge",
			Name:      "webhook_request_duration_seconds",
			Help:      "Time spent answering a webhook, enqueueing included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"webhook"},
	)
)

// WebhookMetricsMiddleware records every request under the webhook kind its
// route pattern maps to in kinds. Unknown routes are counted as "unmatched".
func WebhookMetricsMiddleware(kinds map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			kind := webhookUnmatched
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if k, ok := kinds[rctx.RoutePattern()]; ok {
					kind = k
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			webhookRequestDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			webhookRequestsTotal.WithLabelValues(kind, outcomeOf(status), strconv.Itoa(status)).Inc()
		})
	}
}

// outcomeOf buckets a status code: 4xx is "rejected", 5xx is "error".
func outcomeOf(status int) string {
	switch {
	case status < 400:
		return "accepted"
	case status < 500:
		return "rejected"
	default:
		return "error"
	}
}
