package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the webhook paths and the receipt signing secret.
type RouterConfig struct {
	InboundSMSPath string
	ReceiptPath    string
	WebhookSecret  string
}

// NewRouter wires the webhook endpoints.
func NewRouter(cfg RouterConfig, h *WebhookHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(WebhookMetricsMiddleware(map[string]string{
		"/healthz":         WebhookHealth,
		cfg.InboundSMSPath: WebhookInboundSMS,
		cfg.ReceiptPath:    WebhookReceipt,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get(cfg.InboundSMSPath, h.HandleInboundSMS)
	r.Post(cfg.InboundSMSPath, h.HandleInboundSMS)

	r.With(WebhookAuthMiddleware([]byte(cfg.WebhookSecret), logger)).Post(cfg.ReceiptPath, h.HandleReceipt)
	return r
}
