package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

const maxReceiptBodyBytes = 1 << 20

// WebhookHandler receives gateway SMS callbacks and receipt deliveries and
// turns them into queued jobs.
type WebhookHandler struct {
	jobs     domain.JobEnqueuer
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(jobs domain.JobEnqueuer, validate *validator.Validate, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		jobs:     jobs,
		validate: validate,
		logger:   logger.With("handler", "webhook"),
		now:      time.Now,
	}
}

// HandleInboundSMS accepts the gateway's inbound SMS callback. It always
// answers 200: the gateway retries anything else, and a callback we cannot use
// will not get better on retry.
func (h *WebhookHandler) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))
	defer w.WriteHeader(http.StatusOK)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Failed to parse inbound SMS callback", "error", err)
		return
	}

	// Gateways probe the callback URL with parameterless requests.
	if !r.Form.Has("text") {
		logger.DebugContext(ctx, "Inbound SMS callback without text ignored")
		return
	}

	job := domain.InboundSMSJob{
		From:       r.Form.Get("msisdn"),
		To:         r.Form.Get("to"),
		Text:       r.Form.Get("text"),
		MessageID:  r.Form.Get("messageId"),
		ReceivedAt: h.now().UTC(),
	}
	if err := h.validate.StructCtx(ctx, job); err != nil {
		logger.WarnContext(ctx, "Invalid inbound SMS callback", "error", err, "from", job.From, "to", job.To)
		return
	}

	if err := h.jobs.EnqueueInboundSMS(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to queue inbound SMS", "error", err, "from", job.From, "to", job.To)
		return
	}
	logger.InfoContext(ctx, "Inbound SMS queued", "from", job.From, "to", job.To, "message_id", job.MessageID)
}

// HandleReceipt accepts a delayed receipt listing the recipients that still
// have not read a message.
func (h *WebhookHandler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBodyBytes))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read receipt body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var job domain.UnreadMessageJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger.WarnContext(ctx, "Failed to decode receipt JSON", "error", err)
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, job); err != nil {
		logger.WarnContext(ctx, "Failed to validate receipt", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.jobs.EnqueueUnreadMessage(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to queue unread message", "error", err, "message_id", job.Message.ID)
		http.Error(w, "Failed to queue receipt for processing", http.StatusInternalServerError)
		return
	}
	logger.InfoContext(ctx, "Unread message queued", "message_id", job.Message.ID, "recipients", len(job.Recipients))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}
