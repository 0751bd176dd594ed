package api

import (
	"io"
	"net/http"

	"github.com/merchkit/merchkit/internal/logger"
)

// maxWebhookBody bounds the webhook payload we are willing to read.
const maxWebhookBody = 1 << 16

// stripeWebhookHandler handles POST /v1/stripe/webhook. Signature failures
// are the only 400s; every durably-handled outcome (processed, duplicate,
// ignored, terminal) returns 200 so the processor stops retrying. Only
// transient storage failures return 5xx.
func (h *Handler) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := h.reconciler.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.WithContext(ctx).Warn("Webhook signature rejected", "error", err)
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.reconciler.Process(ctx, event); err != nil {
		logger.WithContext(ctx).Error("Webhook processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "event processing failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "received"})
}
