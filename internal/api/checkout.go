package api

import (
	"encoding/json"
	"net/http"

	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/metrics"
	"github.com/merchkit/merchkit/internal/payments"
)

// createCheckoutHandler handles POST /v1/checkout. It resolves the live
// price and the merchant's connected account, creates the external session
// and returns the redirect URL.
func (h *Handler) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req payments.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StoreID == "" || req.ProductID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "store_id and product_id are required")
		return
	}

	url, err := h.intents.CreateIntent(ctx, req)
	if err != nil {
		metrics.RecordCheckout(req.StoreID, "rejected")
		logger.WithContext(ctx).Info("Checkout rejected",
			"store_id", req.StoreID,
			"product_id", req.ProductID,
			"error", err,
		)
		h.writeDomainError(w, r, err)
		return
	}

	metrics.RecordCheckout(req.StoreID, "created")
	h.writeJSONResponse(w, http.StatusCreated, map[string]string{"url": url})
}
