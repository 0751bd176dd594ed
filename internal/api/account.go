package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/models"
)

// getConnectedAccountHandler handles GET /v1/merchant/account.
func (h *Handler) getConnectedAccountHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}

	account, err := h.store.GetAccountByOwner(r.Context(), p.OwnerID)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to load connected account", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if account == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "no connected account")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, account)
}

type upsertAccountRequest struct {
	StripeAccountID string `json:"stripe_account_id"`
}

// upsertConnectedAccountHandler handles PUT /v1/merchant/account. It links
// the Stripe account id and pulls the current capability flags from the
// gateway rather than trusting the caller.
func (h *Handler) upsertConnectedAccountHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}
	ctx := r.Context()

	var req upsertAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.StripeAccountID = strings.TrimSpace(req.StripeAccountID)
	if req.StripeAccountID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "stripe_account_id is required")
		return
	}

	existing, err := h.store.GetAccountByStripeID(ctx, req.StripeAccountID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to look up account", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil && existing.OwnerID != p.OwnerID {
		h.writeErrorResponse(w, r, http.StatusConflict, "account already linked to another owner")
		return
	}

	account := models.ConnectedAccount{
		OwnerID:         p.OwnerID,
		StripeAccountID: req.StripeAccountID,
	}
	if err := h.store.UpsertAccount(ctx, account); err != nil {
		logger.WithContext(ctx).Error("Failed to link account", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	// Best-effort capability sync; the account.updated webhook keeps the
	// flags current afterwards.
	if err := h.accounts.RefreshCapabilities(ctx, req.StripeAccountID, "manual.link", time.Now().UTC()); err != nil {
		logger.WithContext(ctx).Warn("Failed to refresh capabilities on link", "error", err, "stripe_account_id", req.StripeAccountID)
	}

	refreshed, err := h.store.GetAccountByOwner(ctx, p.OwnerID)
	if err != nil || refreshed == nil {
		h.writeJSONResponse(w, http.StatusOK, account)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, refreshed)
}
