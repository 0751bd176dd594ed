package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/metrics"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/pricing"
)

type upsertPriceRequest struct {
	PriceCents     int64      `json:"price_cents"`
	CompareAtCents *int64     `json:"compare_at_cents,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	Visibility     string     `json:"visibility,omitempty"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	EndAt          *time.Time `json:"end_at,omitempty"`
}

// upsertPriceHandler handles PUT /v1/merchant/stores/{storeID}/products/{productID}/prices/{variantID}.
func (h *Handler) upsertPriceHandler(w http.ResponseWriter, r *http.Request) {
	st := h.requireStoreOwner(w, r, chi.URLParam(r, "storeID"))
	if st == nil {
		return
	}
	ctx := r.Context()

	var req upsertPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	productID := chi.URLParam(r, "productID")
	variantID := chi.URLParam(r, "variantID")

	variant, err := h.store.GetVariant(ctx, variantID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load variant", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if variant == nil || variant.ProductID != productID {
		h.writeErrorResponse(w, r, http.StatusNotFound, "variant not found")
		return
	}

	visibility := models.Visibility(req.Visibility)
	if visibility == "" {
		visibility = models.VisibilityHidden
	}

	price := models.StorePrice{
		StoreID:        st.ID,
		ProductID:      productID,
		VariantID:      variantID,
		PriceCents:     req.PriceCents,
		CompareAtCents: req.CompareAtCents,
		Currency:       req.Currency,
		Visibility:     visibility,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
	}
	if price.Currency == "" {
		price.Currency = variant.Currency
	}
	if err := price.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.resolver.GuardVisible(ctx, price); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.store.UpsertStorePrice(ctx, price); err != nil {
		logger.WithContext(ctx).Error("Failed to upsert price", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	metrics.RecordPriceChange(st.ID)
	h.writeJSONResponse(w, http.StatusOK, price)
}

type setVisibilityRequest struct {
	Visibility string     `json:"visibility"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
}

// setVisibilityHandler handles POST .../prices/{variantID}/visibility. A
// flip to VISIBLE is refused while the price would still be unsellable.
func (h *Handler) setVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	st := h.requireStoreOwner(w, r, chi.URLParam(r, "storeID"))
	if st == nil {
		return
	}
	ctx := r.Context()

	var req setVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	productID := chi.URLParam(r, "productID")
	variantID := chi.URLParam(r, "variantID")

	price, err := h.store.GetStorePrice(ctx, st.ID, productID, variantID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load price", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if price == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "price not found")
		return
	}

	price.Visibility = models.Visibility(req.Visibility)
	if req.StartAt != nil {
		price.StartAt = req.StartAt
	}
	if req.EndAt != nil {
		price.EndAt = req.EndAt
	}
	if err := price.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.resolver.GuardVisible(ctx, *price); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.store.UpsertStorePrice(ctx, *price); err != nil {
		logger.WithContext(ctx).Error("Failed to update visibility", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	metrics.RecordPriceChange(st.ID)
	h.writeJSONResponse(w, http.StatusOK, price)
}

type bulkAdjustRequest struct {
	Percent float64 `json:"percent"`
}

// bulkAdjustHandler handles POST /v1/merchant/stores/{storeID}/prices/adjust.
func (h *Handler) bulkAdjustHandler(w http.ResponseWriter, r *http.Request) {
	st := h.requireStoreOwner(w, r, chi.URLParam(r, "storeID"))
	if st == nil {
		return
	}
	ctx := r.Context()

	var req bulkAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Percent <= -100 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "percent must be greater than -100")
		return
	}

	updated, err := pricing.BulkAdjust(ctx, h.store, st.ID, req.Percent)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to bulk adjust prices", "error", err, "store_id", st.ID)
		h.writeDomainError(w, r, err)
		return
	}

	metrics.RecordPriceChange(st.ID)
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"store_id":  st.ID,
		"percent":   req.Percent,
		"updated":   updated,
		"timestamp": time.Now().UTC(),
	})
}
