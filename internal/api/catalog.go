package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/merchkit/merchkit/internal/auth"
	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/sku"
	"github.com/merchkit/merchkit/pkg/utils"
)

// storefrontProduct is a catalog entry with its resolved buyer-facing
// quote. Products that cannot currently be bought carry the reason
// instead of a quote.
type storefrontProduct struct {
	Product models.Product `json:"product"`
	Quote   interface{}    `json:"quote,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// getStorefrontHandler handles GET /v1/stores/{slug}: the public catalog
// of one storefront with live-resolved prices.
func (h *Handler) getStorefrontHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := h.store.GetStoreBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load store", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if st == nil || st.Status != models.StoreStatusLive {
		h.writeErrorResponse(w, r, http.StatusNotFound, "store not found")
		return
	}

	attachments, err := h.store.ListStoreProducts(ctx, st.ID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to list store products", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	var items []storefrontProduct
	for _, att := range attachments {
		if att.Hidden {
			continue
		}
		product, err := h.store.GetProduct(ctx, att.ProductID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to load product", "error", err, "product_id", att.ProductID)
			h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		if product == nil || product.Deleted() {
			continue
		}
		item := storefrontProduct{Product: *product}
		quote, err := h.resolver.Resolve(ctx, st.ID, att.ProductID, "")
		if err != nil {
			np, ok := apperrors.AsNotPurchasable(err)
			if !ok {
				logger.WithContext(ctx).Error("Failed to resolve price", "error", err, "product_id", att.ProductID)
				h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}
			item.Reason = np.Reason
		} else {
			item.Quote = quote
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"store":     st,
		"products":  items,
		"count":     len(items),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getStorefrontProductHandler handles GET /v1/stores/{slug}/products/{productID}
// with an optional ?variant_id= query.
func (h *Handler) getStorefrontProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := h.store.GetStoreBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load store", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if st == nil || st.Status != models.StoreStatusLive {
		h.writeErrorResponse(w, r, http.StatusNotFound, "store not found")
		return
	}

	productID := chi.URLParam(r, "productID")
	product, err := h.store.GetProduct(ctx, productID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load product", "error", err, "product_id", productID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if product == nil || product.Deleted() {
		h.writeErrorResponse(w, r, http.StatusNotFound, "product not found")
		return
	}

	quote, err := h.resolver.Resolve(ctx, st.ID, productID, r.URL.Query().Get("variant_id"))
	if err != nil {
		if np, ok := apperrors.AsNotPurchasable(err); ok {
			h.writeJSONResponse(w, http.StatusOK, storefrontProduct{Product: *product, Reason: np.Reason})
			return
		}
		logger.WithContext(ctx).Error("Failed to resolve price", "error", err, "product_id", productID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, storefrontProduct{Product: *product, Quote: quote})
}

// requireOwner returns the authenticated principal, or writes a 401.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) *auth.Principal {
	p := auth.GetPrincipal(r.Context())
	if p == nil {
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	return p
}

// requireStoreOwner loads the store and enforces that the caller owns it.
func (h *Handler) requireStoreOwner(w http.ResponseWriter, r *http.Request, storeID string) *models.Store {
	p := h.requireOwner(w, r)
	if p == nil {
		return nil
	}
	st, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to load store", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if st == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "store not found")
		return nil
	}
	if st.OwnerID != p.OwnerID {
		h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
		return nil
	}
	return st
}

type createStoreRequest struct {
	Name   string `json:"name"`
	Slug   string `json:"slug,omitempty"`
	Status string `json:"status,omitempty"`
}

// createStoreHandler handles POST /v1/merchant/stores.
func (h *Handler) createStoreHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}

	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "name is required")
		return
	}
	slug := req.Slug
	if slug == "" {
		slug = utils.Slugify(req.Name)
	}
	status := models.StoreStatus(req.Status)
	if status == "" {
		status = models.StoreStatusDraft
	}
	if status != models.StoreStatusDraft && status != models.StoreStatusLive {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "status must be draft or live")
		return
	}

	st := models.Store{
		ID:      uuid.NewString(),
		OwnerID: p.OwnerID,
		Slug:    slug,
		Name:    req.Name,
		Status:  status,
	}
	if err := h.store.UpsertStore(r.Context(), st); err != nil {
		logger.WithContext(r.Context()).Error("Failed to create store", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, st)
}

type upsertProductRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

// upsertProductHandler handles POST /v1/merchant/products.
func (h *Handler) upsertProductHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}

	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "title is required")
		return
	}

	product := models.Product{ID: req.ID, OwnerID: p.OwnerID, Title: req.Title}
	if product.ID == "" {
		product.ID = uuid.NewString()
	} else {
		existing, err := h.store.GetProduct(r.Context(), product.ID)
		if err != nil {
			logger.WithContext(r.Context()).Error("Failed to load product", "error", err)
			h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		if existing != nil && existing.OwnerID != p.OwnerID {
			h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
			return
		}
	}

	if err := h.store.UpsertProduct(r.Context(), product); err != nil {
		logger.WithContext(r.Context()).Error("Failed to upsert product", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, product)
}

type upsertVariantRequest struct {
	ID             string            `json:"id,omitempty"`
	SKU            string            `json:"sku,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
	BasePriceCents int64             `json:"base_price_cents"`
	Currency       string            `json:"currency"`
	Stock          *int              `json:"stock,omitempty"`
}

// upsertVariantHandler handles POST /v1/merchant/products/{productID}/variants.
// Two variants of a product may not carry the same canonical option set.
func (h *Handler) upsertVariantHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}
	ctx := r.Context()

	productID := chi.URLParam(r, "productID")
	product, err := h.store.GetProduct(ctx, productID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load product", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if product == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "product not found")
		return
	}
	if product.OwnerID != p.OwnerID {
		h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
		return
	}

	var req upsertVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BasePriceCents < 0 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "base_price_cents must not be negative")
		return
	}

	variant := models.Variant{
		ID:             req.ID,
		ProductID:      productID,
		SKU:            req.SKU,
		Options:        sku.NewOptions(req.Options),
		BasePriceCents: req.BasePriceCents,
		Currency:       req.Currency,
		Stock:          req.Stock,
	}
	if variant.ID == "" {
		variant.ID = uuid.NewString()
	}

	// Reject a second variant with the same canonical option set.
	siblings, err := h.store.ListVariants(ctx, productID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to list variants", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	for _, sib := range siblings {
		if sib.ID != variant.ID && sib.Options.Hash() == variant.Options.Hash() {
			h.writeErrorResponse(w, r, http.StatusConflict, "a variant with these options already exists")
			return
		}
	}

	if err := h.store.UpsertVariant(ctx, variant); err != nil {
		logger.WithContext(ctx).Error("Failed to upsert variant", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, variant)
}

type attachProductRequest struct {
	Position int  `json:"position,omitempty"`
	Hidden   bool `json:"hidden,omitempty"`
}

// attachProductHandler handles PUT /v1/merchant/stores/{storeID}/products/{productID}.
// Attachment is an upsert by natural key, so re-attaching preserves any
// price history keyed on the same pair.
func (h *Handler) attachProductHandler(w http.ResponseWriter, r *http.Request) {
	st := h.requireStoreOwner(w, r, chi.URLParam(r, "storeID"))
	if st == nil {
		return
	}
	ctx := r.Context()

	productID := chi.URLParam(r, "productID")
	product, err := h.store.GetProduct(ctx, productID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load product", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if product == nil || product.Deleted() {
		h.writeErrorResponse(w, r, http.StatusNotFound, "product not found")
		return
	}
	if product.OwnerID != st.OwnerID {
		h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
		return
	}

	var req attachProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sp := models.StoreProduct{
		StoreID:   st.ID,
		ProductID: productID,
		Position:  req.Position,
		Hidden:    req.Hidden,
	}
	if err := h.store.UpsertStoreProduct(ctx, sp); err != nil {
		logger.WithContext(ctx).Error("Failed to attach product", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, sp)
}
