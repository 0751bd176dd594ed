package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merchkit/merchkit/config"
	"github.com/merchkit/merchkit/internal/auth"
	apperrors "github.com/merchkit/merchkit/internal/errors"
	middlewares "github.com/merchkit/merchkit/internal/middleware"
	"github.com/merchkit/merchkit/internal/payments"
	"github.com/merchkit/merchkit/internal/pricing"
	"github.com/merchkit/merchkit/internal/ratelimit"
	"github.com/merchkit/merchkit/internal/store"
)

// Handler handles HTTP requests for the API
type Handler struct {
	store      store.Store
	resolver   *pricing.Resolver
	intents    *payments.IntentCreator
	reconciler *payments.WebhookReconciler
	accounts   *payments.AccountResolver
	keys       *auth.Service
	limiter    *ratelimit.Manager
	cfg        *config.Config
	version    string
	buildTime  string
	gitCommit  string
	startTime  time.Time
}

// NewHandler creates a new API handler
func NewHandler(
	st store.Store,
	resolver *pricing.Resolver,
	intents *payments.IntentCreator,
	reconciler *payments.WebhookReconciler,
	accounts *payments.AccountResolver,
	keys *auth.Service,
	limiter *ratelimit.Manager,
	cfg *config.Config,
	version, buildTime, gitCommit string,
) *Handler {
	return &Handler{
		store:      st,
		resolver:   resolver,
		intents:    intents,
		reconciler: reconciler,
		accounts:   accounts,
		keys:       keys,
		limiter:    limiter,
		cfg:        cfg,
		version:    version,
		buildTime:  buildTime,
		gitCommit:  gitCommit,
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// Buyer-facing storefront endpoints
		r.Get("/stores/{slug}", h.getStorefrontHandler)
		r.Get("/stores/{slug}/products/{productID}", h.getStorefrontProductHandler)

		r.With(middlewares.CheckoutRateLimit(h.limiter, h.cfg.Stripe.CheckoutRatePerMinute)).
			Post("/checkout", h.createCheckoutHandler)

		// Payment processor webhook
		r.Post("/stripe/webhook", h.stripeWebhookHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Merchant routes (API key protected)
	r.Route("/v1/merchant", func(r chi.Router) {
		r.Use(middlewares.APIKeyAuth(h.cfg.Auth, h.keys))

		r.Post("/stores", h.createStoreHandler)
		r.Post("/products", h.upsertProductHandler)
		r.Post("/products/{productID}/variants", h.upsertVariantHandler)
		r.Put("/stores/{storeID}/products/{productID}", h.attachProductHandler)

		r.Put("/stores/{storeID}/products/{productID}/prices/{variantID}", h.upsertPriceHandler)
		r.Post("/stores/{storeID}/products/{productID}/prices/{variantID}/visibility", h.setVisibilityHandler)
		r.Post("/stores/{storeID}/prices/adjust", h.bulkAdjustHandler)

		r.Get("/account", h.getConnectedAccountHandler)
		r.Put("/account", h.upsertConnectedAccountHandler)

		r.Get("/keys", h.listKeysHandler)
		r.Post("/keys/{prefix}/revoke", h.revokeKeyHandler)
	})

	// Admin routes (protected by shared secret middleware)
	r.Route("/v1/admin", func(r chi.Router) {
		r.With(middlewares.AdminSecret(h.cfg.Auth.AdminSecret)).Group(func(r chi.Router) {
			r.Post("/owners/{ownerID}/keys", h.adminIssueKeyHandler)
		})
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK

	// Check store health
	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// writeDomainError maps domain errors onto HTTP statuses. Configuration
// problems (not purchasable) are client-visible 422s with a machine
// reason, never 5xx.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if np, ok := apperrors.AsNotPurchasable(err); ok {
		h.writeJSONResponse(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     http.StatusText(http.StatusUnprocessableEntity),
			Message:   np.Message,
			Reason:    np.Reason,
			Timestamp: time.Now().UTC(),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		return
	}
	var ve apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		h.writeErrorResponse(w, r, http.StatusBadRequest, ve.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeErrorResponse(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, apperrors.ErrUnauthorized):
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, apperrors.ErrForbidden):
		h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperrors.ErrConflict):
		h.writeErrorResponse(w, r, http.StatusConflict, "resource conflict")
	default:
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
