package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/logger"
)

// listKeysHandler handles GET /v1/merchant/keys. Only metadata comes back;
// secrets are shown once at issue time and never again.
func (h *Handler) listKeysHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}

	keys, err := h.keys.ListKeys(r.Context(), p.OwnerID)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to list API keys", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// revokeKeyHandler handles POST /v1/merchant/keys/{prefix}/revoke.
func (h *Handler) revokeKeyHandler(w http.ResponseWriter, r *http.Request) {
	p := h.requireOwner(w, r)
	if p == nil {
		return
	}

	prefix := chi.URLParam(r, "prefix")
	if err := h.keys.Revoke(r.Context(), p.OwnerID, prefix); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrForbidden) {
			h.writeDomainError(w, r, err)
			return
		}
		logger.WithContext(r.Context()).Error("Failed to revoke API key", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"prefix":    prefix,
		"status":    "revoked",
		"timestamp": time.Now().UTC(),
	})
}

type issueKeyRequest struct {
	Label string `json:"label,omitempty"`
}

// adminIssueKeyHandler handles POST /v1/admin/owners/{ownerID}/keys. The
// raw key appears in this response only.
func (h *Handler) adminIssueKeyHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	if ownerID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "owner id is required")
		return
	}

	var req issueKeyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	raw, key, err := h.keys.IssueKey(r.Context(), ownerID, req.Label)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to issue API key", "error", err, "owner_id", ownerID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"key":     raw,
		"details": key,
	})
}
