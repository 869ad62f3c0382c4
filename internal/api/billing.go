package api

import (
	"io"
	"net/http"

	"github.com/echotwin/echotwin/internal/apperr"
)

// SubscriptionHandler reports the caller's tier and current quota usage.
func (h *APIHandler) SubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(uidFromContext(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if user == nil {
		h.writeError(w, apperr.NewNotFound("user"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"isPro":                 user.IsPro,
		"projectLimit":          user.ProjectLimit,
		"profileCharacterLimit": user.ProfileCharacterLimit,
		"projectCharacterLimit": user.ProjectCharacterLimit,
		"profileCharactersUsed": user.ProfileCharactersUsed,
		"projectCharactersUsed": user.ProjectCharactersUsed,
	})
}

func (h *APIHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	url, err := h.billing.CreateCheckoutSession(uidFromContext(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// WebhookHandler receives signed payment events. The signature is verified
// before any field of the payload is trusted.
func (h *APIHandler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.writeError(w, apperr.NewValidation("failed to read webhook payload"))
		return
	}

	if err := h.billing.HandleWebhook(payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
