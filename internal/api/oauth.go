package api

import (
	"net/http"

	"github.com/echotwin/echotwin/internal/apperr"
)

// AuthorizeHandler issues an opaque single-use code bound to the redirect
// URI and PKCE challenge. The caller is already bearer-authenticated.
func (h *APIHandler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, err := h.oauth.Authorize(
		uidFromContext(r),
		emailFromContext(r),
		q.Get("redirect_uri"),
		q.Get("code_challenge"),
		q.Get("code_challenge_method"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"code":         code,
		"redirect_uri": q.Get("redirect_uri"),
	})
}

// TokenHandler exchanges a code for its bearer credential. Form-encoded per
// the OAuth token endpoint convention; no bearer auth on this route.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, apperr.NewValidation("invalid form body"))
		return
	}

	token, err := h.oauth.Exchange(
		r.PostFormValue("grant_type"),
		r.PostFormValue("code"),
		r.PostFormValue("code_verifier"),
		r.PostFormValue("redirect_uri"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// CleanupHandler sweeps expired authorization codes on demand; the same
// sweep also runs opportunistically on every authorize call.
func (h *APIHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	purged, err := h.oauth.Sweep()
	if err != nil {
		h.writeError(w, apperr.NewInternal(err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
