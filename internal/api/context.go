package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/echotwin/echotwin/internal/auth"
)

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUID, claims.UID)
	return context.WithValue(ctx, ctxKeyEmail, claims.Email)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
