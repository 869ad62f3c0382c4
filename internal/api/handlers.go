package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/auth"
	"github.com/echotwin/echotwin/internal/billing"
	"github.com/echotwin/echotwin/internal/config"
	"github.com/echotwin/echotwin/internal/core"
	"github.com/echotwin/echotwin/internal/store"
)

type APIHandler struct {
	store     *store.SQLiteStore
	ingestion *core.IngestionService
	assistant *core.AssistantService
	intake    *core.IntakeService
	projects  *core.ProjectService
	quota     *core.QuotaLedger
	billing   *billing.Service
	oauth     *auth.OAuthService
	tokens    *auth.TokenManager
	cfg       *config.Config
	logger    *zap.Logger
}

func NewAPIHandler(
	s *store.SQLiteStore,
	ingestion *core.IngestionService,
	assistant *core.AssistantService,
	intake *core.IntakeService,
	projects *core.ProjectService,
	quota *core.QuotaLedger,
	billingSvc *billing.Service,
	oauth *auth.OAuthService,
	tokens *auth.TokenManager,
	cfg *config.Config,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		store:     s,
		ingestion: ingestion,
		assistant: assistant,
		intake:    intake,
		projects:  projects,
		quota:     quota,
		billing:   billingSvc,
		oauth:     oauth,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger,
	}
}

type ctxKey int

const (
	ctxKeyUID ctxKey = iota
	ctxKeyEmail
)

func uidFromContext(r *http.Request) string {
	uid, _ := r.Context().Value(ctxKeyUID).(string)
	return uid
}

func emailFromContext(r *http.Request) string {
	email, _ := r.Context().Value(ctxKeyEmail).(string)
	return email
}

// JWTAuthMiddleware validates the bearer token and ensures the user row
// exists (users are created on first authenticated contact, with free-tier
// limits). Rejections never reveal whether an identity exists.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeError(w, apperr.NewAuth("authorization header is required"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := h.tokens.Validate(tokenString)
		if err != nil {
			h.writeError(w, apperr.NewAuth("invalid token"))
			return
		}

		user, err := h.store.GetUser(claims.UID)
		if err != nil {
			h.logger.Error("failed to load user in auth middleware", zap.Error(err))
			h.writeError(w, apperr.NewInternal(err))
			return
		}
		if user == nil {
			if _, err := h.store.CreateUser(claims.UID, claims.Email, "",
				h.cfg.FreeProjectLimit, h.cfg.FreeProfileCharLimit, h.cfg.FreeProjectCharLimit); err != nil {
				h.logger.Error("failed to create user on first contact", zap.Error(err))
				h.writeError(w, apperr.NewInternal(err))
				return
			}
		}

		ctx := withClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			h.logger.Warn("failed to encode response", zap.Error(err))
		}
	}
}

// writeError converts any error into the JSON error body, logging internal
// and upstream failures with their causes.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	if ae.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", string(ae.Code)), zap.Error(err))
	}
	h.writeJSON(w, ae.Status, map[string]any{"error": ae})
}

func (h *APIHandler) decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}

// User handlers

// InitUserHandler returns the authenticated user, which the middleware has
// already created on first contact.
func (h *APIHandler) InitUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(uidFromContext(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if user == nil {
		h.writeError(w, apperr.NewNotFound("user"))
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	h.InitUserHandler(w, r)
}

// PublicUser is the shareable view of a user; it omits email and quota data.
type PublicUser struct {
	Username string        `json:"username"`
	PhotoURL string        `json:"photoURL"`
	Profile  store.Profile `json:"profile"`
}

func (h *APIHandler) GetUserByUsernameHandler(w http.ResponseWriter, r *http.Request) {
	username := urlParam(r, "username")
	user, err := h.store.GetUserByUsername(username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if user == nil {
		h.writeError(w, apperr.NewNotFound("user"))
		return
	}
	h.writeJSON(w, http.StatusOK, PublicUser{
		Username: user.Username,
		PhotoURL: user.PhotoURL,
		Profile:  user.Profile,
	})
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var profile store.Profile
	if err := h.decodeJSON(r, &profile); err != nil {
		h.writeError(w, err)
		return
	}

	uid := uidFromContext(r)
	// Profile fields are mutated only here; the writing sample is also
	// writable through the writing-sample upload.
	if err := h.store.UpdateProfile(uid, profile); err != nil {
		h.writeError(w, err)
		return
	}
	user, err := h.store.GetUser(uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// Answering handlers

type AskRequest struct {
	Question string         `json:"question"`
	History  []core.Message `json:"history"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	answer, err := h.assistant.Answer(r.Context(), core.ProfileScope(uidFromContext(r)), req.Question, req.History)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answer)
}

type IntakeRequest struct {
	Message string         `json:"message"`
	History []core.Message `json:"history"`
}

func (h *APIHandler) IntakeHandler(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	reply, err := h.intake.Converse(r.Context(), uidFromContext(r), req.Message, req.History)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}
