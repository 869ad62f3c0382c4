package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
)

// OAuthService bridges external clients onto the bearer-token auth: it
// issues opaque single-use authorization codes bound to a redirect URI and a
// PKCE S256 challenge, and exchanges them for a pre-minted bearer token.
type OAuthService struct {
	store   *store.SQLiteStore
	tokens  *TokenManager
	codeTTL time.Duration
	logger  *zap.Logger
}

func NewOAuthService(s *store.SQLiteStore, tokens *TokenManager, codeTTL time.Duration, logger *zap.Logger) *OAuthService {
	return &OAuthService{store: s, tokens: tokens, codeTTL: codeTTL, logger: logger}
}

// Authorize issues a fresh code for an already-authenticated user. Expired
// codes are swept opportunistically on every issuance.
func (s *OAuthService) Authorize(uid, email, redirectURI, challenge, challengeMethod string) (string, error) {
	if redirectURI == "" {
		return "", apperr.NewValidation("redirect_uri is required")
	}
	if challenge == "" {
		return "", apperr.NewValidation("code_challenge is required")
	}
	if challengeMethod != "S256" {
		return "", apperr.NewValidation("code_challenge_method must be S256")
	}

	if purged, err := s.Sweep(); err != nil {
		s.logger.Warn("auth code sweep failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Debug("swept expired auth codes", zap.Int64("purged", purged))
	}

	token, err := s.tokens.Generate(uid, email)
	if err != nil {
		return "", apperr.NewInternal(err)
	}

	code, err := randomCode()
	if err != nil {
		return "", apperr.NewInternal(err)
	}

	if err := s.store.SaveAuthCode(&store.AuthCode{
		Code:            code,
		UID:             uid,
		RedirectURI:     redirectURI,
		Challenge:       challenge,
		ChallengeMethod: challengeMethod,
		Token:           token,
		CreatedAt:       time.Now(),
	}); err != nil {
		return "", apperr.NewInternal(err)
	}
	return code, nil
}

// Exchange validates the grant, recomputes the PKCE verifier hash against
// the stored challenge, checks the redirect URI, and trades the code for its
// bearer token. Codes are single-use and expire after the configured TTL.
func (s *OAuthService) Exchange(grantType, code, verifier, redirectURI string) (string, error) {
	if grantType != "authorization_code" {
		return "", apperr.NewValidation("grant_type must be authorization_code")
	}
	if code == "" || verifier == "" {
		return "", apperr.NewValidation("code and code_verifier are required")
	}

	stored, err := s.store.GetAuthCode(code)
	if err != nil {
		return "", apperr.NewInternal(err)
	}
	if stored == nil {
		return "", apperr.NewAuth("invalid authorization code")
	}

	if time.Since(stored.CreatedAt) > s.codeTTL {
		if err := s.store.DeleteAuthCode(code); err != nil {
			s.logger.Warn("failed to delete expired auth code", zap.Error(err))
		}
		return "", apperr.NewAuth("authorization code expired")
	}
	if stored.RedirectURI != redirectURI {
		return "", apperr.NewAuth("redirect_uri mismatch")
	}

	hash := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])
	if subtle.ConstantTimeCompare([]byte(computed), []byte(stored.Challenge)) != 1 {
		return "", apperr.NewAuth("code verifier does not match challenge")
	}

	// Single use: the code is consumed whether or not the client retries.
	if err := s.store.DeleteAuthCode(code); err != nil {
		return "", apperr.NewInternal(err)
	}
	return stored.Token, nil
}

// Sweep purges expired codes and returns how many were removed.
func (s *OAuthService) Sweep() (int64, error) {
	return s.store.DeleteExpiredAuthCodes(time.Now().Add(-s.codeTTL))
}

func randomCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
