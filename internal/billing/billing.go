// Package billing integrates Stripe checkout and the payment webhook that
// raises a user's tier limits.
package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
)

// ProLimits are the quota limits applied when a payment completes. Counters
// are never touched by an upgrade.
type ProLimits struct {
	ProjectLimit     int64
	ProfileCharLimit int64
	ProjectCharLimit int64
}

type Service struct {
	store         *store.SQLiteStore
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
	proLimits     ProLimits
	logger        *zap.Logger
}

func NewService(s *store.SQLiteStore, apiKey, webhookSecret, priceID, successURL, cancelURL string, proLimits ProLimits, logger *zap.Logger) *Service {
	stripe.Key = apiKey
	return &Service{
		store:         s,
		webhookSecret: webhookSecret,
		priceID:       priceID,
		successURL:    successURL,
		cancelURL:     cancelURL,
		proLimits:     proLimits,
		logger:        logger,
	}
}

// CreateCheckoutSession starts a subscription checkout for the user and
// returns the hosted payment URL. The uid travels in the session metadata so
// the webhook can attribute the payment.
func (s *Service) CreateCheckoutSession(uid string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	params.AddMetadata("uid", uid)

	sess, err := session.New(params)
	if err != nil {
		return "", apperr.NewUpstream("creating checkout session", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies the event signature before trusting anything in the
// payload, then raises the paying user's tier on checkout completion.
func (s *Service) HandleWebhook(payload []byte, signatureHeader string) error {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return apperr.NewAuth("invalid webhook signature")
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return apperr.NewValidation(fmt.Sprintf("malformed checkout session payload: %v", err))
	}
	uid := sess.Metadata["uid"]
	if uid == "" {
		return apperr.NewValidation("checkout session missing uid metadata")
	}

	if err := s.store.UpgradeTier(uid, s.proLimits.ProjectLimit, s.proLimits.ProfileCharLimit, s.proLimits.ProjectCharLimit); err != nil {
		return apperr.NewInternal(err)
	}
	s.logger.Info("upgraded user to pro", zap.String("uid", uid))
	return nil
}
