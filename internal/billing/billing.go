// Package billing integrates Stripe checkout, the customer portal, and
// the webhook loop that mirrors subscription state into Postgres.
package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"

	"resumeboost/internal/cache"
	"resumeboost/internal/config"
	"resumeboost/internal/database"
	"resumeboost/internal/errors"
)

// Service owns every Stripe interaction. The API key is process-global in
// stripe-go, set once at construction.
type Service struct {
	subscriptions database.SubscriptionRepo
	cache         *cache.Cache
	cfg           config.StripeConfig
	logger        *errors.Logger
}

func NewService(subs database.SubscriptionRepo, c *cache.Cache, cfg config.StripeConfig, logger *errors.Logger) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{
		subscriptions: subs,
		cache:         c,
		cfg:           cfg,
		logger:        logger,
	}
}

// CreateCheckoutSession starts a subscription checkout for the pro plan
// and returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.cfg.ProPriceID == "" || s.cfg.FrontendURL == "" {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig, "billing is not configured", nil)
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	frontendURL := strings.TrimRight(s.cfg.FrontendURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeBillingFailed, "failed to create checkout session", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe customer portal for an existing
// billing customer.
func (s *Service) CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.subscriptions.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", errors.NewPersistenceError(errors.ErrCodeNotFound,
			"no billing customer exists for this user", nil)
	}

	frontendURL := strings.TrimRight(s.cfg.FrontendURL, "/")
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := portal.New(params)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeBillingFailed, "failed to create portal session", err)
	}
	return sess.URL, nil
}

// ensureCustomer finds or creates the Stripe customer for a user and
// persists the mapping.
func (s *Service) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.subscriptions.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"user_id": userID.String(),
		},
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeBillingFailed, "failed to create stripe customer", err)
	}

	if err := s.subscriptions.EnsureCustomer(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
