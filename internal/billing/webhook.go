package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

// MaxWebhookBodyBytes bounds the webhook payload read.
const MaxWebhookBodyBytes = int64(65536)

// HandleWebhook verifies the event signature and applies the subscription
// change. Unhandled event types are acknowledged without action.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return errors.NewWebhookSignatureError(errors.ErrCodeBadSignature,
			"webhook signature verification failed", err)
	}
	return s.dispatchEvent(ctx, event)
}

func (s *Service) dispatchEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.applySubscriptionEvent(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return s.handlePaymentSucceeded(ctx, event)
	default:
		s.logger.Debug("Ignoring unhandled stripe event", "type", string(event.Type))
		return nil
	}
}

func (s *Service) applySubscriptionEvent(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"invalid subscription payload", err)
	}
	customerID := customerIDOf(sub.Customer)
	if customerID == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"subscription event missing customer id", nil)
	}

	userID, err := s.resolveUserID(ctx, customerID, sub.Metadata)
	if err != nil {
		return err
	}

	record := &types.Subscription{
		UserID:               userID,
		Plan:                 s.planForSubscription(&sub),
		Status:               string(sub.Status),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		record.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		record.CurrentPeriodEnd = &end
	}

	if err := s.subscriptions.ApplySubscription(ctx, record); err != nil {
		return err
	}

	s.invalidateUser(userID.String())
	s.logger.Info("Applied subscription event",
		"type", string(event.Type),
		"user_id", userID.String(),
		"plan", string(record.Plan),
		"status", record.Status)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"invalid subscription payload", err)
	}
	customerID := customerIDOf(sub.Customer)
	if customerID == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"subscription event missing customer id", nil)
	}

	if err := s.subscriptions.Downgrade(ctx, customerID); err != nil {
		return err
	}

	if existing, err := s.subscriptions.GetByCustomerID(ctx, customerID); err == nil {
		s.invalidateUser(existing.UserID.String())
	}
	s.logger.Info("Downgraded subscription after deletion", "customer_id", customerID)
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"invalid invoice payload", err)
	}
	customerID := customerIDOf(invoice.Customer)
	if customerID == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"invoice event missing customer id", nil)
	}

	if err := s.subscriptions.MarkActive(ctx, customerID); err != nil {
		return err
	}

	if existing, err := s.subscriptions.GetByCustomerID(ctx, customerID); err == nil {
		s.invalidateUser(existing.UserID.String())
	}
	return nil
}

// resolveUserID maps a Stripe customer back to a user, preferring the
// stored mapping and falling back to subscription metadata for customers
// created outside the checkout flow.
func (s *Service) resolveUserID(ctx context.Context, customerID string, metadata map[string]string) (uuid.UUID, error) {
	existing, err := s.subscriptions.GetByCustomerID(ctx, customerID)
	if err == nil {
		return existing.UserID, nil
	}
	if raw, ok := metadata["user_id"]; ok {
		if userID, parseErr := uuid.Parse(raw); parseErr == nil {
			return userID, nil
		}
	}
	return uuid.Nil, err
}

// planForSubscription maps the subscription's price onto a plan. Anything
// other than the configured pro price stays free.
func (s *Service) planForSubscription(sub *stripe.Subscription) types.PlanType {
	if sub.Items == nil {
		return types.PlanFree
	}
	for _, item := range sub.Items.Data {
		if item.Price != nil && item.Price.ID == s.cfg.ProPriceID {
			return types.PlanPro
		}
	}
	return types.PlanFree
}

func (s *Service) invalidateUser(userID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
