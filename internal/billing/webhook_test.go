package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"resumeboost/internal/cache"
	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

type MockSubscriptionRepo struct {
	mock.Mock
}

func (m *MockSubscriptionRepo) Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) EnsureCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) GetByCustomerID(ctx context.Context, customerID string) (*types.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) ApplySubscription(ctx context.Context, sub *types.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) Downgrade(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) MarkActive(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

func newTestService(repo *MockSubscriptionRepo) (*Service, *cache.Cache) {
	c := cache.New(config.CacheConfig{DefaultTTL: time.Minute, CleanupInterval: time.Minute})
	cfg := config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		ProPriceID:    "price_pro_monthly",
		FrontendURL:   "https://app.example.com",
	}
	return NewService(repo, c, cfg, errors.NewLogger(slog.LevelError)), c
}

func subscriptionEvent(t *testing.T, eventType string, sub map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestSubscriptionCreatedUpgradesToPro(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, _ := newTestService(repo)
	userID := uuid.New()

	repo.On("GetByCustomerID", mock.Anything, "cus_123").
		Return(&types.Subscription{UserID: userID, StripeCustomerID: "cus_123"}, nil)
	repo.On("ApplySubscription", mock.Anything, mock.MatchedBy(func(sub *types.Subscription) bool {
		return sub.UserID == userID &&
			sub.Plan == types.PlanPro &&
			sub.Status == "active" &&
			sub.StripeSubscriptionID == "sub_abc" &&
			sub.CurrentPeriodEnd != nil
	})).Return(nil)

	event := subscriptionEvent(t, "customer.subscription.created", map[string]any{
		"id":                   "sub_abc",
		"customer":             map[string]any{"id": "cus_123"},
		"status":               "active",
		"cancel_at_period_end": false,
		"current_period_start": time.Now().Unix(),
		"current_period_end":   time.Now().AddDate(0, 1, 0).Unix(),
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro_monthly"}},
			},
		},
	})

	require.NoError(t, svc.dispatchEvent(context.Background(), event))
	repo.AssertExpectations(t)
}

func TestSubscriptionCreatedResolvesUserFromMetadata(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, _ := newTestService(repo)
	userID := uuid.New()

	repo.On("GetByCustomerID", mock.Anything, "cus_new").
		Return(nil, errors.NewPersistenceError(errors.ErrCodeNotFound, "unknown stripe customer", nil))
	repo.On("ApplySubscription", mock.Anything, mock.MatchedBy(func(sub *types.Subscription) bool {
		return sub.UserID == userID
	})).Return(nil)

	event := subscriptionEvent(t, "customer.subscription.created", map[string]any{
		"id":       "sub_meta",
		"customer": map[string]any{"id": "cus_new"},
		"status":   "active",
		"metadata": map[string]string{"user_id": userID.String()},
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro_monthly"}},
			},
		},
	})

	require.NoError(t, svc.dispatchEvent(context.Background(), event))
	repo.AssertExpectations(t)
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, c := newTestService(repo)
	userID := uuid.New()

	c.Set(cache.DashboardMetricsKey(userID.String()), "stale")

	repo.On("Downgrade", mock.Anything, "cus_123").Return(nil)
	repo.On("GetByCustomerID", mock.Anything, "cus_123").
		Return(&types.Subscription{UserID: userID, StripeCustomerID: "cus_123"}, nil)

	event := subscriptionEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_abc",
		"customer": map[string]any{"id": "cus_123"},
		"status":   "canceled",
	})

	require.NoError(t, svc.dispatchEvent(context.Background(), event))
	repo.AssertExpectations(t)

	_, found := c.Get(cache.DashboardMetricsKey(userID.String()))
	assert.False(t, found, "cached dashboard data should be invalidated")
}

func TestPaymentSucceededMarksActive(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, _ := newTestService(repo)

	repo.On("MarkActive", mock.Anything, "cus_123").Return(nil)
	repo.On("GetByCustomerID", mock.Anything, "cus_123").
		Return(&types.Subscription{UserID: uuid.New(), StripeCustomerID: "cus_123"}, nil)

	event := subscriptionEvent(t, "invoice.payment_succeeded", map[string]any{
		"id":       "in_123",
		"customer": map[string]any{"id": "cus_123"},
	})

	require.NoError(t, svc.dispatchEvent(context.Background(), event))
	repo.AssertExpectations(t)
}

func TestUnhandledEventIsIgnored(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, _ := newTestService(repo)

	event := subscriptionEvent(t, "customer.created", map[string]any{"id": "cus_123"})

	require.NoError(t, svc.dispatchEvent(context.Background(), event))
	repo.AssertNotCalled(t, "ApplySubscription", mock.Anything, mock.Anything)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc, _ := newTestService(repo)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=bad")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeWebhookSignature, errors.TypeOf(err))
}
