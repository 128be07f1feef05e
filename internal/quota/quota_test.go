package quota

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

type stubSubs struct {
	sub *types.Subscription
	err error
}

func (s *stubSubs) Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	return s.sub, s.err
}

type stubCounter struct {
	count int
	err   error
	since time.Time
}

func (c *stubCounter) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	c.since = since
	return c.count, c.err
}

func quotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		WindowDays: 30,
		Plans:      map[string]int{"free": 2, "pro": -1},
	}
}

func newService(subs *stubSubs, counter *stubCounter) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(subs, counter, quotaConfig(), logger)
}

func TestCheckDefaultsToFreePlan(t *testing.T) {
	svc := newService(&stubSubs{}, &stubCounter{count: 0})

	info, err := svc.Check(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, types.PlanFree, info.PlanType)
	assert.Equal(t, 2, info.MonthlyLimit)
	assert.Equal(t, 2, info.Remaining)
	assert.True(t, info.IsLimited)
	assert.True(t, info.CanAnalyze)
}

func TestCheckFreePlanExhausted(t *testing.T) {
	svc := newService(&stubSubs{}, &stubCounter{count: 2})

	info, err := svc.Check(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 2, info.Used)
	assert.Equal(t, 0, info.Remaining)
	assert.False(t, info.CanAnalyze)
}

func TestCheckProPlanSkipsCounting(t *testing.T) {
	counter := &stubCounter{count: 9999}
	subs := &stubSubs{sub: &types.Subscription{Plan: types.PlanPro, Status: "active"}}
	svc := newService(subs, counter)

	info, err := svc.Check(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, types.PlanPro, info.PlanType)
	assert.False(t, info.IsLimited)
	assert.True(t, info.CanAnalyze)
	assert.Zero(t, info.Used, "unbounded plans should not count usage")
	assert.True(t, counter.since.IsZero(), "counting query should not run for unbounded plans")
}

func TestCheckInactiveProFallsBackToFree(t *testing.T) {
	subs := &stubSubs{sub: &types.Subscription{Plan: types.PlanPro, Status: "past_due"}}
	svc := newService(subs, &stubCounter{count: 1})

	info, err := svc.Check(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, types.PlanFree, info.PlanType)
	assert.Equal(t, 1, info.Used)
}

func TestCheckWindowIsThirtyDays(t *testing.T) {
	counter := &stubCounter{}
	svc := newService(&stubSubs{}, counter)
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Check(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, fixed.AddDate(0, 0, -30), counter.since)
}

func TestEnforceReturnsQuotaError(t *testing.T) {
	svc := newService(&stubSubs{}, &stubCounter{count: 5})

	info, err := svc.Enforce(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeQuota, errors.TypeOf(err))
	assert.Equal(t, errors.ErrCodeQuotaExceeded, errors.CodeOf(err))
	assert.NotNil(t, info)
	assert.False(t, info.CanAnalyze)

	// The limit rides on the error so clients can display it.
	assert.Contains(t, err.Error(), "limit of 2")
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Context["limit"])
}

func TestEnforceAllowsUnderLimit(t *testing.T) {
	svc := newService(&stubSubs{}, &stubCounter{count: 1})

	info, err := svc.Enforce(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, info.Remaining)
}
