// Package quota decides whether a user may start another analysis. Usage
// is counted as completed analyses inside a rolling window, so failed
// attempts never consume quota.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

// SubscriptionGetter is the slice of the subscription repository quota needs.
type SubscriptionGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error)
}

// CompletedCounter counts completed analyses inside the rolling window.
type CompletedCounter interface {
	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Service answers quota questions for the pipeline and the quota endpoint.
type Service struct {
	subscriptions SubscriptionGetter
	analyses      CompletedCounter
	cfg           config.QuotaConfig
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(subs SubscriptionGetter, analyses CompletedCounter, cfg config.QuotaConfig, logger *slog.Logger) *Service {
	return &Service{
		subscriptions: subs,
		analyses:      analyses,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Check computes the current quota state. Users without a subscription row
// are on the free plan. Unbounded plans skip the usage count entirely.
func (s *Service) Check(ctx context.Context, userID uuid.UUID) (*types.QuotaInfo, error) {
	plan := types.PlanFree
	sub, err := s.subscriptions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub != nil && sub.Status == "active" {
		plan = sub.Plan
	}

	limit := s.cfg.LimitFor(string(plan))
	if limit < 0 {
		return &types.QuotaInfo{
			PlanType:     plan,
			MonthlyLimit: limit,
			Used:         0,
			Remaining:    -1,
			IsLimited:    false,
			CanAnalyze:   true,
		}, nil
	}

	since := s.now().AddDate(0, 0, -s.cfg.WindowDays)
	used, err := s.analyses.CountCompletedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &types.QuotaInfo{
		PlanType:     plan,
		MonthlyLimit: limit,
		Used:         used,
		Remaining:    remaining,
		IsLimited:    true,
		CanAnalyze:   used < limit,
	}, nil
}

// Enforce returns a quota error when the user has exhausted their window.
// The check and the later completion are not atomic, so concurrent
// requests can overshoot the limit by the degree of concurrency.
func (s *Service) Enforce(ctx context.Context, userID uuid.UUID) (*types.QuotaInfo, error) {
	info, err := s.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !info.CanAnalyze {
		s.logger.InfoContext(ctx, "quota exhausted",
			slog.String("user_id", userID.String()),
			slog.String("plan", string(info.PlanType)),
			slog.Int("used", info.Used),
			slog.Int("limit", info.MonthlyLimit))
		return info, errors.NewQuotaError(errors.ErrCodeQuotaExceeded,
			fmt.Sprintf("monthly limit of %d analyses reached on the %s plan", info.MonthlyLimit, info.PlanType)).
			WithContext("limit", info.MonthlyLimit)
	}
	return info, nil
}
