// Package dashboard aggregates the read-side views: usage metrics, the
// paginated analysis history, and single-analysis detail.
package dashboard

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resumeboost/internal/cache"
	"resumeboost/internal/database"
	"resumeboost/internal/errors"
	"resumeboost/internal/quota"
	"resumeboost/internal/storage"
	"resumeboost/internal/types"
)

const (
	recentActivityLimit = 10
	DefaultPageSize     = 10
	MaxPageSize         = 50
)

// Service serves dashboard reads, backed by the TTL cache.
type Service struct {
	resumes  database.ResumeRepo
	analyses database.AnalysisRepo
	usage    database.UsageRepo
	quota    *quota.Service
	store    storage.ObjectStore
	cache    *cache.Cache
	logger   *errors.Logger
}

func NewService(
	resumes database.ResumeRepo,
	analyses database.AnalysisRepo,
	usage database.UsageRepo,
	quotaSvc *quota.Service,
	store storage.ObjectStore,
	c *cache.Cache,
	logger *errors.Logger,
) *Service {
	return &Service{
		resumes:  resumes,
		analyses: analyses,
		usage:    usage,
		quota:    quotaSvc,
		store:    store,
		cache:    c,
		logger:   logger,
	}
}

// Metrics assembles the dashboard aggregate. The independent queries fan
// out concurrently; the result is cached until the next write invalidates it.
func (s *Service) Metrics(ctx context.Context, userID uuid.UUID) (*types.DashboardMetrics, error) {
	key := cache.DashboardMetricsKey(userID.String())
	if cached, found := s.cache.Get(key); found {
		if metrics, ok := cached.(*types.DashboardMetrics); ok {
			return metrics, nil
		}
	}

	var (
		totalResumes  int
		totalAnalyses int
		avgScore      int
		profileViews  int
		activity      []types.ActivityItem
		quotaInfo     *types.QuotaInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalResumes, err = s.resumes.CountByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		totalAnalyses, err = s.analyses.CountByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		avgScore, err = s.analyses.AverageATSScore(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		profileViews, err = s.usage.CountByAction(gctx, userID, types.ActionProfileView)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = s.analyses.RecentActivity(gctx, userID, recentActivityLimit)
		return err
	})
	g.Go(func() error {
		var err error
		quotaInfo, err = s.quota.Check(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usageSummary := types.UsageSummary{
		ThisMonthUsage: quotaInfo.Used,
		MonthlyLimit:   quotaInfo.MonthlyLimit,
	}
	if quotaInfo.MonthlyLimit > 0 {
		usageSummary.Percentage = float64(quotaInfo.Used) / float64(quotaInfo.MonthlyLimit) * 100
	}

	metrics := &types.DashboardMetrics{
		TotalResumes:      totalResumes,
		TotalAnalyses:     totalAnalyses,
		ThisMonthAnalyses: quotaInfo.Used,
		ProfileViews:      profileViews,
		AverageATSScore:   avgScore,
		RecentActivity:    activity,
		Usage:             usageSummary,
		Plan: types.PlanSummary{
			PlanType: quotaInfo.PlanType,
			Status:   "active",
		},
	}

	s.cache.Set(key, metrics)
	return metrics, nil
}

// History returns one page of the user's analyses, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, pageSize int) (*types.AnalysisHistory, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	key := cache.AnalysisHistoryKey(userID.String(), page, pageSize)
	if cached, found := s.cache.Get(key); found {
		if history, ok := cached.(*types.AnalysisHistory); ok {
			return history, nil
		}
	}

	history, err := s.analyses.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, history)
	return history, nil
}

// AnalysisDetail is one analysis with a fresh download URL when the
// optimized PDF exists.
type AnalysisDetail struct {
	types.Analysis
	OptimizedPDFURL string `json:"optimizedPdfUrl,omitempty"`
}

// Detail loads a single analysis scoped to its owner. Signed URLs are
// short-lived, so detail responses are never cached.
func (s *Service) Detail(ctx context.Context, userID, analysisID uuid.UUID) (*AnalysisDetail, error) {
	analysis, err := s.analyses.GetByID(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}

	detail := &AnalysisDetail{Analysis: *analysis}
	if analysis.Status == types.StatusCompleted && analysis.OptimizedPDFPath != "" {
		url, err := s.store.SignedURL(ctx, analysis.OptimizedPDFPath)
		if err != nil {
			s.logger.LogError(err, "Failed to sign optimized PDF URL", "analysis_id", analysisID.String())
		} else {
			detail.OptimizedPDFURL = url
		}
	}
	return detail, nil
}
