package dashboard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeboost/internal/cache"
	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/quota"
	"resumeboost/internal/types"
)

type stubResumeRepo struct {
	count int
}

func (r *stubResumeRepo) Create(ctx context.Context, resume *types.Resume) error { return nil }
func (r *stubResumeRepo) GetByID(ctx context.Context, userID, resumeID uuid.UUID) (*types.Resume, error) {
	return nil, nil
}
func (r *stubResumeRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count, nil
}

type stubAnalysisRepo struct {
	total     int
	completed int
	avgScore  int
	activity  []types.ActivityItem
	history   *types.AnalysisHistory
	detail    *types.Analysis
	detailErr error
	listCalls int
}

func (r *stubAnalysisRepo) Create(ctx context.Context, analysis *types.Analysis) error { return nil }
func (r *stubAnalysisRepo) MarkCompleted(ctx context.Context, analysisID uuid.UUID, params types.CompletionParams) error {
	return nil
}
func (r *stubAnalysisRepo) MarkFailed(ctx context.Context, analysisID uuid.UUID, reason, model string) error {
	return nil
}
func (r *stubAnalysisRepo) GetByID(ctx context.Context, userID, analysisID uuid.UUID) (*types.Analysis, error) {
	return r.detail, r.detailErr
}
func (r *stubAnalysisRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (*types.AnalysisHistory, error) {
	r.listCalls++
	return r.history, nil
}
func (r *stubAnalysisRepo) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return r.completed, nil
}
func (r *stubAnalysisRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.total, nil
}
func (r *stubAnalysisRepo) AverageATSScore(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.avgScore, nil
}
func (r *stubAnalysisRepo) RecentActivity(ctx context.Context, userID uuid.UUID, limit int) ([]types.ActivityItem, error) {
	return r.activity, nil
}

type stubUsageRepo struct {
	views int
}

func (r *stubUsageRepo) Record(ctx context.Context, event *types.UsageEvent) error { return nil }
func (r *stubUsageRepo) CountByAction(ctx context.Context, userID uuid.UUID, action string) (int, error) {
	return r.views, nil
}

type stubSubs struct{}

func (s *stubSubs) Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	return nil, nil
}

type stubStore struct{}

func (s *stubStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	return nil
}
func (s *stubStore) Delete(ctx context.Context, key string) error { return nil }
func (s *stubStore) SignedURL(ctx context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func newTestService(analyses *stubAnalysisRepo) (*Service, *cache.Cache) {
	logger := errors.NewLogger(slog.LevelError)
	slogger := slog.New(slog.DiscardHandler)
	quotaSvc := quota.NewService(&stubSubs{}, analyses, config.QuotaConfig{
		WindowDays: 30,
		Plans:      map[string]int{"free": 2, "pro": -1},
	}, slogger)
	c := cache.New(config.CacheConfig{DefaultTTL: 5 * time.Minute, CleanupInterval: 10 * time.Minute})
	svc := NewService(&stubResumeRepo{count: 3}, analyses, &stubUsageRepo{views: 7}, quotaSvc, &stubStore{}, c, logger)
	return svc, c
}

func TestMetricsAggregates(t *testing.T) {
	analyses := &stubAnalysisRepo{
		total:     5,
		completed: 1,
		avgScore:  74,
		activity:  []types.ActivityItem{{Type: "analysis", Title: "Resume analysis (completed)"}},
	}
	svc, _ := newTestService(analyses)

	metrics, err := svc.Metrics(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.TotalResumes)
	assert.Equal(t, 5, metrics.TotalAnalyses)
	assert.Equal(t, 1, metrics.ThisMonthAnalyses)
	assert.Equal(t, 7, metrics.ProfileViews)
	assert.Equal(t, 74, metrics.AverageATSScore)
	assert.Len(t, metrics.RecentActivity, 1)
	assert.Equal(t, types.PlanFree, metrics.Plan.PlanType)
	assert.InDelta(t, 50.0, metrics.Usage.Percentage, 0.01)
}

func TestMetricsCached(t *testing.T) {
	analyses := &stubAnalysisRepo{total: 5}
	svc, c := newTestService(analyses)
	userID := uuid.New()

	first, err := svc.Metrics(context.Background(), userID)
	require.NoError(t, err)

	// Mutate the backing data; the cached aggregate must win.
	analyses.total = 99
	second, err := svc.Metrics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalAnalyses, second.TotalAnalyses)

	// After invalidation the fresh value is visible.
	c.Invalidate(userID.String())
	third, err := svc.Metrics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 99, third.TotalAnalyses)
}

func TestHistoryClampsPageSize(t *testing.T) {
	analyses := &stubAnalysisRepo{
		history: &types.AnalysisHistory{
			Items:      []types.AnalysisListItem{},
			Pagination: types.Pagination{Page: 1, Limit: MaxPageSize},
		},
	}
	svc, _ := newTestService(analyses)

	history, err := svc.History(context.Background(), uuid.New(), 0, 500)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Equal(t, 1, analyses.listCalls)
}

func TestHistoryCached(t *testing.T) {
	analyses := &stubAnalysisRepo{
		history: &types.AnalysisHistory{Pagination: types.Pagination{Page: 1, Limit: 10}},
	}
	svc, _ := newTestService(analyses)
	userID := uuid.New()

	_, err := svc.History(context.Background(), userID, 1, 10)
	require.NoError(t, err)
	_, err = svc.History(context.Background(), userID, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, analyses.listCalls, "second read should come from cache")
}

func TestDetailSignsCompletedPDF(t *testing.T) {
	score := 88
	analyses := &stubAnalysisRepo{
		detail: &types.Analysis{
			ID:               uuid.New(),
			Status:           types.StatusCompleted,
			ATSScore:         &score,
			OptimizedPDFPath: "user/analysis/optimized/optimized_resume.pdf",
		},
	}
	svc, _ := newTestService(analyses)

	detail, err := svc.Detail(context.Background(), uuid.New(), analyses.detail.ID)
	require.NoError(t, err)
	assert.Contains(t, detail.OptimizedPDFURL, "optimized_resume.pdf")
}

func TestDetailPendingHasNoURL(t *testing.T) {
	analyses := &stubAnalysisRepo{
		detail: &types.Analysis{ID: uuid.New(), Status: types.StatusPending},
	}
	svc, _ := newTestService(analyses)

	detail, err := svc.Detail(context.Background(), uuid.New(), analyses.detail.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.OptimizedPDFURL)
}

func TestDetailNotFound(t *testing.T) {
	analyses := &stubAnalysisRepo{
		detailErr: errors.NewPersistenceError(errors.ErrCodeNotFound, "analysis not found", nil),
	}
	svc, _ := newTestService(analyses)

	_, err := svc.Detail(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
