package analysis

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeboost/internal/ai"
	"resumeboost/internal/cache"
	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/pdfgen"
	"resumeboost/internal/types"
)

type stubQuota struct {
	info *types.QuotaInfo
	err  error
}

func (q *stubQuota) Enforce(ctx context.Context, userID uuid.UUID) (*types.QuotaInfo, error) {
	return q.info, q.err
}

type stubAnalyzer struct {
	result types.ResumeAnalysis
	usage  *ai.TokenUsage
	err    error
	calls  int
}

func (a *stubAnalyzer) AnalyzeResume(ctx context.Context, input ai.AnalyzeInput) (types.ResumeAnalysis, *ai.TokenUsage, error) {
	a.calls++
	return a.result, a.usage, a.err
}

func (a *stubAnalyzer) Model() string { return "gemini-2.0-flash" }

type stubStore struct {
	uploads map[string][]byte
	deletes []string
	signErr error
}

func newStubStore() *stubStore {
	return &stubStore{uploads: map[string][]byte{}}
}

func (s *stubStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	s.uploads[key] = data
	return nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	s.deletes = append(s.deletes, key)
	delete(s.uploads, key)
	return nil
}

func (s *stubStore) SignedURL(ctx context.Context, key string) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://signed.example.com/" + key, nil
}

type stubResumes struct {
	created []*types.Resume
}

func (r *stubResumes) Create(ctx context.Context, resume *types.Resume) error {
	r.created = append(r.created, resume)
	return nil
}

type stubAnalyses struct {
	created     []*types.Analysis
	completed   []uuid.UUID
	completeErr error
	failed      []uuid.UUID
	failedMsg   string
}

func (a *stubAnalyses) Create(ctx context.Context, analysis *types.Analysis) error {
	a.created = append(a.created, analysis)
	return nil
}

func (a *stubAnalyses) MarkCompleted(ctx context.Context, analysisID uuid.UUID, params types.CompletionParams) error {
	if a.completeErr != nil {
		return a.completeErr
	}
	a.completed = append(a.completed, analysisID)
	return nil
}

func (a *stubAnalyses) MarkFailed(ctx context.Context, analysisID uuid.UUID, reason, model string) error {
	a.failed = append(a.failed, analysisID)
	a.failedMsg = reason
	return nil
}

type stubUsage struct {
	events []*types.UsageEvent
}

func (u *stubUsage) Record(ctx context.Context, event *types.UsageEvent) error {
	u.events = append(u.events, event)
	return nil
}

type pipelineFixture struct {
	svc      *Service
	quota    *stubQuota
	ai       *stubAnalyzer
	store    *stubStore
	resumes  *stubResumes
	analyses *stubAnalyses
	usage    *stubUsage
	cache    *cache.Cache
}

func appConfig() config.AppConfig {
	return config.AppConfig{
		MaxUploadBytes:         10 * 1024 * 1024,
		MinJobDescriptionChars: 30,
		MinExtractableChars:    100,
		MaxResumeChars:         24000,
		MaxJobDescriptionChars: 12000,
		MaxResumeTokens:        6000,
		MaxJobTokens:           3500,
	}
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		quota: &stubQuota{info: &types.QuotaInfo{CanAnalyze: true}},
		ai: &stubAnalyzer{
			result: types.ResumeAnalysis{
				ATSScore:            82,
				Summary:             "Strong match",
				MissingKeywords:     []string{"golang"},
				Recommendations:     []string{"add more metrics"},
				OptimizedResumeText: "An improved resume body",
				CoverLetter:         "Dear team",
			},
			usage: &ai.TokenUsage{InputTokens: 1000, OutputTokens: 500, TotalTokens: 1500},
		},
		store:    newStubStore(),
		resumes:  &stubResumes{},
		analyses: &stubAnalyses{},
		usage:    &stubUsage{},
		cache:    cache.New(config.CacheConfig{DefaultTTL: time.Minute, CleanupInterval: time.Minute}),
	}
	f.svc = NewService(
		f.quota, f.ai, pdfgen.NewRenderer(), f.store, f.resumes, f.analyses, f.usage,
		f.cache, appConfig(), "resumeboost-test",
		errors.NewLogger(slog.LevelError),
	)
	return f
}

// resumePDF renders a small but realistic resume so extraction yields more
// than the minimum character count.
func resumePDF(t *testing.T) []byte {
	t.Helper()
	body := strings.Repeat("Senior software engineer with experience in Go, Postgres and cloud infrastructure. ", 4)
	data, err := pdfgen.NewRenderer().Render("Jane Doe", body)
	require.NoError(t, err)
	return data
}

func validRequest(t *testing.T) Request {
	return Request{
		UserID:         uuid.New(),
		Filename:       "jane resume.pdf",
		DeclaredMIME:   "application/pdf",
		FileData:       resumePDF(t),
		JobDescription: "We are looking for a senior Go engineer to build resilient backend services.",
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	f := newFixture(t)
	req := validRequest(t)

	result, err := f.svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 82, result.ATSScore)
	assert.NotEqual(t, uuid.Nil, result.AnalysisID)
	assert.Contains(t, result.OptimizedPDFURL, "optimized/optimized_resume.pdf")

	require.Len(t, f.resumes.created, 1)
	assert.Equal(t, "jane resume.pdf", f.resumes.created[0].OriginalFilename)

	require.Len(t, f.analyses.created, 1)
	assert.Equal(t, types.StatusPending, f.analyses.created[0].Status)
	assert.Positive(t, f.analyses.created[0].ResumeTokensEstimate)
	assert.Len(t, f.analyses.completed, 1)
	assert.Empty(t, f.analyses.failed)

	// Raw upload under the sanitized name plus the optimized PDF.
	assert.Len(t, f.store.uploads, 2)
	rawKey := req.UserID.String() + "/" + result.AnalysisID.String() + "/raw/jane_resume.pdf"
	assert.Contains(t, f.store.uploads, rawKey)

	require.Len(t, f.usage.events, 1)
	assert.Equal(t, types.ActionResumeBoost, f.usage.events[0].ActionType)
}

func TestAnalyzeShortJobDescriptionWritesNothing(t *testing.T) {
	f := newFixture(t)
	req := validRequest(t)
	req.JobDescription = "too short"

	_, err := f.svc.Analyze(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeJobDescriptionShort, errors.CodeOf(err))

	assert.Empty(t, f.store.uploads)
	assert.Empty(t, f.resumes.created)
	assert.Empty(t, f.analyses.created)
	assert.Zero(t, f.ai.calls)
}

func TestAnalyzeQuotaExceededSkipsAI(t *testing.T) {
	f := newFixture(t)
	f.quota.err = errors.NewQuotaError(errors.ErrCodeQuotaExceeded, "monthly limit of 2 analyses reached on the free plan")

	_, err := f.svc.Analyze(context.Background(), validRequest(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeQuota, errors.TypeOf(err))

	assert.Zero(t, f.ai.calls, "AI must not be invoked when quota is exhausted")
	assert.Empty(t, f.store.uploads)
	assert.Empty(t, f.analyses.created)
}

func TestAnalyzeUnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	req := validRequest(t)
	req.Filename = "resume.txt"
	req.DeclaredMIME = "text/plain"

	_, err := f.svc.Analyze(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnsupportedFormat, errors.CodeOf(err))
	assert.Empty(t, f.store.uploads)
}

func TestAnalyzeUnextractableDeletesUpload(t *testing.T) {
	f := newFixture(t)
	req := validRequest(t)
	// A tiny PDF whose extracted text is under the minimum.
	short, err := pdfgen.NewRenderer().Render("", "almost nothing")
	require.NoError(t, err)
	req.FileData = short

	_, err = f.svc.Analyze(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUnextractable, errors.TypeOf(err))
	assert.Equal(t, errors.ErrCodeNotEnoughText, errors.CodeOf(err))

	assert.Len(t, f.store.deletes, 1, "uploaded object should be deleted")
	assert.Empty(t, f.store.uploads, "no stored objects should remain")
	assert.Empty(t, f.resumes.created)
	assert.Empty(t, f.analyses.created)
	assert.Zero(t, f.ai.calls)
}

func TestAnalyzeAIFailureMarksRowFailed(t *testing.T) {
	f := newFixture(t)
	f.ai.err = errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to generate resume analysis", nil)

	_, err := f.svc.Analyze(context.Background(), validRequest(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAI, errors.TypeOf(err))

	require.Len(t, f.analyses.created, 1)
	require.Len(t, f.analyses.failed, 1)
	assert.Equal(t, f.analyses.created[0].ID, f.analyses.failed[0])
	assert.Empty(t, f.analyses.completed)

	// The failed analysis ID is attached so clients can reference the attempt.
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, f.analyses.created[0].ID.String(), appErr.Context["analysisId"])

	assert.Empty(t, f.usage.events, "failed analyses must not record usage")
}

func TestAnalyzeQuotaCheckedBeforeValidation(t *testing.T) {
	f := newFixture(t)
	f.quota.err = errors.NewQuotaError(errors.ErrCodeQuotaExceeded, "monthly limit of 2 analyses reached on the free plan")
	req := validRequest(t)
	req.JobDescription = "too short"

	_, err := f.svc.Analyze(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeQuota, errors.TypeOf(err),
		"an exhausted user must see the quota error even when the request is also invalid")
}

func TestAnalyzeSignedURLFailureMarksRowFailed(t *testing.T) {
	f := newFixture(t)
	f.store.signErr = errors.NewStorageError(errors.ErrCodeSignedURLFailed, "failed to presign object URL", nil)

	_, err := f.svc.Analyze(context.Background(), validRequest(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeStorage, errors.TypeOf(err))

	require.Len(t, f.analyses.created, 1)
	require.Len(t, f.analyses.failed, 1)
	assert.Equal(t, f.analyses.created[0].ID, f.analyses.failed[0])
	assert.Empty(t, f.analyses.completed, "the row must not be completed when signing fails")

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, f.analyses.created[0].ID.String(), appErr.Context["analysisId"])

	assert.Empty(t, f.usage.events)
}

func TestAnalyzeCompletedUpdateFailureLeavesRowPending(t *testing.T) {
	f := newFixture(t)
	f.analyses.completeErr = errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "connection lost", nil)

	_, err := f.svc.Analyze(context.Background(), validRequest(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePersistence, errors.TypeOf(err))

	require.Len(t, f.analyses.created, 1)
	assert.Empty(t, f.analyses.failed, "the row must stay pending, not be flipped to failed")
	assert.Empty(t, f.analyses.completed)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, f.analyses.created[0].ID.String(), appErr.Context["analysisId"])

	assert.Empty(t, f.usage.events)
}

func TestAnalyzeResultCarriesTokenCounts(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Analyze(context.Background(), validRequest(t))
	require.NoError(t, err)

	assert.Equal(t, int64(1000), result.PromptTokens)
	assert.Equal(t, int64(500), result.CompletionTokens)
	assert.Equal(t, int64(1500), result.TotalTokens)
}

func TestAnalyzeInvalidatesUserCache(t *testing.T) {
	f := newFixture(t)
	req := validRequest(t)

	f.cache.Set(cache.DashboardMetricsKey(req.UserID.String()), "stale")
	f.cache.Set(cache.QuotaKey(req.UserID.String()), "stale")

	_, err := f.svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	_, found := f.cache.Get(cache.DashboardMetricsKey(req.UserID.String()))
	assert.False(t, found)
	_, found = f.cache.Get(cache.QuotaKey(req.UserID.String()))
	assert.False(t, found)
}
