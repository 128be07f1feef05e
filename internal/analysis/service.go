// Package analysis runs the upload-to-result pipeline: validation, quota,
// storage, text extraction, AI analysis, PDF generation, and persistence.
package analysis

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"resumeboost/internal/ai"
	"resumeboost/internal/cache"
	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/extract"
	"resumeboost/internal/storage"
	"resumeboost/internal/textutil"
	"resumeboost/internal/types"
)

// QuotaEnforcer gates the pipeline on the user's remaining quota.
type QuotaEnforcer interface {
	Enforce(ctx context.Context, userID uuid.UUID) (*types.QuotaInfo, error)
}

// Analyzer is the slice of the AI service the pipeline calls.
type Analyzer interface {
	AnalyzeResume(ctx context.Context, input ai.AnalyzeInput) (types.ResumeAnalysis, *ai.TokenUsage, error)
	Model() string
}

// Renderer produces the optimized resume PDF.
type Renderer interface {
	Render(title, body string) ([]byte, error)
}

// ResumeWriter persists uploaded resumes.
type ResumeWriter interface {
	Create(ctx context.Context, resume *types.Resume) error
}

// AnalysisWriter persists analysis rows through their lifecycle.
type AnalysisWriter interface {
	Create(ctx context.Context, analysis *types.Analysis) error
	MarkCompleted(ctx context.Context, analysisID uuid.UUID, params types.CompletionParams) error
	MarkFailed(ctx context.Context, analysisID uuid.UUID, reason, model string) error
}

// UsageRecorder appends audit events.
type UsageRecorder interface {
	Record(ctx context.Context, event *types.UsageEvent) error
}

// Request is one analysis submission.
type Request struct {
	UserID         uuid.UUID
	Filename       string
	DeclaredMIME   string
	FileData       []byte
	JobDescription string
}

// Service orchestrates the analysis pipeline.
type Service struct {
	quota    QuotaEnforcer
	ai       Analyzer
	renderer Renderer
	store    storage.ObjectStore
	resumes  ResumeWriter
	analyses AnalysisWriter
	usage    UsageRecorder
	cache    *cache.Cache
	cfg      config.AppConfig
	bucket   string
	logger   *errors.Logger
}

func NewService(
	quota QuotaEnforcer,
	aiSvc Analyzer,
	renderer Renderer,
	store storage.ObjectStore,
	resumes ResumeWriter,
	analyses AnalysisWriter,
	usage UsageRecorder,
	c *cache.Cache,
	cfg config.AppConfig,
	bucket string,
	logger *errors.Logger,
) *Service {
	return &Service{
		quota:    quota,
		ai:       aiSvc,
		renderer: renderer,
		store:    store,
		resumes:  resumes,
		analyses: analyses,
		usage:    usage,
		cache:    c,
		cfg:      cfg,
		bucket:   bucket,
		logger:   logger,
	}
}

// Analyze runs the full pipeline. Quota and validation failures happen
// before any row or object is written; extraction failures clean up the
// uploaded object; AI and later failures leave a failed analysis row.
func (s *Service) Analyze(ctx context.Context, req Request) (*types.AnalyzeResult, error) {
	if _, err := s.quota.Enforce(ctx, req.UserID); err != nil {
		return nil, err
	}

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	mimeType := extract.InferMIME(req.DeclaredMIME, req.Filename)
	if !extract.IsAllowedMIME(mimeType) {
		return nil, errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
			"only PDF and DOCX resumes are supported", nil)
	}

	resumeID := uuid.New()
	analysisID := uuid.New()
	rawKey := storage.RawKey(req.UserID.String(), analysisID, req.Filename)

	if err := s.store.Upload(ctx, rawKey, mimeType, req.FileData); err != nil {
		return nil, err
	}

	normalizedResume, err := s.extractResumeText(ctx, req, mimeType, rawKey)
	if err != nil {
		return nil, err
	}
	boundedResume := textutil.BoundToTokens(normalizedResume, s.cfg.MaxResumeTokens)

	normalizedJob := textutil.Normalize(req.JobDescription, s.cfg.MaxJobDescriptionChars)
	boundedJob := textutil.BoundToTokens(normalizedJob, s.cfg.MaxJobTokens)

	resume := &types.Resume{
		ID:               resumeID,
		UserID:           req.UserID,
		OriginalFilename: req.Filename,
		MimeType:         mimeType,
		StorageBucket:    s.bucket,
		StoragePath:      rawKey,
		ExtractedText:    normalizedResume,
		NormalizedText:   boundedResume,
	}
	if err := s.resumes.Create(ctx, resume); err != nil {
		return nil, err
	}

	analysis := &types.Analysis{
		ID:                       analysisID,
		UserID:                   req.UserID,
		ResumeID:                 resumeID,
		JobDescription:           req.JobDescription,
		NormalizedJobDescription: boundedJob,
		Status:                   types.StatusPending,
		ResumeTokensEstimate:     textutil.EstimateTokens(boundedResume),
		JobTokensEstimate:        textutil.EstimateTokens(boundedJob),
	}
	if err := s.analyses.Create(ctx, analysis); err != nil {
		return nil, err
	}

	result, params, err := s.runAnalysis(ctx, req.UserID, analysisID, boundedResume, boundedJob)
	if err != nil {
		s.failAnalysis(ctx, analysisID, err)
		return nil, appendAnalysisID(err, analysisID)
	}

	// When the completed update itself fails the row stays pending; it is
	// never flipped to failed on this path.
	if err := s.analyses.MarkCompleted(ctx, analysisID, params); err != nil {
		return nil, appendAnalysisID(err, analysisID)
	}
	result.ResumeID = resumeID

	s.recordUsage(ctx, req.UserID, analysisID)
	s.cache.Invalidate(req.UserID.String())
	return result, nil
}

func (s *Service) validateRequest(req Request) error {
	if len(req.FileData) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "resume file is required", nil)
	}
	if int64(len(req.FileData)) > s.cfg.MaxUploadBytes {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("resume file exceeds the %d byte limit", s.cfg.MaxUploadBytes), nil)
	}
	if len(strings.TrimSpace(req.JobDescription)) < s.cfg.MinJobDescriptionChars {
		return errors.NewValidationError(errors.ErrCodeJobDescriptionShort,
			fmt.Sprintf("job description must be at least %d characters", s.cfg.MinJobDescriptionChars), nil)
	}
	return nil
}

// extractResumeText decodes and normalizes the uploaded document. The raw
// object is deleted again when no usable text comes out, so failed
// extractions leave no stored data behind.
func (s *Service) extractResumeText(ctx context.Context, req Request, mimeType, rawKey string) (string, error) {
	text, err := extract.Text(req.FileData, mimeType, req.Filename)
	if err != nil {
		s.deleteUpload(ctx, rawKey)
		return "", err
	}

	normalized := textutil.Normalize(text, s.cfg.MaxResumeChars)
	if len(normalized) < s.cfg.MinExtractableChars {
		s.deleteUpload(ctx, rawKey)
		return "", errors.NewUnextractableError(errors.ErrCodeNotEnoughText,
			fmt.Sprintf("could not extract at least %d characters of text from the resume", s.cfg.MinExtractableChars), nil)
	}
	return normalized, nil
}

func (s *Service) deleteUpload(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.LogError(err, "Failed to delete uploaded object after extraction failure", "key", key)
	}
}

// runAnalysis covers the stages that fail a pending analysis row: the AI
// call, PDF generation, optimized upload, and URL signing. The caller
// persists the completion so a signing failure never leaves a completed
// row without a reachable PDF.
func (s *Service) runAnalysis(ctx context.Context, userID, analysisID uuid.UUID, resumeText, jobText string) (*types.AnalyzeResult, types.CompletionParams, error) {
	aiResult, usage, err := s.ai.AnalyzeResume(ctx, ai.AnalyzeInput{
		ResumeText:     resumeText,
		JobDescription: jobText,
	})
	if err != nil {
		return nil, types.CompletionParams{}, err
	}

	pdfBytes, err := s.renderer.Render("Optimized Resume", aiResult.OptimizedResumeText)
	if err != nil {
		return nil, types.CompletionParams{}, err
	}

	optimizedKey := storage.OptimizedKey(userID.String(), analysisID)
	if err := s.store.Upload(ctx, optimizedKey, "application/pdf", pdfBytes); err != nil {
		return nil, types.CompletionParams{}, err
	}

	pdfURL, err := s.store.SignedURL(ctx, optimizedKey)
	if err != nil {
		return nil, types.CompletionParams{}, err
	}

	params := types.CompletionParams{
		ATSScore:            aiResult.ATSScore,
		Summary:             aiResult.Summary,
		MissingKeywords:     aiResult.MissingKeywords,
		Recommendations:     aiResult.Recommendations,
		OptimizedResumeText: aiResult.OptimizedResumeText,
		CoverLetter:         aiResult.CoverLetter,
		OptimizedPDFBucket:  s.bucket,
		OptimizedPDFPath:    optimizedKey,
		Model:               s.ai.Model(),
	}

	result := &types.AnalyzeResult{
		AnalysisID:          analysisID,
		ATSScore:            aiResult.ATSScore,
		Summary:             aiResult.Summary,
		MissingKeywords:     aiResult.MissingKeywords,
		Recommendations:     aiResult.Recommendations,
		OptimizedResumeText: aiResult.OptimizedResumeText,
		CoverLetter:         aiResult.CoverLetter,
		OptimizedPDFURL:     pdfURL,
	}
	if usage != nil {
		params.PromptTokens = usage.InputTokens
		params.CompletionTokens = usage.OutputTokens
		params.TotalTokens = usage.TotalTokens
		result.PromptTokens = usage.InputTokens
		result.CompletionTokens = usage.OutputTokens
		result.TotalTokens = usage.TotalTokens
	}
	return result, params, nil
}

// failAnalysis records the failure on the analysis row. Double transitions
// are logged and swallowed so the original error is what surfaces.
func (s *Service) failAnalysis(ctx context.Context, analysisID uuid.UUID, cause error) {
	if err := s.analyses.MarkFailed(ctx, analysisID, cause.Error(), s.ai.Model()); err != nil {
		s.logger.LogError(err, "Failed to mark analysis as failed", "analysis_id", analysisID.String())
	}
}

func (s *Service) recordUsage(ctx context.Context, userID, analysisID uuid.UUID) {
	event := &types.UsageEvent{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: types.ActionResumeBoost,
		Metadata:   map[string]any{"analysis_id": analysisID.String()},
	}
	if err := s.usage.Record(ctx, event); err != nil {
		s.logger.LogError(err, "Failed to record usage event", "analysis_id", analysisID.String())
	}
}

// appendAnalysisID attaches the analysis ID to pipeline errors so clients
// can look up the failed attempt.
func appendAnalysisID(err error, analysisID uuid.UUID) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.WithContext("analysisId", analysisID.String())
	}
	return err
}
