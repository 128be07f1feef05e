package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"resumeboost/internal/analysis"
	"resumeboost/internal/billing"
	rbErrors "resumeboost/internal/errors"
	"resumeboost/internal/observability"
	"resumeboost/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// analyzeHandler accepts a multipart resume upload and runs the full
// analysis pipeline.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := s.Obs.Tracer("resumeboost.api")
	ctx, span := tracer.Start(ctx, "api.analyze_resume")
	defer span.End()

	userID, ok := userIDFromContext(ctx)
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	if err := r.ParseMultipartForm(s.Config.App.MaxUploadBytes); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeFileTooLarge,
			"multipart form exceeds the upload limit", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"file field is required", err))
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		span.RecordError(err)
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"failed to read uploaded file", err))
		return
	}

	req := analysis.Request{
		UserID:         userID,
		Filename:       header.Filename,
		DeclaredMIME:   header.Header.Get("Content-Type"),
		FileData:       fileData,
		JobDescription: r.FormValue("jobDescription"),
	}

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("request.file_bytes", len(req.FileData)),
		attribute.Int("request.job_length", len(req.JobDescription)),
	)

	start := time.Now()
	result, err := s.Services.Analysis.Analyze(ctx, req)
	s.Obs.GetMetrics().RecordAnalysis(ctx, start, err, tokenUsageFrom(result))

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(rbErrors.TypeOf(err))))
		s.writeError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("ats.score", result.ATSScore),
	)

	writeJSON(w, result)
}

// quotaHandler returns the caller's current quota standing.
func (s *Server) quotaHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	info, err := s.Services.Quota.Check(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, info)
}

// dashboardMetricsHandler returns the cached dashboard aggregate.
func (s *Server) dashboardMetricsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	metrics, err := s.Services.Dashboard.Metrics(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, metrics)
}

// analysisHistoryHandler returns a page of the caller's past analyses.
func (s *Server) analysisHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	page := parseQueryInt(r, "page", 1)
	pageSize := parseQueryInt(r, "pageSize", 0)

	history, err := s.Services.Dashboard.History(r.Context(), userID, page, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, history)
}

// analysisDetailHandler returns one analysis with a fresh signed PDF URL.
func (s *Server) analysisDetailHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	analysisID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"analysis id must be a valid UUID", err))
		return
	}

	detail, err := s.Services.Dashboard.Detail(r.Context(), userID, analysisID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, detail)
}

// checkoutSessionHandler starts a Stripe checkout. The pro plan is the
// only purchasable one; an absent or empty body defaults to it.
func (s *Server) checkoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	var body struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"request body must be JSON", err))
		return
	}
	if body.Plan == "" {
		body.Plan = string(types.PlanPro)
	}
	if body.Plan != string(types.PlanPro) {
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"only the pro plan is available for checkout", nil))
		return
	}

	url, err := s.Services.Billing.CreateCheckoutSession(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{"url": url})
}

// customerPortalHandler opens the Stripe billing portal for existing customers.
func (s *Server) customerPortalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
			"no authenticated session"))
		return
	}

	url, err := s.Services.Billing.CreatePortalSession(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{"url": url})
}

// webhookHandler receives Stripe events. Authentication is the signature
// header, verified inside the billing service.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, billing.MaxWebhookBodyBytes))
	if err != nil {
		s.writeError(w, rbErrors.NewValidationError(rbErrors.ErrCodeInvalidRequest,
			"failed to read webhook payload", err))
		return
	}

	err = s.Services.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	s.Obs.GetMetrics().RecordWebhookEvent(r.Context(), "stripe", err == nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]bool{"received": true})
}

// tokenUsageFrom lifts the pipeline's token counts into the metrics type.
// Failed runs carry no usage and record nothing.
func tokenUsageFrom(result *types.AnalyzeResult) *observability.TokenUsage {
	if result == nil || result.TotalTokens == 0 {
		return nil
	}
	return &observability.TokenUsage{
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		TotalTokens:  result.TotalTokens,
	}
}

// parseQueryInt reads an integer query parameter, falling back on absence
// or garbage.
func parseQueryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
