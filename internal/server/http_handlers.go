package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"
	"time"

	rbErrors "resumeboost/internal/errors"
)

const healthCheckTimeout = 5 * time.Second

// healthHandler reports service health including AI model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "resumeboost",
		"version": s.Version,
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	overallHealthy := true
	if s.Services.AI != nil {
		modelInfo := s.Services.AI.GetModelInfo(ctx)
		response["ai_model"] = modelInfo

		if modelInfo != nil && !modelInfo.Available {
			overallHealthy = false
		}
	}

	if !overallHealthy {
		response["status"] = "degraded"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	writeJSON(w, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumeboost",
		"version": s.Version,
		"limits": map[string]any{
			"max_upload_bytes":          s.Config.App.MaxUploadBytes,
			"min_job_description_chars": s.Config.App.MinJobDescriptionChars,
			"max_resume_chars":          s.Config.App.MaxResumeChars,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	writeJSON(w, response)
}

// writeJSON writes a JSON response with a 200 status unless one was already set
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch rbErrors.TypeOf(err) {
	case rbErrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case rbErrors.ErrorTypeValidation, rbErrors.ErrorTypeWebhookSignature:
		return http.StatusBadRequest
	case rbErrors.ErrorTypeQuota:
		return http.StatusTooManyRequests
	case rbErrors.ErrorTypeUnextractable:
		return http.StatusUnprocessableEntity
	case rbErrors.ErrorTypePersistence:
		if rbErrors.CodeOf(err) == rbErrors.ErrCodeNotFound {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders an application error as JSON with the mapped status.
// Internal failure detail stays in the logs; the client sees code and message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	response := ErrorResponse{
		Error:   rbErrors.CodeOf(err),
		Message: "internal server error",
	}
	if response.Error == "" {
		response.Error = "INTERNAL_ERROR"
	}

	var appErr *rbErrors.AppError
	if stderrors.As(err, &appErr) {
		if status < http.StatusInternalServerError {
			response.Message = appErr.Message
		}
		if id, ok := appErr.Context["analysisId"].(string); ok {
			response.AnalysisID = id
		}
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}
