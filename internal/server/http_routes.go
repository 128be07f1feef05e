package server

import (
	"context"
	"net/http"
	"strings"

	rbErrors "resumeboost/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	rateLimited := s.rateLimitMiddleware()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return rateLimited(s.authMiddleware(next))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	if metricsHandler := s.Obs.MetricsHandler(); metricsHandler != nil {
		endpoint := s.Config.Observability.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.Handle("GET "+endpoint, metricsHandler)
	}

	mux.HandleFunc("POST /api/resume/analyze",
		authed(s.uploadSizeLimitMiddleware(s.analyzeHandler)))
	mux.HandleFunc("GET /api/quota", authed(s.quotaHandler))
	mux.HandleFunc("GET /api/dashboard/metrics", authed(s.dashboardMetricsHandler))
	mux.HandleFunc("GET /api/analyses", authed(s.analysisHistoryHandler))
	mux.HandleFunc("GET /api/analyses/{id}", authed(s.analysisDetailHandler))
	mux.HandleFunc("POST /api/stripe/checkout-session", authed(s.checkoutSessionHandler))
	mux.HandleFunc("POST /api/stripe/customer-portal", authed(s.customerPortalHandler))

	// Stripe authenticates webhooks by signature, not session.
	mux.HandleFunc("POST /api/stripe/webhook", rateLimited(s.webhookHandler))

	return mux
}

// authMiddleware verifies the bearer token issued by the identity provider
// and stashes the subject user id in the request context.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			s.Logger.Info("Authentication failed: missing bearer token",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			s.writeError(w, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeMissingSession,
				"Authorization bearer token required"))
			return
		}

		userID, err := s.verifySession(tokenString)
		if err != nil {
			s.Logger.Info("Authentication failed: invalid session token",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// verifySession validates the JWT and extracts the user id from its subject.
func (s *Server) verifySession(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(s.Config.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return uuid.Nil, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeInvalidSession,
			"session token is invalid or expired")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return uuid.Nil, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeInvalidSession,
			"session token has no subject")
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, rbErrors.NewUnauthorizedError(rbErrors.ErrCodeInvalidSession,
			"session subject is not a valid user id")
	}

	return userID, nil
}

// userIDFromContext returns the authenticated user id placed by authMiddleware.
func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// uploadSizeLimitMiddleware bounds multipart upload bodies. The limit leaves
// headroom above the file cap for the job description part and form framing.
func (s *Server) uploadSizeLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBody := s.Config.App.MaxUploadBytes + int64(s.Config.App.MaxJobDescriptionChars) + 64*1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		next(w, r)
	}
}
