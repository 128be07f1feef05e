package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeUnauthorized     ErrorType = "unauthorized"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeQuota            ErrorType = "quota"
	ErrorTypeUnextractable    ErrorType = "unextractable"
	ErrorTypeStorage          ErrorType = "storage"
	ErrorTypeAI               ErrorType = "ai"
	ErrorTypePersistence      ErrorType = "persistence"
	ErrorTypeWebhookSignature ErrorType = "webhook_signature"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeInternal         ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewUnauthorizedError(code, message string) *AppError {
	return newAppError(ErrorTypeUnauthorized, code, message, nil)
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewQuotaError(code, message string) *AppError {
	return newAppError(ErrorTypeQuota, code, message, nil)
}

func NewUnextractableError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeUnextractable, code, message, cause)
}

func NewStorageError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeStorage, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewPersistenceError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypePersistence, code, message, cause)
}

func NewWebhookSignatureError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeWebhookSignature, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// TypeOf reports the taxonomy type of err, or ErrorTypeInternal for
// errors that did not originate as an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// CodeOf extracts the machine-readable code from an AppError, or an empty
// string for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{logger: logger}
}

// Slog exposes the underlying slog.Logger for components that take one
// directly.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeMissingSession      = "MISSING_SESSION"
	ErrCodeInvalidSession      = "INVALID_SESSION"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeFileTooLarge        = "FILE_TOO_LARGE"
	ErrCodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	ErrCodeJobDescriptionShort = "JOB_DESCRIPTION_TOO_SHORT"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeNotEnoughText       = "NOT_ENOUGH_EXTRACTABLE_TEXT"
	ErrCodeExtractionFailed    = "EXTRACTION_FAILED"
	ErrCodeUploadFailed        = "UPLOAD_FAILED"
	ErrCodeSignedURLFailed     = "SIGNED_URL_FAILED"
	ErrCodeAIServiceFailed     = "AI_SERVICE_FAILED"
	ErrCodeAIResponseInvalid   = "AI_RESPONSE_INVALID"
	ErrCodeMissingAPIKey       = "MISSING_API_KEY"
	ErrCodeDatabaseFailed      = "DATABASE_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeBadSignature        = "BAD_SIGNATURE"
	ErrCodeInvalidConfig       = "INVALID_CONFIG"
	ErrCodePDFRenderFailed     = "PDF_RENDER_FAILED"
	ErrCodeBillingFailed       = "BILLING_FAILED"
)
