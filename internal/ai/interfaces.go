package ai

import (
	"context"

	"resumeboost/internal/types"
)

// AnalyzeInput carries the normalized, token-bounded documents sent to
// the model.
type AnalyzeInput struct {
	ResumeText     string
	JobDescription string
}

// Provider is the AI backend interface. All methods return token usage
// information; callers can ignore it if not needed.
type Provider interface {
	AnalyzeResume(ctx context.Context, input AnalyzeInput) (types.ResumeAnalysis, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Model() string
	Close() error
}
