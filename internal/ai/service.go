package ai

import (
	"context"
	"fmt"

	"resumeboost/internal/config"
	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

// Service handles AI operations for resume analysis.
type Service struct {
	Provider Provider // Exported for access from server package
	config   config.AIConfig
	logger   *errors.Logger
}

// NewService creates a new AI service instance.
func NewService(cfg config.AIConfig, logger *errors.Logger) (*Service, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"use_system_prompts", cfg.UseSystemPrompts)

	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// AnalyzeResume runs the analysis operation through the configured provider.
func (s *Service) AnalyzeResume(ctx context.Context, input AnalyzeInput) (types.ResumeAnalysis, *TokenUsage, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	return s.Provider.AnalyzeResume(ctx, input)
}

// Model returns the configured model name for persistence alongside results.
func (s *Service) Model() string {
	return s.Provider.Model()
}

// GetModelInfo returns information about the AI model for health checks.
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases provider resources.
func (s *Service) Close() error {
	return s.Provider.Close()
}
